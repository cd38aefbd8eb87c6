package moments

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitRKdpRecoversPowerLaw(t *testing.T) {
	// Synthesize R = 40·Kdp^0.85 exactly; the log-space fit must recover it.
	kdp := []float64{0.05, 0.1, 0.3, 0.7, 1.2, 2.5, 4.0}
	rain := make([]float64, len(kdp))
	for i, k := range kdp {
		rain[i] = 40 * math.Pow(k, 0.85)
	}

	p, err := FitRKdp(rain, kdp)
	require.NoError(t, err)

	assert.InDelta(t, 40.0, p.A, 1e-6)
	assert.InDelta(t, 0.85, p.B, 1e-9)
	assert.InDelta(t, 40*math.Pow(1.5, 0.85), p.Evaluate(1.5), 1e-6)
}

func TestFitRKdpIgnoresNonPositive(t *testing.T) {
	kdp := []float64{0.5, -0.1, 0, 1.0, math.NaN(), 2.0}
	rain := []float64{30, 10, 5, 48, 20, 75}
	for i, k := range kdp {
		if k > 0 && !math.IsNaN(k) {
			rain[i] = 50 * math.Pow(k, 0.7)
		}
	}

	p, err := FitRKdp(rain, kdp)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, p.A, 1e-6)
	assert.InDelta(t, 0.7, p.B, 1e-9)
}

func TestFitRKdpInsufficientSamples(t *testing.T) {
	_, err := FitRKdp([]float64{5}, []float64{0.5})
	assert.ErrorIs(t, err, ErrInsufficientSamples)

	_, err = FitRKdp([]float64{5, 10}, []float64{-1, 0})
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestFitRZhUsesLinearReflectivity(t *testing.T) {
	// R = 0.017·Z^0.714 with Z linear (the classic Marshall-Palmer inverse).
	zLinear := []float64{200, 800, 3000, 10000, 40000}
	zhDB := make([]float64, len(zLinear))
	rain := make([]float64, len(zLinear))
	for i, z := range zLinear {
		zhDB[i] = 10 * math.Log10(z)
		rain[i] = 0.017 * math.Pow(z, 0.714)
	}

	p, err := FitRZh(rain, zhDB)
	require.NoError(t, err)
	assert.InDelta(t, 0.017, p.A, 1e-6)
	assert.InDelta(t, 0.714, p.B, 1e-9)
}

func TestFitRZhZdrRecoversTwoPredictorLaw(t *testing.T) {
	// R = 0.0067·Zh^0.93·Zdr^−3.43 on linear scales.
	zh := []float64{500, 1200, 2600, 5800, 9000, 15000, 30000, 52000}
	zdrDB := []float64{0.3, 0.5, 0.8, 1.0, 1.3, 1.6, 2.0, 2.4}
	rain := make([]float64, len(zh))
	for i := range zh {
		zdrLin := math.Pow(10, 0.1*zdrDB[i])
		rain[i] = 0.0067 * math.Pow(zh[i], 0.93) * math.Pow(zdrLin, -3.43)
	}
	zhDB := make([]float64, len(zh))
	for i, z := range zh {
		zhDB[i] = 10 * math.Log10(z)
	}

	p, err := FitRZhZdr(rain, zhDB, zdrDB)
	require.NoError(t, err)

	assert.InDelta(t, 0.0067, p.A, 1e-5)
	assert.InDelta(t, 0.93, p.B, 1e-6)
	assert.InDelta(t, -3.43, p.C, 1e-6)
}

func TestFitPowerLaw2InsufficientSamples(t *testing.T) {
	_, err := FitRZhKdp([]float64{5, 10}, []float64{30, 35}, []float64{0.2, 0.4})
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}
