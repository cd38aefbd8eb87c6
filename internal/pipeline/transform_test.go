package pipeline_test

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
	"github.com/couchcryptid/disdro-dsd-service/internal/gamma"
	"github.com/couchcryptid/disdro-dsd-service/internal/pipeline"
	"github.com/couchcryptid/disdro-dsd-service/internal/radar"
)

// uniformAmplitudes answers every diameter with the same amplitudes, which is
// enough to exercise the radar wiring without a real scattering table.
type uniformAmplitudes struct{}

func (uniformAmplitudes) WavelengthMM() float64 { return 31.86 }
func (uniformAmplitudes) TemperatureC() float64 { return 10.0 }
func (uniformAmplitudes) Amplitudes(float64) (radar.Amplitudes, error) {
	return radar.Amplitudes{
		BackH: complex(0.02, 0.001),
		BackV: complex(0.018, 0.001),
		FwdH:  complex(0.015, 0.004),
		FwdV:  complex(0.013, 0.004),
	}, nil
}

func jwdRawEvent(t *testing.T, instrument string, nd []float64) dsd.RawEvent {
	t.Helper()
	payload, err := json.Marshal(dsd.RawSpectrumRecord{
		Instrument: instrument,
		Time:       time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Nd:         nd,
	})
	require.NoError(t, err)
	return dsd.RawEvent{Value: payload, Timestamp: time.Now()}
}

func rainyJWDSpectrum() []float64 {
	nd := make([]float64, 20)
	// Roughly exponential: plenty of small drops, a long thin tail.
	for i := range nd {
		nd[i] = 8000 * math.Exp(-2.2*float64(i)*0.1)
	}
	return nd
}

func TestTransformProducesProducts(t *testing.T) {
	strategy, err := gamma.ForMethod(gamma.MethodMoments, gamma.MomentOrders{2, 4, 6})
	require.NoError(t, err)
	tfm := pipeline.NewTransformer(strategy, nil, discardLogger(), newTestMetrics())

	rec, err := tfm.Transform(context.Background(), jwdRawEvent(t, "jwd", rainyJWDSpectrum()))
	require.NoError(t, err)

	assert.Equal(t, "jwd", rec.Instrument)
	assert.Greater(t, rec.RainRate, 0.0)
	assert.Greater(t, rec.LWC, 0.0)
	assert.Greater(t, rec.D0, 0.0)
	assert.Greater(t, rec.Nt, 0.0)
	require.NotNil(t, rec.Fit.Mu)
	require.NotNil(t, rec.Fit.Lambda)
	assert.Nil(t, rec.Radar, "radar moments disabled without a provider")
	assert.False(t, rec.ProcessedAt.IsZero())
}

func TestTransformRadarEnabled(t *testing.T) {
	strategy, err := gamma.ForMethod(gamma.MethodMoments, gamma.MomentOrders{2, 4, 6})
	require.NoError(t, err)
	tfm := pipeline.NewTransformer(strategy, uniformAmplitudes{}, discardLogger(), newTestMetrics())

	rec, err := tfm.Transform(context.Background(), jwdRawEvent(t, "jwd", rainyJWDSpectrum()))
	require.NoError(t, err)

	require.NotNil(t, rec.Radar)
	require.NotNil(t, rec.Radar.Zh)
	assert.Greater(t, *rec.Radar.Zh, -100.0)
	assert.Greater(t, rec.Radar.Kdp, 0.0)
}

func TestTransformUndefinedFit(t *testing.T) {
	strategy, err := gamma.ForMethod(gamma.MethodMoments, gamma.MomentOrders{2, 4, 6})
	require.NoError(t, err)
	tfm := pipeline.NewTransformer(strategy, nil, discardLogger(), newTestMetrics())

	rec, err := tfm.Transform(context.Background(), jwdRawEvent(t, "jwd", make([]float64, 20)))
	require.NoError(t, err)

	assert.Nil(t, rec.Fit.Mu)
	assert.Nil(t, rec.Fit.Lambda)
	assert.Zero(t, rec.RainRate)
}

func TestTransformUnknownInstrument(t *testing.T) {
	strategy, err := gamma.ForMethod(gamma.MethodMoments, gamma.MomentOrders{2, 4, 6})
	require.NoError(t, err)
	tfm := pipeline.NewTransformer(strategy, nil, discardLogger(), newTestMetrics())

	_, err = tfm.Transform(context.Background(), jwdRawEvent(t, "thies", make([]float64, 20)))
	assert.Error(t, err)
}

func TestTransformShapeMismatch(t *testing.T) {
	strategy, err := gamma.ForMethod(gamma.MethodMoments, gamma.MomentOrders{2, 4, 6})
	require.NoError(t, err)
	tfm := pipeline.NewTransformer(strategy, nil, discardLogger(), newTestMetrics())

	_, err = tfm.Transform(context.Background(), jwdRawEvent(t, "jwd", make([]float64, 5)))
	var shapeErr *dsd.ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, 5, shapeErr.Got)
	assert.Equal(t, 20, shapeErr.Want)
}

func TestTransformInvalidJSON(t *testing.T) {
	strategy, err := gamma.ForMethod(gamma.MethodMoments, gamma.MomentOrders{2, 4, 6})
	require.NoError(t, err)
	tfm := pipeline.NewTransformer(strategy, nil, discardLogger(), newTestMetrics())

	_, err = tfm.Transform(context.Background(), dsd.RawEvent{Value: []byte("{not json")})
	assert.ErrorContains(t, err, "parse raw spectrum")
}
