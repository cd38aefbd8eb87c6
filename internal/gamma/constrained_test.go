package gamma

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
)

func TestDefaultMuLambdaRelation(t *testing.T) {
	// Λ(0) = 1.935 and Λ(3) = 0.0365·9 + 0.735·3 + 1.935.
	assert.InDelta(t, 1.935, DefaultMuLambdaRelation(0), 1e-12)
	assert.InDelta(t, 4.4685, DefaultMuLambdaRelation(3), 1e-12)
}

func TestConstrainedStrategySatisfiesRelation(t *testing.T) {
	tbl := fineTable(t)
	spectrum := renderGamma(tbl, 8000, 3.0, DefaultMuLambdaRelation(3.0))

	strategy := NewConstrainedStrategy(nil)
	f := strategy.Fit(tbl, spectrum)
	require.True(t, f.Defined)
	assert.Equal(t, MethodConstrained, f.Method)

	// Λ follows the μ–Λ relation by construction.
	assert.InDelta(t, DefaultMuLambdaRelation(f.Mu), f.Lambda, 1e-9)

	// The free parameter is pinned by Λ·Dm = μ + 4.
	dm := rawMoment(tbl, spectrum, 4) / rawMoment(tbl, spectrum, 3)
	assert.InDelta(t, f.Mu+4, f.Lambda*dm, 1e-6)

	// The spectrum was rendered on the relation's curve, so the fit lands
	// near the truth.
	assert.InDelta(t, 3.0, f.Mu, 0.2)
}

func TestConstrainedStrategyCustomRelation(t *testing.T) {
	tbl := fineTable(t)
	spectrum := renderGamma(tbl, 8000, 2.0, 2.5)

	linear := func(mu float64) float64 { return 0.5*mu + 1.5 }
	strategy := NewConstrainedStrategy(linear)

	f := strategy.Fit(tbl, spectrum)
	require.True(t, f.Defined)
	assert.InDelta(t, linear(f.Mu), f.Lambda, 1e-9)
}

func TestConstrainedStrategyUndefined(t *testing.T) {
	tbl := fineTable(t)
	strategy := NewConstrainedStrategy(nil)

	f := strategy.Fit(tbl, dsd.Spectrum{Nd: make([]float64, tbl.Len())})
	assert.False(t, f.Defined)
	assert.True(t, math.IsNaN(f.Mu))
}
