package gamma

import (
	"math"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
)

// MuLambdaRelation maps a shape parameter μ to a slope Λ in mm⁻¹. Empirical
// relations of this form reduce the gamma fit to two unknowns.
type MuLambdaRelation func(mu float64) float64

// DefaultMuLambdaRelation is the Zhang et al. (2003) constrained-gamma
// relation Λ = 0.0365·μ² + 0.735·μ + 1.935, derived from video-disdrometer
// observations of Florida rain. It is a literature choice, configurable by
// passing a different relation to NewConstrainedStrategy.
func DefaultMuLambdaRelation(mu float64) float64 {
	return 0.0365*mu*mu + 0.735*mu + 1.935
}

// ConstrainedStrategy fits (N0, μ, Λ) with μ and Λ tied together by an
// empirical relation. The remaining free parameter is pinned by the measured
// mass-weighted mean diameter Dm = M4/M3, which for a gamma DSD satisfies
// Λ·Dm = μ + 4.
type ConstrainedStrategy struct {
	relation MuLambdaRelation
}

// NewConstrainedStrategy creates a constrained estimator. A nil relation
// selects DefaultMuLambdaRelation.
func NewConstrainedStrategy(rel MuLambdaRelation) *ConstrainedStrategy {
	if rel == nil {
		rel = DefaultMuLambdaRelation
	}
	return &ConstrainedStrategy{relation: rel}
}

func (c *ConstrainedStrategy) Fit(tbl *dsd.BinTable, s dsd.Spectrum) FitResult {
	if !fittable(s) {
		return Undefined(MethodConstrained)
	}

	m3 := rawMoment(tbl, s, 3)
	m4 := rawMoment(tbl, s, 4)
	if m3 <= 0 || m4 <= 0 {
		return Undefined(MethodConstrained)
	}
	dm := m4 / m3

	mu, ok := c.solveMu(dm)
	if !ok {
		return Undefined(MethodConstrained)
	}
	lambda := c.relation(mu)
	if lambda <= 0 {
		return Undefined(MethodConstrained)
	}

	fit := FitResult{
		N0:      interceptFromMoment(m3, mu, 3, lambda),
		Mu:      mu,
		Lambda:  lambda,
		Method:  MethodConstrained,
		Defined: true,
	}
	fit.GoodnessOfFit = goodnessOfFit(tbl, s, fit)
	return fit
}

// solveMu finds the root of f(μ) = Λ(μ)·Dm − (μ+4) by bisection over the
// plausible μ range. Without a sign change the nearest bound is used, the
// clamped-fit analogue of the moments strategy.
func (c *ConstrainedStrategy) solveMu(dm float64) (float64, bool) {
	f := func(mu float64) float64 { return c.relation(mu)*dm - (mu + 4) }

	lo, hi := MuMin, MuMax
	flo, fhi := f(lo), f(hi)
	if math.IsNaN(flo) || math.IsNaN(fhi) {
		return 0, false
	}
	if flo*fhi > 0 {
		if math.Abs(flo) < math.Abs(fhi) {
			return lo, true
		}
		return hi, true
	}

	for range 80 {
		mid := (lo + hi) / 2
		fm := f(mid)
		if fm == 0 || hi-lo < 1e-10 {
			return mid, true
		}
		if flo*fm < 0 {
			hi = mid
		} else {
			lo, flo = mid, fm
		}
	}
	return (lo + hi) / 2, true
}
