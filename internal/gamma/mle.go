package gamma

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
)

// MLEStrategy fits (μ, Λ) by minimizing the negative log-likelihood of the
// binned observations under the gamma model, then back-solves N0 from the
// third moment. The search runs over (μ, ln Λ) with Nelder-Mead, seeded from
// the method-of-moments solution.
type MLEStrategy struct {
	seed *MomentsStrategy
}

// NewMLEStrategy creates a maximum-likelihood estimator seeded by a moments
// fit with the given orders.
func NewMLEStrategy(orders MomentOrders) (*MLEStrategy, error) {
	seed, err := NewMomentsStrategy(orders)
	if err != nil {
		return nil, err
	}
	return &MLEStrategy{seed: seed}, nil
}

func (m *MLEStrategy) Fit(tbl *dsd.BinTable, s dsd.Spectrum) FitResult {
	if !fittable(s) {
		return Undefined(MethodMLE)
	}

	mu0, lambda0 := 3.0, 3.0
	if seed := m.seed.Fit(tbl, s); seed.Defined {
		mu0, lambda0 = seed.Mu, seed.Lambda
	}

	// Pseudo-counts per bin: the concentration integrated over the bin width.
	weights := make([]float64, len(s.Nd))
	var total float64
	for i, n := range s.Nd {
		if n <= 0 {
			continue
		}
		w := n * tbl.Bin(i).WidthMM
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return Undefined(MethodMLE)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return m.negLogLikelihood(tbl, weights, total, x[0], math.Exp(x[1]))
		},
	}

	result, err := optimize.Minimize(problem, []float64{mu0, math.Log(lambda0)}, nil, &optimize.NelderMead{})
	if err != nil || result == nil || math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return Undefined(MethodMLE)
	}

	// A finite objective implies the likelihood guard accepted result.X, so
	// lambda is already known positive here.
	mu := clampMu(result.X[0])
	lambda := math.Exp(result.X[1])
	m3 := rawMoment(tbl, s, 3)
	if m3 <= 0 {
		return Undefined(MethodMLE)
	}

	fit := FitResult{
		N0:      interceptFromMoment(m3, mu, 3, lambda),
		Mu:      mu,
		Lambda:  lambda,
		Method:  MethodMLE,
		Defined: true,
	}
	fit.GoodnessOfFit = goodnessOfFit(tbl, s, fit)
	return fit
}

// negLogLikelihood scores (μ, Λ) against the binned pseudo-counts. Bin i has
// model probability pᵢ ∝ Dᵢ^μ·exp(−Λ·Dᵢ)·ΔDᵢ; up to a constant in the data,
// −ln L = −Σ wᵢ·(μ·ln Dᵢ − Λ·Dᵢ) + W·ln Σ pᵢ. Out-of-range parameters score
// +Inf so the simplex retreats.
func (m *MLEStrategy) negLogLikelihood(tbl *dsd.BinTable, weights []float64, total, mu, lambda float64) float64 {
	if mu <= MuMin || mu >= MuMax || lambda <= 0 || lambda > 1e3 {
		return math.Inf(1)
	}

	var partition, fit float64
	for i, w := range weights {
		b := tbl.Bin(i)
		logp := mu*math.Log(b.CenterMM) - lambda*b.CenterMM
		partition += math.Exp(logp) * b.WidthMM
		if w > 0 {
			fit += w * logp
		}
	}
	if partition <= 0 {
		return math.Inf(1)
	}
	return -fit + total*math.Log(partition)
}
