// Package gamma fits the three-parameter gamma model
// N(D) = N0·D^μ·exp(−Λ·D) to observed drop concentration spectra.
//
// Three interchangeable strategies produce the same [FitResult] shape so
// callers are strategy-agnostic: method of moments (the baseline),
// a constrained fit using an empirical μ–Λ relation, and maximum likelihood.
package gamma

import (
	"fmt"
	"math"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
)

// Method names the estimation strategy that produced a fit.
type Method string

const (
	MethodMoments     Method = "moments"
	MethodConstrained Method = "constrained"
	MethodMLE         Method = "mle"
)

// Physically plausible shape-parameter range. Moment ratios that solve to a
// μ outside this interval are clamped to it; the resulting poor fit shows up
// in GoodnessOfFit instead of raising an error.
const (
	MuMin = -2.99
	MuMax = 20.0
)

// FitResult holds the fitted parameters of N(D) = N0·D^μ·exp(−Λ·D).
//
// Defined is false for spectra that cannot support a three-parameter fit
// (all-zero, or fewer than three nonzero bins); Mu and Lambda are then NaN,
// N0 is 0, and GoodnessOfFit is 0. An undefined fit is an expected outcome
// for rain-free samples, distinguishable from a successful fit with
// near-zero parameters.
type FitResult struct {
	N0            float64 // mm^(−1−μ) m⁻³
	Mu            float64
	Lambda        float64 // mm⁻¹
	Method        Method
	GoodnessOfFit float64 // 0..1, fraction of concentration variance explained
	Defined       bool
}

// Undefined returns the sentinel result for spectra with too little signal.
func Undefined(m Method) FitResult {
	return FitResult{Mu: math.NaN(), Lambda: math.NaN(), Method: m}
}

// Strategy fits gamma parameters to one spectrum against a bin table.
type Strategy interface {
	Fit(tbl *dsd.BinTable, s dsd.Spectrum) FitResult
}

// ForMethod builds the strategy for a configuration name. The moments and
// MLE strategies take the configured moment orders; the constrained strategy
// uses the default μ–Λ relation.
func ForMethod(method Method, orders MomentOrders) (Strategy, error) {
	switch method {
	case MethodMoments:
		return NewMomentsStrategy(orders)
	case MethodConstrained:
		return NewConstrainedStrategy(DefaultMuLambdaRelation), nil
	case MethodMLE:
		return NewMLEStrategy(orders)
	default:
		return nil, fmt.Errorf("unknown estimation method %q", method)
	}
}

// Moment computes the kth raw moment of the fitted model analytically:
// Mₖ = N0·Γ(μ+k+1)/Λ^(μ+k+1). For a fit produced by the moments strategy
// this reproduces the observed moments it was derived from.
func (f FitResult) Moment(k float64) float64 {
	if !f.Defined {
		return 0
	}
	lg, _ := math.Lgamma(f.Mu + k + 1)
	return f.N0 * math.Exp(lg-(f.Mu+k+1)*math.Log(f.Lambda))
}

// Evaluate returns the model concentration N(D) at a diameter in mm.
func (f FitResult) Evaluate(diameterMM float64) float64 {
	if !f.Defined || diameterMM <= 0 {
		return 0
	}
	return f.N0 * math.Pow(diameterMM, f.Mu) * math.Exp(-f.Lambda*diameterMM)
}

// rawMoment is the discretized kth moment Σ N·D^k·ΔD of an observed spectrum.
func rawMoment(tbl *dsd.BinTable, s dsd.Spectrum, k float64) float64 {
	sum := 0.0
	for i, n := range s.Nd {
		if n <= 0 {
			continue
		}
		b := tbl.Bin(i)
		sum += n * math.Pow(b.CenterMM, k) * b.WidthMM
	}
	return sum
}

// fittable reports whether a spectrum carries enough signal for a
// three-parameter fit.
func fittable(s dsd.Spectrum) bool {
	return s.NonzeroBins() >= 3
}

// goodnessOfFit scores a fit as the fraction of concentration variance the
// model explains, clamped to [0, 1].
func goodnessOfFit(tbl *dsd.BinTable, s dsd.Spectrum, f FitResult) float64 {
	if !f.Defined {
		return 0
	}
	mean := 0.0
	for _, n := range s.Nd {
		mean += n
	}
	mean /= float64(len(s.Nd))

	var sse, sst float64
	for i, n := range s.Nd {
		model := f.Evaluate(tbl.Bin(i).CenterMM)
		sse += (n - model) * (n - model)
		sst += (n - mean) * (n - mean)
	}
	if sst == 0 {
		return 0
	}
	gof := 1 - sse/sst
	if gof < 0 {
		return 0
	}
	if gof > 1 {
		return 1
	}
	return gof
}

// clampMu confines a solved shape parameter to the plausible range.
func clampMu(mu float64) float64 {
	if mu < MuMin {
		return MuMin
	}
	if mu > MuMax {
		return MuMax
	}
	return mu
}
