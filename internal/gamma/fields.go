package gamma

import (
	"math"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
)

// Register attaches the gamma-fit parameter fields (n0, mu, lambda, fit_gof)
// to a container, computed per spectrum by the given strategy. Undefined
// fits surface as N0=0, GoodnessOfFit=0, and NaN shape/slope values; the
// NaN marks the sample as rain-free rather than fitted near zero.
func Register(c *dsd.Container, strategy Strategy) {
	c.RegisterField(dsd.FieldN0, fitField(strategy, func(f FitResult) float64 { return f.N0 }))
	c.RegisterField(dsd.FieldMu, fitField(strategy, func(f FitResult) float64 { return f.Mu }))
	c.RegisterField(dsd.FieldLambda, fitField(strategy, func(f FitResult) float64 { return f.Lambda }))
	c.RegisterField(dsd.FieldFitGoF, fitField(strategy, func(f FitResult) float64 { return f.GoodnessOfFit }))
}

func fitField(strategy Strategy, pick func(FitResult) float64) dsd.FieldCalculator {
	return dsd.FieldCalculatorFunc(func(tbl *dsd.BinTable, s dsd.Spectrum) (float64, error) {
		return pick(strategy.Fit(tbl, s)), nil
	})
}

// Wire converts a fit to its JSON-safe wire form.
func Wire(f FitResult) dsd.GammaFit {
	out := dsd.GammaFit{
		N0:            f.N0,
		Method:        string(f.Method),
		GoodnessOfFit: f.GoodnessOfFit,
	}
	if f.Defined && !math.IsNaN(f.Mu) && !math.IsNaN(f.Lambda) {
		mu, lambda := f.Mu, f.Lambda
		out.Mu = &mu
		out.Lambda = &lambda
	}
	return out
}
