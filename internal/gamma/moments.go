package gamma

import (
	"fmt"
	"math"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
)

// MomentOrders selects which three raw moments the moment-based fit uses.
// The two literature-standard sets are supported: (2,4,6) after Ulbrich &
// Atlas (1998) and (3,4,6) after Kozu & Nakamura (1991).
type MomentOrders [3]int

var (
	Orders246 = MomentOrders{2, 4, 6}
	Orders346 = MomentOrders{3, 4, 6}
)

// ParseMomentOrders converts a config string like "2,4,6" to an order set.
func ParseMomentOrders(s string) (MomentOrders, error) {
	switch s {
	case "2,4,6", "":
		return Orders246, nil
	case "3,4,6":
		return Orders346, nil
	default:
		return MomentOrders{}, fmt.Errorf("unsupported moment orders %q (want \"2,4,6\" or \"3,4,6\")", s)
	}
}

// MomentsStrategy is the baseline method-of-moments estimator. It computes
// three raw moments of the spectrum and inverts the closed-form gamma moment
// relations for (N0, μ, Λ).
type MomentsStrategy struct {
	orders MomentOrders
}

// NewMomentsStrategy creates a moments estimator for one of the supported
// order sets.
func NewMomentsStrategy(orders MomentOrders) (*MomentsStrategy, error) {
	if orders != Orders246 && orders != Orders346 {
		return nil, fmt.Errorf("unsupported moment orders %v", orders)
	}
	return &MomentsStrategy{orders: orders}, nil
}

// Fit solves the closed-form moment relations. The moment ratio determines μ
// through a quadratic; Λ follows from a two-moment ratio and N0 from the
// remaining moment equation. μ outside the plausible range is clamped, with
// the poor agreement reflected in GoodnessOfFit.
func (m *MomentsStrategy) Fit(tbl *dsd.BinTable, s dsd.Spectrum) FitResult {
	if !fittable(s) {
		return Undefined(MethodMoments)
	}

	var mu float64
	var ok bool
	switch m.orders {
	case Orders246:
		mu, ok = solveMu246(tbl, s)
	default:
		mu, ok = solveMu346(tbl, s)
	}
	if !ok {
		return Undefined(MethodMoments)
	}
	mu = clampMu(mu)

	fit, ok := m.close(tbl, s, mu)
	if !ok {
		return Undefined(MethodMoments)
	}
	fit.GoodnessOfFit = goodnessOfFit(tbl, s, fit)
	return fit
}

// close derives Λ and N0 for a given μ from the lower two configured moments.
func (m *MomentsStrategy) close(tbl *dsd.BinTable, s dsd.Spectrum, mu float64) (FitResult, bool) {
	var lambda, n0 float64
	switch m.orders {
	case Orders246:
		m2 := rawMoment(tbl, s, 2)
		m4 := rawMoment(tbl, s, 4)
		if m2 <= 0 || m4 <= 0 {
			return FitResult{}, false
		}
		// M2/M4 = Λ²/((μ+3)(μ+4))
		lambda = math.Sqrt((mu + 3) * (mu + 4) * m2 / m4)
		n0 = interceptFromMoment(m2, mu, 2, lambda)
	default:
		m3 := rawMoment(tbl, s, 3)
		m4 := rawMoment(tbl, s, 4)
		if m3 <= 0 || m4 <= 0 {
			return FitResult{}, false
		}
		// M4/M3 = (μ+4)/Λ
		lambda = (mu + 4) * m3 / m4
		n0 = interceptFromMoment(m3, mu, 3, lambda)
	}
	if lambda <= 0 || math.IsNaN(n0) || math.IsInf(n0, 0) {
		return FitResult{}, false
	}
	return FitResult{
		N0:      n0,
		Mu:      mu,
		Lambda:  lambda,
		Method:  MethodMoments,
		Defined: true,
	}, true
}

// interceptFromMoment back-solves N0 from Mₖ = N0·Γ(μ+k+1)/Λ^(μ+k+1),
// in log space to avoid overflow in the gamma function.
func interceptFromMoment(mk, mu float64, k float64, lambda float64) float64 {
	lg, _ := math.Lgamma(mu + k + 1)
	return mk * math.Exp((mu+k+1)*math.Log(lambda)-lg)
}

// solveMu246 solves η = M4²/(M2·M6) = (μ+3)(μ+4)/((μ+5)(μ+6)) for μ.
func solveMu246(tbl *dsd.BinTable, s dsd.Spectrum) (float64, bool) {
	m2 := rawMoment(tbl, s, 2)
	m4 := rawMoment(tbl, s, 4)
	m6 := rawMoment(tbl, s, 6)
	if m2 <= 0 || m6 <= 0 {
		return 0, false
	}
	eta := m4 * m4 / (m2 * m6)
	// (η−1)μ² + (11η−7)μ + (30η−12) = 0
	return solveShapeQuadratic(eta-1, 11*eta-7, 30*eta-12)
}

// solveMu346 solves G = M4³/(M3²·M6) = (μ+4)²/((μ+5)(μ+6)) for μ.
func solveMu346(tbl *dsd.BinTable, s dsd.Spectrum) (float64, bool) {
	m3 := rawMoment(tbl, s, 3)
	m4 := rawMoment(tbl, s, 4)
	m6 := rawMoment(tbl, s, 6)
	if m3 <= 0 || m6 <= 0 {
		return 0, false
	}
	g := m4 * m4 * m4 / (m3 * m3 * m6)
	// (G−1)μ² + (11G−8)μ + (30G−16) = 0
	return solveShapeQuadratic(g-1, 11*g-8, 30*g-16)
}

// solveShapeQuadratic solves a·μ² + b·μ + c = 0 and picks the physical root:
// the one inside (MuMin, MuMax) when exactly one is, otherwise the smaller
// root, which is the branch the literature closed forms select.
func solveShapeQuadratic(a, b, c float64) (float64, bool) {
	if a == 0 {
		if b == 0 {
			return 0, false
		}
		return -c / b, true
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	r1 := (-b - sq) / (2 * a)
	r2 := (-b + sq) / (2 * a)
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	in1 := r1 > MuMin && r1 < MuMax
	in2 := r2 > MuMin && r2 < MuMax
	switch {
	case in1:
		return r1, true
	case in2:
		return r2, true
	default:
		return r1, true // out of range; caller clamps
	}
}
