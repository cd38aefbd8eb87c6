// Package moments computes physically interpretable scalars from drop size
// distribution spectra: liquid water content, rain rate, characteristic
// diameters, and the normalized intercept parameter.
//
// Every integral uses the shared discretized-bin convention
// Σᵢ N(Dᵢ)·f(Dᵢ)·ΔDᵢ with ΔDᵢ the bin's own width, the same convention the
// gamma estimator's moment ratios use, so the two stay mutually consistent.
package moments

import (
	"math"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
	"github.com/couchcryptid/disdro-dsd-service/internal/gamma"
)

const (
	// rhoWater is the density of liquid water in g/cm³.
	rhoWater = 1.0

	// lwcPrefactor converts Σ N·D³·ΔD (mm³ m⁻³ with N in m⁻³ mm⁻¹) to
	// liquid water content in g/m³.
	lwcPrefactor = 1e-3 * math.Pi / 6.0 * rhoWater

	// rainPrefactor converts Σ v·N·D³·ΔD (v in m/s) to rain rate in mm/h.
	rainPrefactor = 0.6 * math.Pi * 1e-3

	// nwPrefactor is 3.67⁴/π·10³, from the normalized-gamma definition
	// Nw = (3.67⁴/(π·ρw))·(10³·W)/D0⁴ with W in g/m³ and D0 in mm.
	nwPrefactor = 3.67 * 3.67 * 3.67 * 3.67 / math.Pi * 1e3 / rhoWater
)

// Calculator computes integral moments of spectra against one bin table.
// It is stateless apart from the shared read-only table and safe for
// concurrent use.
type Calculator struct {
	table *dsd.BinTable
}

// NewCalculator creates a calculator bound to a bin table.
func NewCalculator(table *dsd.BinTable) *Calculator {
	return &Calculator{table: table}
}

// Moment returns the kth raw moment Σ N·D^k·ΔD in mm^k m⁻³.
func (c *Calculator) Moment(s dsd.Spectrum, k float64) float64 {
	sum := 0.0
	for i, n := range s.Nd {
		if n <= 0 {
			continue
		}
		b := c.table.Bin(i)
		sum += n * math.Pow(b.CenterMM, k) * b.WidthMM
	}
	return sum
}

// LWC returns the liquid water content in g/m³:
// W = (π/6)·ρw·Σ N·D³·ΔD. Always ≥ 0, and 0 iff all concentrations are 0.
func (c *Calculator) LWC(s dsd.Spectrum) float64 {
	return lwcPrefactor * c.Moment(s, 3)
}

// RainRate returns the rain rate in mm/h using the bin table's terminal
// fall-velocity relation: R = (π/6)·Σ N·D³·v(D)·ΔD, with the unit
// conversion folded into a single constant factor.
func (c *Calculator) RainRate(s dsd.Spectrum) float64 {
	sum := 0.0
	for i, n := range s.Nd {
		if n <= 0 {
			continue
		}
		b := c.table.Bin(i)
		sum += n * b.CenterMM * b.CenterMM * b.CenterMM * b.FallVelocity * b.WidthMM
	}
	return rainPrefactor * sum
}

// Nt returns the total drop concentration Σ N·ΔD in m⁻³.
func (c *Calculator) Nt(s dsd.Spectrum) float64 {
	return c.Moment(s, 0)
}

// Dm returns the mass-weighted mean diameter M4/M3 in mm, or 0 for an empty
// spectrum.
func (c *Calculator) Dm(s dsd.Spectrum) float64 {
	m3 := c.Moment(s, 3)
	if m3 <= 0 {
		return 0
	}
	return c.Moment(s, 4) / m3
}

// Dmax returns the center diameter of the largest bin with a nonzero
// concentration, or 0 for an all-zero spectrum.
func (c *Calculator) Dmax(s dsd.Spectrum) float64 {
	for i := len(s.Nd) - 1; i >= 0; i-- {
		if s.Nd[i] > 0 {
			return c.table.Bin(i).CenterMM
		}
	}
	return 0
}

// D0 returns the median volume diameter in mm: the diameter at which the
// cumulative third-moment contribution reaches half the total, interpolated
// linearly within the bin that straddles the crossing. The cumulative curve
// is anchored at bin edges, so a spectrum with all its mass in one bin has
// its D0 at that bin's center. Returns 0 for an all-zero spectrum.
func (c *Calculator) D0(s dsd.Spectrum) float64 {
	total := c.Moment(s, 3)
	if total <= 0 {
		return 0
	}
	half := total / 2

	cum := 0.0
	for i, n := range s.Nd {
		b := c.table.Bin(i)
		contrib := 0.0
		if n > 0 {
			contrib = n * b.CenterMM * b.CenterMM * b.CenterMM * b.WidthMM
		}
		if cum+contrib >= half {
			// Crossing is inside this bin; interpolate from its left edge.
			leftEdge := b.CenterMM - b.WidthMM/2
			if contrib == 0 {
				return leftEdge
			}
			return leftEdge + (half-cum)/contrib*b.WidthMM
		}
		cum += contrib
	}
	// Rounding pushed the crossing past the last bin; clamp to its right edge.
	last := c.table.Bin(c.table.Len() - 1)
	return last.CenterMM + last.WidthMM/2
}

// Nw returns the normalized intercept parameter in mm⁻¹ m⁻³, derived from
// liquid water content and median volume diameter via the standard
// normalized-gamma relation. Returns 0 when either is 0.
func (c *Calculator) Nw(s dsd.Spectrum) float64 {
	w := c.LWC(s)
	d0 := c.D0(s)
	if w <= 0 || d0 <= 0 {
		return 0
	}
	return nwPrefactor * w / (d0 * d0 * d0 * d0)
}

// EvaluateGamma renders a fitted gamma model back onto the calculator's bin
// table as a spectrum, for model-versus-measured comparisons and for feeding
// modeled DSDs through the radar moment processor. An undefined fit yields
// an all-zero spectrum.
func (c *Calculator) EvaluateGamma(fit gamma.FitResult) dsd.Spectrum {
	nd := make([]float64, c.table.Len())
	if fit.Defined {
		for i := range nd {
			nd[i] = fit.Evaluate(c.table.Bin(i).CenterMM)
		}
	}
	return dsd.Spectrum{Nd: nd}
}

// Register attaches the physical moment fields to a container.
func (c *Calculator) Register(cont *dsd.Container) {
	cont.RegisterField(dsd.FieldRainRate, calcField(c.RainRate))
	cont.RegisterField(dsd.FieldLWC, calcField(c.LWC))
	cont.RegisterField(dsd.FieldD0, calcField(c.D0))
	cont.RegisterField(dsd.FieldNw, calcField(c.Nw))
	cont.RegisterField(dsd.FieldNt, calcField(c.Nt))
	cont.RegisterField(dsd.FieldDm, calcField(c.Dm))
	cont.RegisterField(dsd.FieldDmax, calcField(c.Dmax))
}

func calcField(fn func(dsd.Spectrum) float64) dsd.FieldCalculator {
	return dsd.FieldCalculatorFunc(func(_ *dsd.BinTable, s dsd.Spectrum) (float64, error) {
		return fn(s), nil
	})
}
