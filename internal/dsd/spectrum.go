package dsd

import (
	"math"
	"time"
)

// Spectrum is one time sample of drop concentrations aligned to a bin table.
// Nd holds number concentrations in m⁻³ mm⁻¹, one per diameter bin. Counts
// optionally carries the raw drop counts the concentrations were derived from.
type Spectrum struct {
	Timestamp time.Time
	Nd        []float64
	Counts    []float64
}

// Sanitize returns a copy of the spectrum with negative and NaN
// concentrations replaced by zero, so degenerate instrument values never
// reach a moment integral.
func (s Spectrum) Sanitize() Spectrum {
	nd := make([]float64, len(s.Nd))
	for i, v := range s.Nd {
		if v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			nd[i] = v
		}
	}
	out := s
	out.Nd = nd
	return out
}

// AllZero reports whether every concentration is zero.
func (s Spectrum) AllZero() bool {
	for _, v := range s.Nd {
		if v != 0 {
			return false
		}
	}
	return true
}

// NonzeroBins returns the number of bins with a positive concentration.
func (s Spectrum) NonzeroBins() int {
	n := 0
	for _, v := range s.Nd {
		if v > 0 {
			n++
		}
	}
	return n
}

// Scaled returns a copy with every concentration multiplied by f. Raw counts
// are not carried over since they no longer correspond to the concentrations.
func (s Spectrum) Scaled(f float64) Spectrum {
	nd := make([]float64, len(s.Nd))
	for i, v := range s.Nd {
		nd[i] = v * f
	}
	return Spectrum{Timestamp: s.Timestamp, Nd: nd}
}
