package dsd

import (
	"fmt"
	"math"
)

// VelocityRelation names an empirical terminal fall-velocity relation.
// The set is closed: each disdrometer type ships with the relation its
// processing conventions assume, selected by name rather than by passing
// arbitrary functions around.
type VelocityRelation string

const (
	// VelocityAtlasUlbrich is the power law v(D) = 3.78·D^0.67 (v in m/s,
	// D in mm), the common choice for impact disdrometers.
	VelocityAtlasUlbrich VelocityRelation = "atlas-ulbrich"

	// VelocityAtlas1973 is the exponential fit to the Gunn-Kinzer data,
	// v(D) = 9.65 − 10.3·exp(−0.6·D), floored at 0.5 m/s so the smallest
	// channels never contribute a negative fall speed.
	VelocityAtlas1973 VelocityRelation = "atlas-1973"

	// VelocityGunnKinzer approximates the Gunn-Kinzer measurements with
	// v(D) = 4.854·D·exp(−0.195·D).
	VelocityGunnKinzer VelocityRelation = "gunn-kinzer"
)

// Velocity returns the terminal fall velocity in m/s for a drop of the given
// diameter in mm.
func (r VelocityRelation) Velocity(diameterMM float64) float64 {
	switch r {
	case VelocityAtlasUlbrich:
		return 3.78 * math.Pow(diameterMM, 0.67)
	case VelocityAtlas1973:
		v := 9.65 - 10.3*math.Exp(-0.6*diameterMM)
		if v < 0.5 {
			return 0.5
		}
		return v
	case VelocityGunnKinzer:
		return 4.854 * diameterMM * math.Exp(-0.195*diameterMM)
	default:
		return 0
	}
}

func (r VelocityRelation) valid() bool {
	switch r {
	case VelocityAtlasUlbrich, VelocityAtlas1973, VelocityGunnKinzer:
		return true
	}
	return false
}

// DiameterBin describes one instrument size channel.
type DiameterBin struct {
	Index        int
	CenterMM     float64
	WidthMM      float64
	FallVelocity float64 // m/s, from the table's velocity relation
}

// BinTable is the immutable description of an instrument's diameter bins.
// A single table is shared read-only by every container, estimator, and
// processor referencing the same instrument configuration.
type BinTable struct {
	bins     []DiameterBin
	relation VelocityRelation
}

// NewBinTable builds a bin table from bin centers and widths (both in mm)
// and a named velocity relation. Centers must be strictly increasing and
// widths strictly positive.
func NewBinTable(centersMM, widthsMM []float64, rel VelocityRelation) (*BinTable, error) {
	if len(centersMM) == 0 {
		return nil, &ConfigurationError{Reason: "no bins"}
	}
	if len(centersMM) != len(widthsMM) {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("%d centers but %d widths", len(centersMM), len(widthsMM)),
		}
	}
	if !rel.valid() {
		return nil, &ConfigurationError{Reason: "unknown velocity relation " + string(rel)}
	}

	bins := make([]DiameterBin, len(centersMM))
	for i, c := range centersMM {
		if widthsMM[i] <= 0 {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("bin %d has non-positive width %g", i, widthsMM[i]),
			}
		}
		if i > 0 && c <= centersMM[i-1] {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("bin centers not increasing at index %d", i),
			}
		}
		bins[i] = DiameterBin{
			Index:        i,
			CenterMM:     c,
			WidthMM:      widthsMM[i],
			FallVelocity: rel.Velocity(c),
		}
	}

	return &BinTable{bins: bins, relation: rel}, nil
}

// Len returns the number of bins.
func (t *BinTable) Len() int { return len(t.bins) }

// Bin returns the bin at the given index.
func (t *BinTable) Bin(i int) DiameterBin { return t.bins[i] }

// FallVelocity returns the empirical terminal velocity in m/s for the bin at
// the given index.
func (t *BinTable) FallVelocity(i int) float64 { return t.bins[i].FallVelocity }

// Relation returns the velocity relation the table was built with.
func (t *BinTable) Relation() VelocityRelation { return t.relation }

// Centers returns a copy of the bin center diameters in mm.
func (t *BinTable) Centers() []float64 {
	out := make([]float64, len(t.bins))
	for i, b := range t.bins {
		out[i] = b.CenterMM
	}
	return out
}

// Widths returns a copy of the bin widths in mm.
func (t *BinTable) Widths() []float64 {
	out := make([]float64, len(t.bins))
	for i, b := range t.bins {
		out[i] = b.WidthMM
	}
	return out
}
