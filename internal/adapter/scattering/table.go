// Package scattering provides in-memory implementations of the radar
// package's ScatteringProvider capability: a diameter-gridded amplitude
// table loadable from JSON (typically precomputed by a T-matrix code), a
// Rayleigh-approximation generator for defaults and tests, and an LRU cache
// decorator.
package scattering

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/disdro-dsd-service/internal/radar"
)

// Table is a scattering amplitude grid over drop diameter for a single
// wavelength/temperature configuration. Lookups between grid points
// interpolate linearly; lookups outside the grid fail with a
// *radar.ScatteringLookupError.
type Table struct {
	wavelengthMM float64
	temperatureC float64
	diameters    []float64 // sorted ascending, mm
	amps         []radar.Amplitudes
}

// NewTable builds a table from parallel diameter and amplitude slices.
// Diameters must be strictly increasing.
func NewTable(wavelengthMM, temperatureC float64, diametersMM []float64, amps []radar.Amplitudes) (*Table, error) {
	if len(diametersMM) == 0 {
		return nil, fmt.Errorf("scattering table: no entries")
	}
	if len(diametersMM) != len(amps) {
		return nil, fmt.Errorf("scattering table: %d diameters but %d amplitude sets",
			len(diametersMM), len(amps))
	}
	for i := 1; i < len(diametersMM); i++ {
		if diametersMM[i] <= diametersMM[i-1] {
			return nil, fmt.Errorf("scattering table: diameters not increasing at index %d", i)
		}
	}
	if wavelengthMM <= 0 {
		return nil, fmt.Errorf("scattering table: non-positive wavelength %g", wavelengthMM)
	}
	return &Table{
		wavelengthMM: wavelengthMM,
		temperatureC: temperatureC,
		diameters:    diametersMM,
		amps:         amps,
	}, nil
}

// WavelengthMM returns the radar wavelength the table was computed for.
func (t *Table) WavelengthMM() float64 { return t.wavelengthMM }

// TemperatureC returns the drop temperature the table was computed for.
func (t *Table) TemperatureC() float64 { return t.temperatureC }

// Amplitudes returns the scattering amplitudes for a diameter in mm,
// interpolating between grid points.
func (t *Table) Amplitudes(diameterMM float64) (radar.Amplitudes, error) {
	first, last := t.diameters[0], t.diameters[len(t.diameters)-1]
	if diameterMM < first || diameterMM > last {
		return radar.Amplitudes{}, &radar.ScatteringLookupError{
			DiameterMM:   diameterMM,
			TemperatureC: t.temperatureC,
			WavelengthMM: t.wavelengthMM,
		}
	}

	hi := sort.SearchFloat64s(t.diameters, diameterMM)
	if hi < len(t.diameters) && t.diameters[hi] == diameterMM {
		return t.amps[hi], nil
	}
	lo := hi - 1
	frac := (diameterMM - t.diameters[lo]) / (t.diameters[hi] - t.diameters[lo])

	a, b := t.amps[lo], t.amps[hi]
	return radar.Amplitudes{
		BackH: lerpC(a.BackH, b.BackH, frac),
		BackV: lerpC(a.BackV, b.BackV, frac),
		FwdH:  lerpC(a.FwdH, b.FwdH, frac),
		FwdV:  lerpC(a.FwdV, b.FwdV, frac),
	}, nil
}

func lerpC(a, b complex128, frac float64) complex128 {
	return a + complex(frac, 0)*(b-a)
}
