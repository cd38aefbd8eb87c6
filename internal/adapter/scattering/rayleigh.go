package scattering

import (
	"math"

	"github.com/couchcryptid/disdro-dsd-service/internal/radar"
)

// kWater is the dielectric factor K = (m²−1)/(m²+2) of liquid water near
// 10 °C at centimeter wavelengths.
var kWater = complex(0.964, 0.0089)

// Rayleigh builds a synthetic amplitude table from the Rayleigh small-drop
// approximation S = π²·K·D³/(2·λ²), with drop oblateness folded in through
// the Brandes et al. (2002) axis-ratio polynomial at vertical polarization.
// It is a stand-in for a proper T-matrix grid: adequate for tests, defaults,
// and sanity runs at S-band, increasingly wrong for large drops at shorter
// wavelengths.
func Rayleigh(wavelengthMM, temperatureC, maxDiameterMM, stepMM float64) *Table {
	if stepMM <= 0 {
		stepMM = 0.05
	}
	n := int(maxDiameterMM/stepMM) + 1

	diameters := make([]float64, 0, n)
	amps := make([]radar.Amplitudes, 0, n)
	for d := stepMM; d <= maxDiameterMM+stepMM/2; d += stepMM {
		s := complex(math.Pi*math.Pi*d*d*d/(2*wavelengthMM*wavelengthMM), 0) * kWater
		r := axisRatio(d)
		h := s
		v := s * complex(r, 0)
		diameters = append(diameters, d)
		amps = append(amps, radar.Amplitudes{BackH: h, BackV: v, FwdH: h, FwdV: v})
	}

	t, err := NewTable(wavelengthMM, temperatureC, diameters, amps)
	if err != nil {
		panic(err) // the generated grid is increasing by construction
	}
	return t
}

// axisRatio is the Brandes et al. (2002) polynomial for the equilibrium
// vertical-to-horizontal axis ratio of a raindrop of diameter D mm, clamped
// to (0, 1].
func axisRatio(d float64) float64 {
	r := 0.9951 + d*(0.0251+d*(-0.03644+d*(0.005303-d*0.0002492)))
	if r > 1 {
		return 1
	}
	if r < 0.3 {
		return 0.3
	}
	return r
}
