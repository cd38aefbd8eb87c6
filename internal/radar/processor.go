// Package radar computes polarimetric radar moments (Zh, Zdr, Kdp, Ai) by
// integrating drop size distributions against externally supplied scattering
// amplitudes. The package never computes amplitudes itself; a T-matrix or
// Mie model behind the [ScatteringProvider] interface owns that.
package radar

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
)

// Amplitudes holds the complex scattering amplitudes, in mm, for one drop
// diameter at the provider's wavelength and temperature: backscatter and
// forward scatter at horizontal and vertical polarization.
type Amplitudes struct {
	BackH complex128
	BackV complex128
	FwdH  complex128
	FwdV  complex128
}

// ScatteringProvider is the external scattering-table capability. It is a
// pure lookup with a bounded diameter domain; queries outside the domain
// fail with a *ScatteringLookupError rather than returning zero, which would
// silently corrupt a reflectivity integral.
type ScatteringProvider interface {
	WavelengthMM() float64
	TemperatureC() float64
	Amplitudes(diameterMM float64) (Amplitudes, error)
}

// ScatteringLookupError reports a scattering lookup outside the provider's
// domain, naming the missing key.
type ScatteringLookupError struct {
	DiameterMM   float64
	TemperatureC float64
	WavelengthMM float64
}

func (e *ScatteringLookupError) Error() string {
	return fmt.Sprintf("no scattering entry for diameter %.3f mm (temperature %.1f °C, wavelength %.2f mm)",
		e.DiameterMM, e.TemperatureC, e.WavelengthMM)
}

// KwSqWater is |Kw|², the dielectric factor of liquid water conventionally
// used at weather-radar wavelengths.
const KwSqWater = 0.93

// NoSignalDBZ is the sentinel reflectivity for an all-zero spectrum: the
// linear integral is exactly zero, and its decibel value is −∞ rather than
// NaN so aggregates over a series stay well defined.
var NoSignalDBZ = math.Inf(-1)

// Processor integrates spectra against one scattering provider. Amplitude
// lookups are resolved per bin on first use and memoized, keyed by bin
// index; bins that never hold a drop are never looked up, so a table
// covering only the instrument's occupied range is sufficient.
type Processor struct {
	table    *dsd.BinTable
	provider ScatteringProvider
	kwSq     float64

	mu   sync.Mutex
	amps []*Amplitudes
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithDielectricFactor overrides the |Kw|² constant in the reflectivity
// prefactor.
func WithDielectricFactor(kwSq float64) ProcessorOption {
	return func(p *Processor) { p.kwSq = kwSq }
}

// NewProcessor creates a radar moment processor for one bin table and one
// scattering configuration. Multiple processors with different wavelengths
// or temperatures run concurrently without interference; there is no shared
// global table.
func NewProcessor(table *dsd.BinTable, provider ScatteringProvider, opts ...ProcessorOption) *Processor {
	p := &Processor{
		table:    table,
		provider: provider,
		kwSq:     KwSqWater,
		amps:     make([]*Amplitudes, table.Len()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// binAmplitudes returns the memoized amplitudes for a bin, looking them up
// on first use.
func (p *Processor) binAmplitudes(i int) (Amplitudes, error) {
	p.mu.Lock()
	cached := p.amps[i]
	p.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	a, err := p.provider.Amplitudes(p.table.Bin(i).CenterMM)
	if err != nil {
		return Amplitudes{}, err
	}

	p.mu.Lock()
	p.amps[i] = &a
	p.mu.Unlock()
	return a, nil
}

// zPrefactor is λ⁴/(π⁵·|Kw|²), the reflectivity normalization with λ in mm,
// yielding Z in mm⁶ m⁻³ when multiplied by Σ N·σ·ΔD.
func (p *Processor) zPrefactor() float64 {
	wl := p.provider.WavelengthMM()
	return wl * wl * wl * wl / (math.Pi * math.Pi * math.Pi * math.Pi * math.Pi * p.kwSq)
}

// reflectivityLinear integrates Σ N·σ·ΔD with σ = 4π·|S_back|² for the
// selected polarization.
func (p *Processor) reflectivityLinear(s dsd.Spectrum, vertical bool) (float64, error) {
	sum := 0.0
	for i, n := range s.Nd {
		if n <= 0 {
			continue
		}
		a, err := p.binAmplitudes(i)
		if err != nil {
			return 0, err
		}
		back := a.BackH
		if vertical {
			back = a.BackV
		}
		mag := cmplx.Abs(back)
		sigma := 4 * math.Pi * mag * mag
		sum += n * sigma * p.table.Bin(i).WidthMM
	}
	return p.zPrefactor() * sum, nil
}

// ZhLinear returns the horizontal reflectivity factor in mm⁶ m⁻³.
func (p *Processor) ZhLinear(s dsd.Spectrum) (float64, error) {
	return p.reflectivityLinear(s, false)
}

// ZvLinear returns the vertical reflectivity factor in mm⁶ m⁻³.
func (p *Processor) ZvLinear(s dsd.Spectrum) (float64, error) {
	return p.reflectivityLinear(s, true)
}

// Zh returns the horizontal reflectivity in dBZ, or NoSignalDBZ for an
// all-zero spectrum.
func (p *Processor) Zh(s dsd.Spectrum) (float64, error) {
	zh, err := p.ZhLinear(s)
	if err != nil {
		return 0, err
	}
	if zh <= 0 {
		return NoSignalDBZ, nil
	}
	return 10 * math.Log10(zh), nil
}

// Zdr returns the differential reflectivity 10·log10(Zh/Zv) in dB, or 0 for
// an all-zero spectrum.
func (p *Processor) Zdr(s dsd.Spectrum) (float64, error) {
	zh, err := p.ZhLinear(s)
	if err != nil {
		return 0, err
	}
	zv, err := p.ZvLinear(s)
	if err != nil {
		return 0, err
	}
	if zh <= 0 || zv <= 0 {
		return 0, nil
	}
	return 10 * math.Log10(zh/zv), nil
}

// Kdp returns the specific differential phase in deg/km:
// Kdp = 10⁻³·(180·λ/π)·Σ N·Re(f_h − f_v)·ΔD, a forward-scattering integral.
func (p *Processor) Kdp(s dsd.Spectrum) (float64, error) {
	sum := 0.0
	for i, n := range s.Nd {
		if n <= 0 {
			continue
		}
		a, err := p.binAmplitudes(i)
		if err != nil {
			return 0, err
		}
		sum += n * real(a.FwdH-a.FwdV) * p.table.Bin(i).WidthMM
	}
	return 1e-3 * 180 * p.provider.WavelengthMM() / math.Pi * sum, nil
}

// Ai returns the one-way specific attenuation at horizontal polarization in
// dB/km: Ai = 8.686·10⁻³·λ·Σ N·Im(f_h)·ΔD.
func (p *Processor) Ai(s dsd.Spectrum) (float64, error) {
	sum := 0.0
	for i, n := range s.Nd {
		if n <= 0 {
			continue
		}
		a, err := p.binAmplitudes(i)
		if err != nil {
			return 0, err
		}
		sum += n * imag(a.FwdH) * p.table.Bin(i).WidthMM
	}
	return 8.686e-3 * p.provider.WavelengthMM() * sum, nil
}

// Register attaches the radar moment fields to a container built against
// the processor's bin table.
func (p *Processor) Register(c *dsd.Container) {
	c.RegisterField(dsd.FieldZh, radarField(p.Zh))
	c.RegisterField(dsd.FieldZdr, radarField(p.Zdr))
	c.RegisterField(dsd.FieldKdp, radarField(p.Kdp))
	c.RegisterField(dsd.FieldAi, radarField(p.Ai))
}

func radarField(fn func(dsd.Spectrum) (float64, error)) dsd.FieldCalculator {
	return dsd.FieldCalculatorFunc(func(_ *dsd.BinTable, s dsd.Spectrum) (float64, error) {
		return fn(s)
	})
}

// Wire converts the processor's moments for one spectrum into the JSON-safe
// wire form. No-signal samples map to nil Zh/Zdr.
func (p *Processor) Wire(s dsd.Spectrum) (*dsd.RadarMoments, error) {
	zh, err := p.Zh(s)
	if err != nil {
		return nil, err
	}
	zdr, err := p.Zdr(s)
	if err != nil {
		return nil, err
	}
	kdp, err := p.Kdp(s)
	if err != nil {
		return nil, err
	}
	ai, err := p.Ai(s)
	if err != nil {
		return nil, err
	}

	out := &dsd.RadarMoments{Kdp: kdp, Ai: ai}
	if !math.IsInf(zh, -1) {
		out.Zh = &zh
		out.Zdr = &zdr
	}
	return out, nil
}
