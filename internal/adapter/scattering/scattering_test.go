package scattering

import (
	"errors"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
	"github.com/couchcryptid/disdro-dsd-service/internal/radar"
)

func twoPointTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(31.86, 10,
		[]float64{1.0, 3.0},
		[]radar.Amplitudes{
			{BackH: 0.01 + 0.001i, BackV: 0.008 + 0.001i, FwdH: 0.002 + 0i, FwdV: 0.001 + 0i},
			{BackH: 0.05 + 0.003i, BackV: 0.040 + 0.003i, FwdH: 0.010 + 0i, FwdV: 0.007 + 0i},
		})
	require.NoError(t, err)
	return tbl
}

func TestNewTableValidation(t *testing.T) {
	amps := []radar.Amplitudes{{}, {}}

	t.Run("empty", func(t *testing.T) {
		_, err := NewTable(31.86, 10, nil, nil)
		assert.Error(t, err)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := NewTable(31.86, 10, []float64{1}, amps)
		assert.Error(t, err)
	})

	t.Run("non-increasing diameters", func(t *testing.T) {
		_, err := NewTable(31.86, 10, []float64{2, 2}, amps)
		assert.Error(t, err)
	})

	t.Run("non-positive wavelength", func(t *testing.T) {
		_, err := NewTable(0, 10, []float64{1, 2}, amps)
		assert.Error(t, err)
	})
}

func TestTableLookup(t *testing.T) {
	tbl := twoPointTable(t)

	t.Run("exact grid point", func(t *testing.T) {
		a, err := tbl.Amplitudes(1.0)
		require.NoError(t, err)
		assert.Equal(t, 0.01+0.001i, a.BackH)
	})

	t.Run("interpolates midway", func(t *testing.T) {
		a, err := tbl.Amplitudes(2.0)
		require.NoError(t, err)
		assert.InDelta(t, 0.03, real(a.BackH), 1e-12)
		assert.InDelta(t, 0.002, imag(a.BackH), 1e-12)
		assert.InDelta(t, 0.006, real(a.FwdH), 1e-12)
	})

	t.Run("below grid", func(t *testing.T) {
		_, err := tbl.Amplitudes(0.5)

		var lookupErr *radar.ScatteringLookupError
		require.ErrorAs(t, err, &lookupErr)
		assert.Equal(t, 0.5, lookupErr.DiameterMM)
		assert.Equal(t, 31.86, lookupErr.WavelengthMM)
	})

	t.Run("above grid", func(t *testing.T) {
		_, err := tbl.Amplitudes(3.5)
		assert.True(t, errors.As(err, new(*radar.ScatteringLookupError)))
	})
}

func TestLoad(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "table.json")
		payload := `{
			"wavelength_mm": 53.5,
			"temperature_c": 20,
			"entries": [
				{"diameter_mm": 0.5, "back_h": {"re": 0.001, "im": 0.0001}, "back_v": {"re": 0.001, "im": 0.0001}, "fwd_h": {"re": 0.0002, "im": 0}, "fwd_v": {"re": 0.0002, "im": 0}},
				{"diameter_mm": 2.5, "back_h": {"re": 0.02, "im": 0.002}, "back_v": {"re": 0.017, "im": 0.002}, "fwd_h": {"re": 0.004, "im": 0.001}, "fwd_v": {"re": 0.003, "im": 0.001}}
			]
		}`
		require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

		tbl, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 53.5, tbl.WavelengthMM())
		assert.Equal(t, 20.0, tbl.TemperatureC())

		a, err := tbl.Amplitudes(2.5)
		require.NoError(t, err)
		assert.Equal(t, 0.02+0.002i, a.BackH)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("unsorted entries rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "unsorted.json")
		payload := `{"wavelength_mm": 31.86, "temperature_c": 10, "entries": [
			{"diameter_mm": 2.0}, {"diameter_mm": 1.0}
		]}`
		require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestRayleigh(t *testing.T) {
	tbl := Rayleigh(31.86, 10, 8.0, 0.05)

	t.Run("covers the requested domain", func(t *testing.T) {
		_, err := tbl.Amplitudes(0.06)
		assert.NoError(t, err)
		_, err = tbl.Amplitudes(7.9)
		assert.NoError(t, err)
		_, err = tbl.Amplitudes(9.0)
		assert.Error(t, err)
	})

	t.Run("backscatter grows with diameter", func(t *testing.T) {
		small, err := tbl.Amplitudes(1.0)
		require.NoError(t, err)
		large, err := tbl.Amplitudes(4.0)
		require.NoError(t, err)

		assert.Greater(t, cmplx.Abs(large.BackH), cmplx.Abs(small.BackH))
	})

	t.Run("oblate drops favor horizontal", func(t *testing.T) {
		a, err := tbl.Amplitudes(4.0)
		require.NoError(t, err)

		assert.Greater(t, cmplx.Abs(a.BackH), cmplx.Abs(a.BackV))
		assert.Greater(t, real(a.FwdH-a.FwdV), 0.0, "positive differential phase in rain")
	})

	t.Run("small drops are nearly spherical", func(t *testing.T) {
		a, err := tbl.Amplitudes(0.3)
		require.NoError(t, err)

		ratio := cmplx.Abs(a.BackH) / cmplx.Abs(a.BackV)
		assert.InDelta(t, 1.0, ratio, 0.02)
	})
}

// In the Rayleigh regime the linear horizontal reflectivity must reduce to
// the sixth moment, Σ N·D⁶·ΔD, up to the |K|²/0.93 dielectric ratio.
func TestRayleighSixthMomentIdentity(t *testing.T) {
	binTable, err := dsd.NewBinTable([]float64{0.5}, []float64{0.1}, dsd.VelocityAtlasUlbrich)
	require.NoError(t, err)

	proc := radar.NewProcessor(binTable, Rayleigh(100, 10, 5, 0.05))

	zh, err := proc.ZhLinear(dsd.Spectrum{Nd: []float64{1000}})
	require.NoError(t, err)
	assert.InEpsilon(t, 1000*math.Pow(0.5, 6)*0.1, zh, 2e-3)
}

func TestCachedProvider(t *testing.T) {
	t.Run("caches repeated lookups", func(t *testing.T) {
		inner := &countingProvider{table: twoPointTable(t)}
		cached := NewCachedProvider(inner, 10)

		for range 3 {
			_, err := cached.Amplitudes(2.0)
			require.NoError(t, err)
		}

		assert.Equal(t, 1, inner.calls)
		assert.Equal(t, inner.table.WavelengthMM(), cached.WavelengthMM())
		assert.Equal(t, inner.table.TemperatureC(), cached.TemperatureC())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		inner := &countingProvider{table: twoPointTable(t)}
		cached := NewCachedProvider(inner, 10)

		for range 2 {
			_, err := cached.Amplitudes(99)
			assert.Error(t, err)
		}
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		inner := &countingProvider{table: twoPointTable(t)}
		cached := NewCachedProvider(inner, 2)

		mustLookup(t, cached, 1.0)
		mustLookup(t, cached, 2.0)
		mustLookup(t, cached, 1.0) // refresh 1.0
		mustLookup(t, cached, 3.0) // evicts 2.0
		mustLookup(t, cached, 1.0) // still cached
		assert.Equal(t, 3, inner.calls)

		mustLookup(t, cached, 2.0) // re-fetch
		assert.Equal(t, 4, inner.calls)
	})
}

type countingProvider struct {
	table *Table
	calls int
}

func (p *countingProvider) WavelengthMM() float64 { return p.table.WavelengthMM() }
func (p *countingProvider) TemperatureC() float64 { return p.table.TemperatureC() }
func (p *countingProvider) Amplitudes(d float64) (radar.Amplitudes, error) {
	p.calls++
	return p.table.Amplitudes(d)
}

func mustLookup(t *testing.T, p radar.ScatteringProvider, d float64) {
	t.Helper()
	_, err := p.Amplitudes(d)
	require.NoError(t, err)
}
