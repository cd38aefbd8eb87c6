package moments

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
	"github.com/couchcryptid/disdro-dsd-service/internal/gamma"
)

func uniformTable(t *testing.T, n int, widthMM float64) *dsd.BinTable {
	t.Helper()
	centers := make([]float64, n)
	widths := make([]float64, n)
	for i := range centers {
		widths[i] = widthMM
		centers[i] = widthMM/2 + widthMM*float64(i)
	}
	tbl, err := dsd.NewBinTable(centers, widths, dsd.VelocityAtlasUlbrich)
	require.NoError(t, err)
	return tbl
}

func TestMoment(t *testing.T) {
	tbl := uniformTable(t, 4, 1.0) // centers 0.5, 1.5, 2.5, 3.5
	calc := NewCalculator(tbl)
	s := dsd.Spectrum{Nd: []float64{10, 0, 4, 0}}

	// M0 = 10·1 + 4·1; M3 = 10·0.5³ + 4·2.5³
	assert.InDelta(t, 14.0, calc.Moment(s, 0), 1e-12)
	assert.InDelta(t, 10*0.125+4*15.625, calc.Moment(s, 3), 1e-12)
	assert.Zero(t, calc.Moment(dsd.Spectrum{Nd: []float64{0, 0, 0, 0}}, 3))
}

func TestSingleBinSpectrum(t *testing.T) {
	// One occupied bin centered at 2.0 mm, 0.1 mm wide, N = 100 m⁻³ mm⁻¹.
	// Every quantity has a closed form.
	tbl, err := dsd.NewBinTable([]float64{1.0, 2.0, 3.0}, []float64{0.1, 0.1, 0.1}, dsd.VelocityAtlasUlbrich)
	require.NoError(t, err)
	calc := NewCalculator(tbl)
	s := dsd.Spectrum{Nd: []float64{0, 100, 0}}

	m3 := 100 * 8.0 * 0.1 // N·D³·ΔD

	t.Run("lwc", func(t *testing.T) {
		assert.InDelta(t, 1e-3*math.Pi/6*m3, calc.LWC(s), 1e-12)
	})

	t.Run("rain rate", func(t *testing.T) {
		v := 3.78 * math.Pow(2.0, 0.67)
		assert.InDelta(t, 0.6*math.Pi*1e-3*100*8.0*v*0.1, calc.RainRate(s), 1e-12)
	})

	t.Run("d0 is the bin center", func(t *testing.T) {
		assert.InDelta(t, 2.0, calc.D0(s), 1e-12)
	})

	t.Run("dm and dmax", func(t *testing.T) {
		assert.InDelta(t, 2.0, calc.Dm(s), 1e-12)
		assert.InDelta(t, 2.0, calc.Dmax(s), 1e-12)
	})

	t.Run("nt", func(t *testing.T) {
		assert.InDelta(t, 10.0, calc.Nt(s), 1e-12)
	})

	t.Run("nw", func(t *testing.T) {
		w := calc.LWC(s)
		want := math.Pow(3.67, 4) / math.Pi * 1e3 * w / math.Pow(2.0, 4)
		assert.InDelta(t, want, calc.Nw(s), 1e-9)
	})
}

func TestEmptySpectrum(t *testing.T) {
	tbl := uniformTable(t, 10, 0.5)
	calc := NewCalculator(tbl)
	s := dsd.Spectrum{Nd: make([]float64, 10)}

	assert.Zero(t, calc.LWC(s))
	assert.Zero(t, calc.RainRate(s))
	assert.Zero(t, calc.D0(s))
	assert.Zero(t, calc.Nw(s))
	assert.Zero(t, calc.Nt(s))
	assert.Zero(t, calc.Dm(s))
	assert.Zero(t, calc.Dmax(s))
}

func TestD0HalfMassProperty(t *testing.T) {
	tbl := uniformTable(t, 50, 0.2)
	calc := NewCalculator(tbl)

	nd := make([]float64, 50)
	for i := range nd {
		d := tbl.Bin(i).CenterMM
		nd[i] = 8000 * math.Exp(-2.1*d)
	}
	s := dsd.Spectrum{Nd: nd}

	d0 := calc.D0(s)
	require.Positive(t, d0)

	// Third-moment mass below D0 equals half the total, counting the
	// straddling bin proportionally.
	total := calc.Moment(s, 3)
	below := 0.0
	for i := range nd {
		b := tbl.Bin(i)
		left := b.CenterMM - b.WidthMM/2
		right := b.CenterMM + b.WidthMM/2
		contrib := nd[i] * math.Pow(b.CenterMM, 3) * b.WidthMM
		switch {
		case right <= d0:
			below += contrib
		case left < d0:
			below += contrib * (d0 - left) / b.WidthMM
		}
	}
	assert.InEpsilon(t, total/2, below, 1e-9)
}

func TestScalingLinearity(t *testing.T) {
	tbl := uniformTable(t, 50, 0.2)
	calc := NewCalculator(tbl)

	nd := make([]float64, 50)
	for i := range nd {
		d := tbl.Bin(i).CenterMM
		nd[i] = 5000 * math.Pow(d, 2) * math.Exp(-3*d)
	}
	s := dsd.Spectrum{Nd: nd}
	doubled := s.Scaled(2)

	// Integral quantities scale linearly; diameter scales are invariant.
	assert.InEpsilon(t, 2*calc.LWC(s), calc.LWC(doubled), 1e-12)
	assert.InEpsilon(t, 2*calc.RainRate(s), calc.RainRate(doubled), 1e-12)
	assert.InEpsilon(t, 2*calc.Nt(s), calc.Nt(doubled), 1e-12)
	assert.InDelta(t, calc.D0(s), calc.D0(doubled), 1e-12)
	assert.InDelta(t, calc.Dm(s), calc.Dm(doubled), 1e-12)
}

func TestEvaluateGamma(t *testing.T) {
	tbl := uniformTable(t, 20, 0.25)
	calc := NewCalculator(tbl)

	t.Run("defined fit", func(t *testing.T) {
		fit := gamma.FitResult{N0: 8000, Mu: 2, Lambda: 2.5, Defined: true}
		s := calc.EvaluateGamma(fit)

		require.Len(t, s.Nd, 20)
		d := tbl.Bin(3).CenterMM
		assert.InDelta(t, 8000*d*d*math.Exp(-2.5*d), s.Nd[3], 1e-9)
	})

	t.Run("undefined fit", func(t *testing.T) {
		s := calc.EvaluateGamma(gamma.Undefined(gamma.MethodMoments))
		assert.True(t, s.AllZero())
	})
}

func TestCalculatorRegister(t *testing.T) {
	tbl := uniformTable(t, 10, 0.5)
	c := dsd.NewContainer(tbl)
	NewCalculator(tbl).Register(c)

	want := []dsd.Field{
		dsd.FieldD0, dsd.FieldDm, dsd.FieldDmax, dsd.FieldLWC,
		dsd.FieldNt, dsd.FieldNw, dsd.FieldRainRate,
	}
	assert.Equal(t, want, c.RegisteredFields())
}
