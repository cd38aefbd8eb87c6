package moments

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PowerLaw holds the coefficients of a one-predictor rainfall relationship
// R = A·X^B fitted over a processed time series.
type PowerLaw struct {
	A float64
	B float64
}

// Evaluate returns A·x^B.
func (p PowerLaw) Evaluate(x float64) float64 {
	return p.A * math.Pow(x, p.B)
}

// PowerLaw2 holds the coefficients of a two-predictor relationship
// R = A·X^B·Y^C.
type PowerLaw2 struct {
	A float64
	B float64
	C float64
}

// Evaluate returns A·x^B·y^C.
func (p PowerLaw2) Evaluate(x, y float64) float64 {
	return p.A * math.Pow(x, p.B) * math.Pow(y, p.C)
}

// ErrInsufficientSamples is returned when fewer valid samples remain after
// filtering than the relationship has coefficients.
var ErrInsufficientSamples = errors.New("not enough positive samples for a power-law fit")

// FitRKdp fits R = a·Kdp^b over samples where both rain rate and Kdp are
// positive; other samples carry no information for a log-space fit.
func FitRKdp(rainRate, kdp []float64) (PowerLaw, error) {
	return fitPowerLaw(kdp, rainRate)
}

// FitRZh fits R = a·Zh^b with Zh converted from dBZ to linear reflectivity.
func FitRZh(rainRate, zhDB []float64) (PowerLaw, error) {
	return fitPowerLaw(idb(zhDB), rainRate)
}

// FitRZhZdr fits R = a·Zh^b·Zdr^c with both radar moments converted from
// decibels to linear scale.
func FitRZhZdr(rainRate, zhDB, zdrDB []float64) (PowerLaw2, error) {
	return fitPowerLaw2(idb(zhDB), idb(zdrDB), rainRate)
}

// FitRZhKdp fits R = a·Zh^b·Kdp^c.
func FitRZhKdp(rainRate, zhDB, kdp []float64) (PowerLaw2, error) {
	return fitPowerLaw2(idb(zhDB), kdp, rainRate)
}

// FitRZdrKdp fits R = a·Zdr^b·Kdp^c.
func FitRZdrKdp(rainRate, zdrDB, kdp []float64) (PowerLaw2, error) {
	return fitPowerLaw2(idb(zdrDB), kdp, rainRate)
}

// fitPowerLaw solves ln R = ln a + b·ln X by ordinary least squares.
func fitPowerLaw(x, r []float64) (PowerLaw, error) {
	var lx, lr []float64
	for i := range r {
		if i >= len(x) || x[i] <= 0 || r[i] <= 0 || !finite(x[i]) || !finite(r[i]) {
			continue
		}
		lx = append(lx, math.Log(x[i]))
		lr = append(lr, math.Log(r[i]))
	}
	if len(lr) < 2 {
		return PowerLaw{}, ErrInsufficientSamples
	}
	alpha, beta := stat.LinearRegression(lx, lr, nil, false)
	return PowerLaw{A: math.Exp(alpha), B: beta}, nil
}

// fitPowerLaw2 solves ln R = ln a + b·ln X + c·ln Y by QR least squares.
func fitPowerLaw2(x, y, r []float64) (PowerLaw2, error) {
	var lx, ly, lr []float64
	for i := range r {
		if i >= len(x) || i >= len(y) ||
			x[i] <= 0 || y[i] <= 0 || r[i] <= 0 ||
			!finite(x[i]) || !finite(y[i]) || !finite(r[i]) {
			continue
		}
		lx = append(lx, math.Log(x[i]))
		ly = append(ly, math.Log(y[i]))
		lr = append(lr, math.Log(r[i]))
	}
	n := len(lr)
	if n < 3 {
		return PowerLaw2{}, ErrInsufficientSamples
	}

	design := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		design.Set(i, 1, lx[i])
		design.Set(i, 2, ly[i])
	}
	rhs := mat.NewVecDense(n, lr)

	var qr mat.QR
	qr.Factorize(design)
	coeffs := mat.NewVecDense(3, nil)
	if err := qr.SolveVecTo(coeffs, false, rhs); err != nil {
		return PowerLaw2{}, err
	}

	return PowerLaw2{
		A: math.Exp(coeffs.AtVec(0)),
		B: coeffs.AtVec(1),
		C: coeffs.AtVec(2),
	}, nil
}

// idb converts a decibel series to linear scale.
func idb(db []float64) []float64 {
	out := make([]float64, len(db))
	for i, v := range db {
		out[i] = math.Pow(10, 0.1*v)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
