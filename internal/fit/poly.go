// Package fit holds the least-squares machinery: polynomial fits, a
// Levenberg-Marquardt wrapper with parameter uncertainties, the compound
// quadratic-plus-Gaussian peak fit and the linear energy calibration.
package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrIllConditioned reports a design matrix too close to singular to solve
var ErrIllConditioned = errors.New("ill-conditioned least-squares problem")

// Polyfit fits a polynomial of the given degree to (x, y) by ordinary least
// squares. Coefficients are returned highest power first, so a degree-2 fit
// yields a, b, c of a·x²+b·x+c.
func Polyfit(x, y []float64, degree int) ([]float64, error) {
	if degree < 0 {
		return nil, fmt.Errorf("negative degree %d", degree)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("x has %d points, y has %d", len(x), len(y))
	}
	n, p := len(x), degree+1
	if n < p {
		return nil, fmt.Errorf("degree %d fit needs at least %d points, got %d", degree, p, n)
	}

	// Solve in u = (x-center)/scale so the Vandermonde columns stay comparable
	center := floats.Sum(x) / float64(n)
	scale := 0.0
	for _, v := range x {
		scale = math.Max(scale, math.Abs(v-center))
	}
	if scale == 0 {
		scale = 1
	}

	design := mat.NewDense(n, p, nil)
	for i, v := range x {
		u := (v - center) / scale
		pow := 1.0
		for k := 0; k < p; k++ {
			design.Set(i, k, pow)
			pow *= u
		}
	}

	var coef mat.VecDense
	if err := coef.SolveVec(design, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: condition number %.3g", ErrIllConditioned, float64(cond))
		}
		return nil, fmt.Errorf("solve polynomial fit: %w", err)
	}

	// Expand sum c_k·((x-center)/scale)^k into powers of x
	ascending := make([]float64, p)
	for k := 0; k < p; k++ {
		ck := coef.AtVec(k) / math.Pow(scale, float64(k))
		for j := 0; j <= k; j++ {
			ascending[j] += ck * binomial(k, j) * math.Pow(-center, float64(k-j))
		}
	}

	out := make([]float64, p)
	for k, c := range ascending {
		out[p-1-k] = c
	}
	return out, nil
}

// Polyval evaluates coefficients (highest power first) at x
func Polyval(coeffs []float64, x float64) float64 {
	v := 0.0
	for _, c := range coeffs {
		v = v*x + c
	}
	return v
}

func binomial(n, k int) float64 {
	r := 1.0
	for i := 1; i <= k; i++ {
		r *= float64(n-k+i) / float64(i)
	}
	return r
}
