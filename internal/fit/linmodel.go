package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Basis is one term of a model that is linear in its parameters
type Basis func(x float64) float64

// LinearModel fits y = Σ p_k·basis_k(x) by least squares. The solution is
// exact, so no starting point or iteration limit is needed. Columns are
// normalized before solving; basis terms of very different magnitude (E⁻²
// next to a constant) are common here.
func LinearModel(x, y []float64, basis []Basis) (*Result, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("x has %d points, y has %d", len(x), len(y))
	}
	n, p := len(x), len(basis)
	if p == 0 {
		return nil, errors.New("no basis functions")
	}
	if n < p {
		return nil, fmt.Errorf("%d parameters need at least %d points, got %d", p, p, n)
	}

	design := mat.NewDense(n, p, nil)
	for i, v := range x {
		for k, b := range basis {
			design.Set(i, k, b(v))
		}
	}

	scale := make([]float64, p)
	for k := 0; k < p; k++ {
		col := mat.Col(nil, k, design)
		scale[k] = floats.Norm(col, 2)
		if scale[k] == 0 {
			return nil, fmt.Errorf("%w: basis term %d is zero at every point", ErrIllConditioned, k)
		}
		floats.Scale(1/scale[k], col)
		design.SetCol(k, col)
	}

	var coef mat.VecDense
	if err := coef.SolveVec(design, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: condition number %.3g", ErrIllConditioned, float64(cond))
		}
		return nil, fmt.Errorf("solve linear model: %w", err)
	}

	out := &Result{
		Params:     make([]float64, p),
		Errors:     make([]float64, p),
		ReducedChi: math.NaN(),
	}
	for k := 0; k < p; k++ {
		out.Params[k] = coef.AtVec(k) / scale[k]
		out.Errors[k] = math.Inf(1)
	}

	var fitted mat.VecDense
	fitted.MulVec(design, &coef)
	for i := 0; i < n; i++ {
		r := fitted.AtVec(i) - y[i]
		out.SSR += r * r
	}
	if n <= p {
		return out, nil
	}
	out.ReducedChi = out.SSR / float64(n-p)

	var normal, cov mat.Dense
	normal.Mul(design.T(), design)
	if err := cov.Inverse(&normal); err != nil {
		return out, nil
	}
	for k := 0; k < p; k++ {
		if v := cov.At(k, k) * out.ReducedChi; v >= 0 {
			out.Errors[k] = math.Sqrt(v) / scale[k]
		}
	}
	return out, nil
}
