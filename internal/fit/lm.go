package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultMaxIterations bounds the Levenberg-Marquardt loop
const DefaultMaxIterations = 1000

// Convergence check: after the main run, a short second run from the
// solution must not lower the SSR by more than this. A run stopped by the
// iteration cap still has room to improve and fails the check.
const (
	recheckIterations = 10
	recheckRelTol     = 1e-4
	recheckAbsTol     = 1e-8 // relative to Σy²
)

var (
	// ErrNonFinite reports NaN or Inf in the data, the parameters or the residuals
	ErrNonFinite = errors.New("fit produced non-finite values")
	// ErrNoConvergence reports a solver stopped before reaching a minimum
	ErrNoConvergence = errors.New("fit did not converge")
)

// Model evaluates a fit function at x for the given parameters
type Model func(x float64, params []float64) float64

// Options tunes the solver
type Options struct {
	MaxIterations int
}

// Result holds the fitted parameters and their 1σ uncertainties
type Result struct {
	Params     []float64
	Errors     []float64 // +Inf when the covariance cannot be estimated
	SSR        float64   // sum of squared residuals
	ReducedChi float64   // SSR/(n-p); NaN when n <= p
}

// LeastSquares fits f to (x, y) starting from init. Uncertainties come from
// the covariance (JᵀJ)⁻¹·SSR/(n-p) evaluated at the solution.
func LeastSquares(x, y []float64, f Model, init []float64, opts Options) (*Result, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("x has %d points, y has %d", len(x), len(y))
	}
	n, p := len(x), len(init)
	if n < p {
		return nil, fmt.Errorf("%d parameters need at least %d points, got %d", p, p, n)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if err := checkFinite(x, y); err != nil {
		return nil, err
	}

	residuals := func(dst, params []float64) {
		for i := range x {
			dst[i] = f(x[i], params) - y[i]
		}
	}

	nj := &lm.NumJac{Func: residuals}
	problem := lm.LMProblem{
		Dim:        p,
		Size:       n,
		Func:       residuals,
		Jac:        nj.Jac,
		InitParams: append([]float64(nil), init...),
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	result, err := lm.LM(problem, &lm.Settings{Iterations: opts.MaxIterations, ObjectiveTol: 1e-16})
	if err != nil {
		return nil, fmt.Errorf("levenberg-marquardt: %w", err)
	}
	params := append([]float64(nil), result.X...)
	for _, v := range params {
		if !finite(v) {
			return nil, ErrNonFinite
		}
	}

	r := make([]float64, n)
	ssr := sumSquares(r, residuals, params)
	if !finite(ssr) {
		return nil, ErrNonFinite
	}

	problem.InitParams = append([]float64(nil), params...)
	if again, err := lm.LM(problem, &lm.Settings{Iterations: recheckIterations, ObjectiveTol: 1e-16}); err == nil {
		if better := sumSquares(r, residuals, again.X); finite(better) &&
			ssr-better > recheckRelTol*ssr+recheckAbsTol*floats.Dot(y, y) {
			return nil, fmt.Errorf("%w after %d iterations (SSR %g, still falling to %g)",
				ErrNoConvergence, opts.MaxIterations, ssr, better)
		}
	}

	out := &Result{
		Params:     params,
		Errors:     make([]float64, p),
		SSR:        ssr,
		ReducedChi: math.NaN(),
	}
	for i := range out.Errors {
		out.Errors[i] = math.Inf(1)
	}
	if n <= p {
		return out, nil
	}
	out.ReducedChi = ssr / float64(n-p)

	jac := mat.NewDense(n, p, nil)
	fd.Jacobian(jac, residuals, params, &fd.JacobianSettings{Formula: fd.Central})

	var normal, cov mat.Dense
	normal.Mul(jac.T(), jac)
	if err := cov.Inverse(&normal); err != nil {
		// singular or near-singular; leave the uncertainties at +Inf
		return out, nil
	}
	for i := 0; i < p; i++ {
		if v := cov.At(i, i) * out.ReducedChi; v >= 0 {
			out.Errors[i] = math.Sqrt(v)
		}
	}
	return out, nil
}

func sumSquares(dst []float64, residuals func(dst, params []float64), params []float64) float64 {
	residuals(dst, params)
	return floats.Dot(dst, dst)
}

func checkFinite(x, y []float64) error {
	for i := range x {
		if !finite(x[i]) || !finite(y[i]) {
			return fmt.Errorf("point %d (%v, %v): %w", i, x[i], y[i], ErrNonFinite)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
