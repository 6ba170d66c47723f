package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/peak"
)

// MinSigma is the smallest |σ| accepted as a real peak
const MinSigma = 1e-9

var (
	// ErrCollapsedPeak reports a Gaussian whose width went to zero
	ErrCollapsedPeak = errors.New("fitted peak width collapsed to zero")
	// ErrWindowTooSmall reports a window with fewer points than parameters
	ErrWindowTooSmall = errors.New("fit window too small")
)

// parameter order of the compound model
const (
	pMu = iota
	pSigma
	pAmp
	pA
	pB
	pC
	compoundParams
)

// CompoundOptions configures Compound
type CompoundOptions struct {
	Estimator     peak.Estimator // seeds the quadratic; nil means running mean
	MaxIterations int
}

// Gaussian is an area-normalized Gaussian: amp·exp(-(x-mu)²/2σ²)/sqrt(2πσ²)
func Gaussian(x, mu, sigma, amp float64) float64 {
	d := x - mu
	return amp * math.Exp(-0.5*d*d/(sigma*sigma)) / math.Sqrt(2*math.Pi*sigma*sigma)
}

// CompoundValue evaluates a fitted peak plus its quadratic background at x
func CompoundValue(p model.PeakFit, x float64) float64 {
	return Polyval(p.Background[:], x) + Gaussian(x, p.Center, p.Sigma, p.Amplitude)
}

// Compound fits a quadratic background plus one Gaussian to a window of net
// rates. x must be sorted ascending. The returned fit has Range unset; the
// caller knows which channel range x came from.
func Compound(x, y []float64, opts CompoundOptions) (model.PeakFit, error) {
	n := len(x)
	if n != len(y) {
		return model.PeakFit{}, fmt.Errorf("x has %d points, y has %d", n, len(y))
	}
	if n < compoundParams {
		return model.PeakFit{}, fmt.Errorf("%w: compound fit needs at least %d points, got %d",
			ErrWindowTooSmall, compoundParams, n)
	}
	if err := checkFinite(x, y); err != nil {
		return model.PeakFit{}, err
	}
	estimator := opts.Estimator
	if estimator == nil {
		estimator = peak.RunningMean{}
	}

	// Work in u = x - mid; the quadratic terms of raw channel numbers in the
	// hundreds make the Jacobian badly scaled otherwise
	mid := (x[0] + x[n-1]) / 2
	u := make([]float64, n)
	for i, v := range x {
		u[i] = v - mid
	}

	init, err := compoundSeeds(x, u, y, estimator)
	if err != nil {
		return model.PeakFit{}, err
	}

	res, err := LeastSquares(u, y, compoundModel, init, Options{MaxIterations: opts.MaxIterations})
	if err != nil {
		return model.PeakFit{}, err
	}
	p := res.Params
	if err := checkWidth(p[pSigma]); err != nil {
		return model.PeakFit{}, err
	}

	// a(x-m)²+b(x-m)+c expanded into powers of x
	a, b, c := p[pA], p[pB], p[pC]
	return model.PeakFit{
		Center:     p[pMu] + mid,
		Sigma:      math.Abs(p[pSigma]),
		Amplitude:  p[pAmp],
		Background: [3]float64{a, b - 2*a*mid, c - b*mid + a*mid*mid},
		Errors: model.FitErrors{
			Center:    res.Errors[pMu],
			Sigma:     res.Errors[pSigma],
			Amplitude: res.Errors[pAmp],
		},
		ReducedChi: res.ReducedChi,
	}, nil
}

func checkWidth(sigma float64) error {
	if math.Abs(sigma) < MinSigma {
		return fmt.Errorf("%w: sigma %g", ErrCollapsedPeak, sigma)
	}
	return nil
}

func compoundModel(u float64, p []float64) float64 {
	return p[pA]*u*u + p[pB]*u + p[pC] + Gaussian(u, p[pMu], p[pSigma], p[pAmp])
}

// compoundSeeds returns initial parameters in the centered frame:
// amplitude from the window's range, center from the rate-weighted mean,
// sigma a tenth of the window and the quadratic from the estimator output.
func compoundSeeds(x, u, y []float64, estimator peak.Estimator) ([]float64, error) {
	n := len(x)
	init := make([]float64, compoundParams)

	init[pAmp] = floats.Max(y) - floats.Min(y)

	mid := (x[0] + x[n-1]) / 2
	mu := mid
	if sum := floats.Sum(y); sum > 0 {
		if weighted := floats.Dot(x, y) / sum; weighted >= x[0] && weighted <= x[n-1] {
			mu = weighted
		}
	}
	init[pMu] = mu - mid

	init[pSigma] = (x[n-1] - x[0]) / 10
	if init[pSigma] == 0 {
		init[pSigma] = 1
	}

	quad, err := Polyfit(u, estimator.Estimate(y), 2)
	if err != nil {
		return nil, fmt.Errorf("seed background: %w", err)
	}
	init[pA], init[pB], init[pC] = quad[0], quad[1], quad[2]
	return init, nil
}
