package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/peak"
)

func syntheticPeak(start, end int, mu, sigma, amp float64, bg [3]float64) (x, y []float64) {
	for ch := start; ch < end; ch++ {
		v := float64(ch)
		x = append(x, v)
		y = append(y, Polyval(bg[:], v)+Gaussian(v, mu, sigma, amp))
	}
	return x, y
}

func TestCompound_RecoversPeak(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		mu         float64
		estimator  peak.Estimator
	}{
		{"low window running mean", 0, 120, 60, peak.RunningMean{}},
		{"high window running mean", 225, 400, 310, peak.RunningMean{}},
		{"sigma clip", 0, 120, 55, peak.NewSigmaClip()},
		{"default estimator", 0, 120, 60, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mid := float64(tt.start+tt.end) / 2
			// gentle background in the window frame, expanded to absolute channels
			a, b, c := 1e-4, -0.002, 1.0
			bg := [3]float64{a, b - 2*a*mid, c - b*mid + a*mid*mid}
			x, y := syntheticPeak(tt.start, tt.end, tt.mu, 5, 500, bg)

			fit, err := Compound(x, y, CompoundOptions{Estimator: tt.estimator})
			if err != nil {
				t.Fatalf("Compound failed: %v", err)
			}
			if !almostEqual(fit.Center, tt.mu, 1e-2) {
				t.Errorf("expected center %v, got %v", tt.mu, fit.Center)
			}
			if !almostEqual(fit.Sigma, 5, 1e-2) {
				t.Errorf("expected sigma 5, got %v", fit.Sigma)
			}
			if !almostEqual(fit.Amplitude, 500, 1) {
				t.Errorf("expected amplitude 500, got %v", fit.Amplitude)
			}
			for _, v := range x {
				if !almostEqual(CompoundValue(fit, v), Polyval(bg[:], v)+Gaussian(v, tt.mu, 5, 500), 1e-2) {
					t.Errorf("model mismatch at channel %v", v)
					break
				}
			}
		})
	}
}

func TestCompound_TooFewPoints(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	_, err := Compound(x, make([]float64, len(x)), CompoundOptions{})
	if !errors.Is(err, ErrWindowTooSmall) {
		t.Errorf("expected ErrWindowTooSmall, got %v", err)
	}
}

func TestCompound_NonFiniteRates(t *testing.T) {
	x, y := syntheticPeak(0, 120, 60, 5, 500, [3]float64{0, 0, 1})
	y[70] = math.NaN()

	_, err := Compound(x, y, CompoundOptions{})
	if !errors.Is(err, ErrNonFinite) {
		t.Errorf("expected ErrNonFinite, got %v", err)
	}
}

func TestCompound_IterationCap(t *testing.T) {
	x, y := syntheticPeak(0, 120, 60, 5, 500, [3]float64{0, 0, 1})

	if _, err := Compound(x, y, CompoundOptions{MaxIterations: 1}); err == nil {
		t.Error("expected an error when one iteration cannot reach the minimum")
	}
}

func TestCheckWidth(t *testing.T) {
	tests := []struct {
		sigma     float64
		collapsed bool
	}{
		{0, true},
		{1e-12, true},
		{-1e-12, true},
		{MinSigma, false},
		{-3, false},
		{5, false},
	}

	for _, tt := range tests {
		err := checkWidth(tt.sigma)
		if got := errors.Is(err, ErrCollapsedPeak); got != tt.collapsed {
			t.Errorf("sigma %g: expected collapsed=%v, got %v", tt.sigma, tt.collapsed, err)
		}
	}
}

func TestCompound_LengthMismatch(t *testing.T) {
	if _, err := Compound(make([]float64, 10), make([]float64, 9), CompoundOptions{}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestPeakFitFWHM(t *testing.T) {
	p := model.PeakFit{Sigma: 1}
	if !almostEqual(p.FWHM(), 2.3548, 1e-12) {
		t.Errorf("expected FWHM 2.3548 for sigma 1, got %v", p.FWHM())
	}
	p.Sigma = -2
	if !almostEqual(p.FWHM(), 4.7096, 1e-12) {
		t.Errorf("expected FWHM from |sigma|, got %v", p.FWHM())
	}
}

func TestGaussianArea(t *testing.T) {
	sum := 0.0
	for i := -500; i <= 500; i++ {
		sum += Gaussian(float64(i)*0.1, 0, 3, 7) * 0.1
	}
	if !almostEqual(sum, 7, 1e-6) {
		t.Errorf("expected area 7, got %v", sum)
	}
	if math.IsNaN(Gaussian(0, 0, 1, 1)) {
		t.Error("unexpected NaN")
	}
}
