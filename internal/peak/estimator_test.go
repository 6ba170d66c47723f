package peak

import (
	"errors"
	"math"
	"testing"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

const tolerance = 1e-12

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestNewEstimator(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"running-mean", RunningMeanName},
		{"", RunningMeanName},
		{"sigma-clip", SigmaClipName},
	}
	for _, tt := range tests {
		e, err := NewEstimator(tt.name)
		if err != nil {
			t.Errorf("NewEstimator(%q): unexpected error %v", tt.name, err)
			continue
		}
		if e.Name() != tt.want {
			t.Errorf("NewEstimator(%q) = %s, want %s", tt.name, e.Name(), tt.want)
		}
	}

	_, err := NewEstimator("spline")
	if !errors.Is(err, model.ErrConfig) {
		t.Errorf("expected ErrConfig for unknown estimator, got %v", err)
	}
}

func TestRunningMean(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"empty", nil, []float64{}},
		{"peak after baseline", []float64{0, 0, 10, 0}, []float64{0, 0, 0, 0}},
		// first sample is high, so the window mean (2.5) stands in for it
		{"peak first", []float64{10, 0, 0, 0}, []float64{2.5, 0, 0, 0}},
		{"mean of kept so far", []float64{1, 0, 9, 9}, []float64{1, 0, 0.5, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RunningMean{}.Estimate(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d samples, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if !almostEqual(got[i], tt.want[i], tolerance) {
					t.Errorf("sample %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestRunningMean_OrderSensitive(t *testing.T) {
	a := RunningMean{}.Estimate([]float64{0, 0, 0, 10})
	b := RunningMean{}.Estimate([]float64{10, 0, 0, 0})
	if a[3] == b[0] {
		t.Errorf("expected order to matter, both replaced with %v", a[3])
	}
}

func TestSigmaClip(t *testing.T) {
	in := []float64{1, 2, 1, 2, 1, 2, 100}
	got := NewSigmaClip().Estimate(in)

	for i := 0; i < 6; i++ {
		if got[i] != in[i] {
			t.Errorf("sample %d: expected unchanged %v, got %v", i, in[i], got[i])
		}
	}
	if !almostEqual(got[6], 1.5, tolerance) {
		t.Errorf("expected outlier replaced by 1.5, got %v", got[6])
	}
	if in[6] != 100 {
		t.Error("input must not be modified")
	}
}

func TestSigmaClip_FlatInput(t *testing.T) {
	in := []float64{3, 3, 3, 3}
	got := NewSigmaClip().Estimate(in)
	for i := range in {
		if got[i] != 3 {
			t.Errorf("sample %d: expected 3, got %v", i, got[i])
		}
	}
}
