package fit

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestPolyfit_RecoversQuadratic(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		want  []float64
	}{
		{"near origin", 0, []float64{0.5, -2, 3}},
		{"high channels", 225, []float64{-1e-4, 0.03, 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var x, y []float64
			for i := 0; i < 50; i++ {
				v := tt.start + float64(i)
				x = append(x, v)
				y = append(y, Polyval(tt.want, v))
			}

			got, err := Polyfit(x, y, 2)
			if err != nil {
				t.Fatalf("Polyfit failed: %v", err)
			}
			for i := range tt.want {
				if !almostEqual(got[i], tt.want[i], 1e-7*math.Max(1, math.Abs(tt.want[i]))) {
					t.Errorf("coefficient %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestPolyfit_Errors(t *testing.T) {
	if _, err := Polyfit([]float64{1, 2}, []float64{1, 2}, 2); err == nil {
		t.Error("expected error for too few points")
	}
	if _, err := Polyfit([]float64{1, 2, 3}, []float64{1, 2}, 1); err == nil {
		t.Error("expected error for length mismatch")
	}
	if _, err := Polyfit([]float64{1, 2, 3}, []float64{1, 2, 3}, -1); err == nil {
		t.Error("expected error for negative degree")
	}
}

func TestPolyval(t *testing.T) {
	if got := Polyval([]float64{1, 0, -1}, 3); got != 8 {
		t.Errorf("expected 8, got %v", got)
	}
	if got := Polyval(nil, 3); got != 0 {
		t.Errorf("expected 0 for no coefficients, got %v", got)
	}
}
