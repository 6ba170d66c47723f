package peak

import "testing"

func TestCoarse(t *testing.T) {
	rates := make([]float64, 100)
	for i := 0; i < DefaultSkip; i++ {
		rates[i] = 1000 // pedestal
	}
	rates[50] = 40
	rates[51] = 30

	idx, err := Coarse(rates, DefaultSkip)
	if err != nil {
		t.Fatalf("Coarse failed: %v", err)
	}
	if idx != 40 {
		t.Errorf("expected relative index 40, got %d", idx)
	}

	abs, err := CoarseAbsolute(rates, DefaultSkip)
	if err != nil {
		t.Fatalf("CoarseAbsolute failed: %v", err)
	}
	if abs != 50 {
		t.Errorf("expected channel 50, got %d", abs)
	}
}

func TestCoarse_TieResolvesLow(t *testing.T) {
	rates := []float64{0, 5, 1, 5}
	idx, err := Coarse(rates, 0)
	if err != nil {
		t.Fatalf("Coarse failed: %v", err)
	}
	if idx != 1 {
		t.Errorf("expected first maximum at 1, got %d", idx)
	}
}

func TestCoarse_Errors(t *testing.T) {
	if _, err := Coarse(make([]float64, 10), 10); err == nil {
		t.Error("expected error when nothing is left after the skip")
	}
	if _, err := Coarse(make([]float64, 10), -1); err == nil {
		t.Error("expected error for negative skip")
	}
	if _, err := CoarseAbsolute(nil, 0); err == nil {
		t.Error("expected error for empty spectrum")
	}
}
