package spectrum

import (
	"errors"
	"math"
	"testing"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

func TestToRate(t *testing.T) {
	s := &model.Spectrum{Path: "m", Counts: []float64{0, 10, 20}, LiveTime: 10}
	r := ToRate(s)

	want := []float64{0, 1, 2}
	for i := range want {
		if r.Rates[i] != want[i] {
			t.Errorf("channel %d: expected %v, got %v", i, want[i], r.Rates[i])
		}
	}
	if r.Source != "m" {
		t.Errorf("expected source m, got %q", r.Source)
	}
}

func TestSubtract(t *testing.T) {
	m := &model.Spectrum{Path: "m", Counts: []float64{100, 200, 300}, LiveTime: 100}
	b := &model.Spectrum{Path: "b", Counts: []float64{50, 50, 500}, LiveTime: 50}

	net, err := Subtract(m, b)
	if err != nil {
		t.Fatalf("Subtract failed: %v", err)
	}

	want := []float64{0, 1, -7}
	for i := range want {
		if math.Abs(net.Rates[i]-want[i]) > 1e-12 {
			t.Errorf("channel %d: expected %v, got %v", i, want[i], net.Rates[i])
		}
	}
	if net.Source != "m" || net.Background != "b" {
		t.Errorf("unexpected provenance %q / %q", net.Source, net.Background)
	}
}

func TestSubtract_ZeroBackground(t *testing.T) {
	m := &model.Spectrum{Counts: []float64{3, 6, 9}, LiveTime: 3}
	for _, live := range []float64{1, 17.5, 1e6} {
		b := &model.Spectrum{Counts: []float64{0, 0, 0}, LiveTime: live}

		net, err := Subtract(m, b)
		if err != nil {
			t.Fatalf("Subtract failed: %v", err)
		}
		rates := ToRate(m).Rates
		for i := range rates {
			if net.Rates[i] != rates[i] {
				t.Errorf("live %v channel %d: expected %v, got %v", live, i, rates[i], net.Rates[i])
			}
		}
	}
}

func TestSubtract_ShapeMismatch(t *testing.T) {
	m := &model.Spectrum{Path: "m", Counts: make([]float64, 1024), LiveTime: 1}
	b := &model.Spectrum{Path: "b", Counts: make([]float64, 2048), LiveTime: 1}

	_, err := Subtract(m, b)
	if !errors.Is(err, model.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}

	var mismatch *model.ShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *ShapeMismatchError, got %T", err)
	}
	if mismatch.Want != 1024 || mismatch.Got != 2048 {
		t.Errorf("unexpected lengths %d / %d", mismatch.Want, mismatch.Got)
	}
}
