package analysis

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/fit"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/plot"
)

// AngularResult is the off-axis response fit amp(θ) = A·cosθ + B
type AngularResult struct {
	AnglesDeg []float64
	Amps      []float64 // counts/s
	A, B      float64
	Errors    [2]float64 // 1σ of A and B; +Inf with only two points
	RSquared  float64
}

var angularBasis = []fit.Basis{
	func(deg float64) float64 { return math.Cos(deg * math.Pi / 180) },
	func(float64) float64 { return 1 },
}

// Angular fits peak amplitude against source angle
func Angular(anglesDeg, amps []float64) (*AngularResult, error) {
	if len(anglesDeg) != len(amps) {
		return nil, fmt.Errorf("%d angles but %d amplitudes", len(anglesDeg), len(amps))
	}
	if len(anglesDeg) < 2 {
		return nil, fmt.Errorf("angular fit needs at least 2 angles, got %d", len(anglesDeg))
	}

	f, err := fit.LinearModel(anglesDeg, amps, angularBasis)
	if err != nil {
		return nil, fmt.Errorf("angular fit: %w", err)
	}

	res := &AngularResult{
		AnglesDeg: anglesDeg,
		Amps:      amps,
		A:         f.Params[0],
		B:         f.Params[1],
		Errors:    [2]float64{f.Errors[0], f.Errors[1]},
	}

	cosines := make([]float64, len(anglesDeg))
	for i, a := range anglesDeg {
		cosines[i] = angularBasis[0](a)
	}
	if stat.Variance(amps, nil) > 0 {
		res.RSquared = stat.RSquared(cosines, amps, nil, res.B, res.A)
	}
	return res, nil
}

// AngularFromTable reads angle and amp columns and fits them
func AngularFromTable(t *Table) (*AngularResult, error) {
	angles, err := t.Column(model.ColumnAngle)
	if err != nil {
		return nil, err
	}
	amps, err := t.Column(model.ColumnAmp)
	if err != nil {
		return nil, err
	}
	return Angular(angles, amps)
}

// Eval returns the fitted amplitude at angleDeg
func (r *AngularResult) Eval(angleDeg float64) float64 {
	return r.A*angularBasis[0](angleDeg) + r.B
}

// WriteReport prints the measured and fitted amplitudes
func (r *AngularResult) WriteReport(w io.Writer, detector string) {
	fmt.Fprintf(w, "Off-axis response for the %s detector\n", detector)
	fmt.Fprintf(w, "%-15s %-15s %-15s\n", "Angle (deg)", "Amp (c/s)", "Fit (c/s)")
	for i, a := range r.AnglesDeg {
		fmt.Fprintf(w, "%-15.1f %-15.4f %-15.4f\n", a, r.Amps[i], r.Eval(a))
	}
	fmt.Fprintf(w, "Fit: amp = (%.4g ± %.2g)cos(theta) + (%.4g ± %.2g), R^2 = %.4f\n",
		r.A, r.Errors[0], r.B, r.Errors[1], r.RSquared)
}

// Figure plots amplitude against angle with the fitted curve
func (r *AngularResult) Figure(detector string) plot.Figure {
	sorted := append([]float64(nil), r.AnglesDeg...)
	sort.Float64s(sorted)
	cx, cy := plot.Curve(r.Eval, sorted[0], sorted[len(sorted)-1], 200, false)

	return plot.Figure{
		Name:   detector + "_angular",
		Title:  fmt.Sprintf("Characterizing %s Detector Off-Axis Response", detector),
		XLabel: "Angle (deg)",
		YLabel: "Peak Amplitude (counts/sec)",
		Series: []plot.Series{
			{Label: "data", X: r.AnglesDeg, Y: r.Amps},
			{Label: "A cos(theta) + B", X: cx, Y: cy, Line: true},
		},
	}
}
