package analysis

import (
	"fmt"
	"io"
	"sort"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/fit"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/plot"
)

// ResolutionPoint is one peak's relative resolution R = FWHM/E
type ResolutionPoint struct {
	Energy float64 // keV
	R      float64
}

// ResolutionResult is the fit R² = a·E⁻² + b·E⁻¹ + c
type ResolutionResult struct {
	Points []ResolutionPoint // sorted by energy
	Params [3]float64        // a, b, c
	Errors [3]float64        // 1σ; +Inf with only three points
}

var resolutionBasis = []fit.Basis{
	func(e float64) float64 { return 1 / (e * e) },
	func(e float64) float64 { return 1 / e },
	func(float64) float64 { return 1 },
}

// Resolution fits the squared relative resolution against energy
func Resolution(energies, fwhmKeV []float64) (*ResolutionResult, error) {
	if len(energies) != len(fwhmKeV) {
		return nil, fmt.Errorf("%d energies but %d widths", len(energies), len(fwhmKeV))
	}
	if len(energies) < 3 {
		return nil, fmt.Errorf("resolution fit needs at least 3 peaks, got %d", len(energies))
	}

	res := &ResolutionResult{Points: make([]ResolutionPoint, len(energies))}
	for i, e := range energies {
		if e <= 0 {
			return nil, fmt.Errorf("row %d: energy must be positive, got %g", i+1, e)
		}
		res.Points[i] = ResolutionPoint{Energy: e, R: fwhmKeV[i] / e}
	}
	sort.SliceStable(res.Points, func(i, j int) bool { return res.Points[i].Energy < res.Points[j].Energy })

	x := make([]float64, len(res.Points))
	y := make([]float64, len(res.Points))
	for i, p := range res.Points {
		x[i] = p.Energy
		y[i] = p.R * p.R
	}

	f, err := fit.LinearModel(x, y, resolutionBasis)
	if err != nil {
		return nil, fmt.Errorf("resolution fit: %w", err)
	}
	copy(res.Params[:], f.Params)
	copy(res.Errors[:], f.Errors)
	return res, nil
}

// ResolutionFromTable reads energy and FWHM (keV) columns and fits them
func ResolutionFromTable(t *Table) (*ResolutionResult, error) {
	energies, err := t.Column(model.ColumnEnergy)
	if err != nil {
		return nil, err
	}
	widths, err := t.Column(model.ColumnFWHMkeV)
	if err != nil {
		return nil, err
	}
	return Resolution(energies, widths)
}

// Eval returns the fitted R² at energy e
func (r *ResolutionResult) Eval(e float64) float64 {
	return r.Params[0]/(e*e) + r.Params[1]/e + r.Params[2]
}

// Equation renders the fit with its uncertainties
func (r *ResolutionResult) Equation() string {
	return fmt.Sprintf("R^2 = (%.4g ± %.2g)E^-2 + (%.4g ± %.2g)E^-1 + (%.4g ± %.2g)",
		r.Params[0], r.Errors[0], r.Params[1], r.Errors[1], r.Params[2], r.Errors[2])
}

// WriteReport prints the per-peak resolution and the fitted curve
func (r *ResolutionResult) WriteReport(w io.Writer, detector string) {
	fmt.Fprintf(w, "Resolution for the %s detector\n", detector)
	fmt.Fprintf(w, "%-15s %-15s %-15s\n", "Energy (keV)", "R", "R^2")
	for _, p := range r.Points {
		fmt.Fprintf(w, "%-15.1f %-15.6f %-15.6g\n", p.Energy, p.R, p.R*p.R)
	}
	fmt.Fprintf(w, "Fit: %s\n", r.Equation())
}

// Figure plots R² against energy with the fitted curve
func (r *ResolutionResult) Figure(detector string) plot.Figure {
	x := make([]float64, len(r.Points))
	y := make([]float64, len(r.Points))
	for i, p := range r.Points {
		x[i] = p.Energy
		y[i] = p.R * p.R
	}
	cx, cy := plot.Curve(r.Eval, x[0], x[len(x)-1], 300, false)

	return plot.Figure{
		Name:   detector + "_resolution",
		Title:  fmt.Sprintf("Resolution by energy for the %s detector", detector),
		XLabel: "E (keV)",
		YLabel: "R^2",
		Series: []plot.Series{
			{Label: "data", X: x, Y: y},
			{Label: "fit", X: cx, Y: cy, Line: true},
		},
	}
}
