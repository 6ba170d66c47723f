package analysis

import (
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/fit"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/plot"
)

// EfficiencyResult holds absolute and intrinsic efficiencies per peak
type EfficiencyResult struct {
	Energies  []float64 // keV
	Rates     []float64 // peak area, counts/s
	Branching []float64
	Absolute  []float64
	Intrinsic []float64 // at normal incidence

	AnglesDeg []float64
	Geometric []float64 // G(θ) per angle

	// ln ε_intr = LogFit[0]·(ln E)² + LogFit[1]·ln E + LogFit[2]; nil when
	// fewer than three peaks have positive efficiency
	LogFit []float64

	Strongest      int       // index of the peak with the largest rate
	AngleIntrinsic []float64 // ε_intr of the strongest peak per angle
}

// Geometric returns the solid-angle fraction A·cosθ/(4πd²) of a detector face
func Geometric(areaM2, distanceM, angleDeg float64) float64 {
	theta := angleDeg * math.Pi / 180
	return areaM2 * math.Cos(theta) / (4 * math.Pi * distanceM * distanceM)
}

// Efficiency computes ε_abs = rate/(activity·branching) and
// ε_intr = ε_abs/G(0). cfg.AnglesDeg[0] is taken as normal incidence.
func Efficiency(energies, rates []float64, cfg model.EfficiencyConfig) (*EfficiencyResult, error) {
	if len(energies) != len(rates) {
		return nil, fmt.Errorf("%d energies but %d rates", len(energies), len(rates))
	}
	if len(energies) == 0 {
		return nil, fmt.Errorf("no peaks in table")
	}
	if cfg.ActivityBq <= 0 || cfg.AreaM2 <= 0 || cfg.DistanceM <= 0 || len(cfg.AnglesDeg) == 0 {
		return nil, &model.ConfigError{Field: "efficiency", Message: "activity, area, distance and angles are required"}
	}

	branching := cfg.BranchingRatios
	switch {
	case len(branching) == 0:
		branching = make([]float64, len(energies))
		for i := range branching {
			branching[i] = 1
		}
	case len(branching) != len(energies):
		return nil, &model.ConfigError{
			Field:   "efficiency.branching_ratios",
			Message: fmt.Sprintf("have %d ratios for %d peaks", len(branching), len(energies)),
		}
	}

	res := &EfficiencyResult{
		Energies:  energies,
		Rates:     rates,
		Branching: branching,
		Absolute:  make([]float64, len(energies)),
		Intrinsic: make([]float64, len(energies)),
		AnglesDeg: cfg.AnglesDeg,
		Geometric: make([]float64, len(cfg.AnglesDeg)),
	}
	for i, a := range cfg.AnglesDeg {
		res.Geometric[i] = Geometric(cfg.AreaM2, cfg.DistanceM, a)
	}

	g0 := res.Geometric[0]
	for i := range energies {
		res.Absolute[i] = rates[i] / (cfg.ActivityBq * branching[i])
		res.Intrinsic[i] = rates[i] / (cfg.ActivityBq * branching[i] * g0)
	}

	for i, r := range rates {
		if r > rates[res.Strongest] {
			res.Strongest = i
		}
	}
	s := res.Strongest
	res.AngleIntrinsic = make([]float64, len(res.Geometric))
	for i, g := range res.Geometric {
		res.AngleIntrinsic[i] = rates[s] / (cfg.ActivityBq * branching[s] * g)
	}

	var lnE, lnEps []float64
	for i, e := range energies {
		if e > 0 && res.Intrinsic[i] > 0 {
			lnE = append(lnE, math.Log(e))
			lnEps = append(lnEps, math.Log(res.Intrinsic[i]))
		}
	}
	if len(lnE) >= 3 {
		p, err := fit.Polyfit(lnE, lnEps, 2)
		if err != nil {
			logrus.WithError(err).Warn("log-log efficiency fit failed")
		} else {
			res.LogFit = p
		}
	} else {
		logrus.WithField("points", len(lnE)).Warn("too few positive efficiencies for the log-log fit")
	}
	return res, nil
}

// EfficiencyFromTable reads energy and amp columns and computes efficiencies
func EfficiencyFromTable(t *Table, cfg model.EfficiencyConfig) (*EfficiencyResult, error) {
	energies, err := t.Column(model.ColumnEnergy)
	if err != nil {
		return nil, err
	}
	rates, err := t.Column(model.ColumnAmp)
	if err != nil {
		return nil, err
	}
	return Efficiency(energies, rates, cfg)
}

// FittedIntrinsic evaluates the log-log fit at energy e
func (r *EfficiencyResult) FittedIntrinsic(e float64) float64 {
	if r.LogFit == nil || e <= 0 {
		return math.NaN()
	}
	return math.Exp(fit.Polyval(r.LogFit, math.Log(e)))
}

// WriteReport prints the efficiency table
func (r *EfficiencyResult) WriteReport(w io.Writer, detector string) {
	rule := "------------------------------------------------------------"
	fmt.Fprintf(w, "\n%s\nEFFICIENCY RESULTS FOR %s DETECTOR\n%s\n", rule, detector, rule)
	fmt.Fprintf(w, "\n%-15s %-15s %-15s %-15s\n", "Energy (keV)", "Count Rate", "Abs. Eff.", "Intr. Eff.")
	fmt.Fprintln(w, rule)
	for i, e := range r.Energies {
		fmt.Fprintf(w, "%-15.1f %-15.1f %-15.6f %-15.6f\n", e, r.Rates[i], r.Absolute[i], r.Intrinsic[i])
	}
	if r.LogFit != nil {
		fmt.Fprintf(w, "\nln(eps_intr) fit: a=%.3f, b=%.3f, c=%.3f\n", r.LogFit[2], r.LogFit[1], r.LogFit[0])
	}
	if len(r.AnglesDeg) > 1 {
		fmt.Fprintf(w, "\nIntrinsic efficiency by angle (%.1f keV peak)\n", r.Energies[r.Strongest])
		for i, a := range r.AnglesDeg {
			fmt.Fprintf(w, "%-15.1f %-15.6f\n", a, r.AngleIntrinsic[i])
		}
	}
}

// Figures returns the absolute, intrinsic and (with several angles) angular
// efficiency plots
func (r *EfficiencyResult) Figures(detector string) []plot.Figure {
	figs := []plot.Figure{{
		Name:   detector + "_absolute_efficiency",
		Title:  "Absolute efficiency vs Energy",
		XLabel: "Energy (keV)",
		YLabel: "Absolute efficiency",
		LogX:   true,
		LogY:   true,
		Series: []plot.Series{{Label: "data", X: r.Energies, Y: r.Absolute}},
	}}

	intrinsic := plot.Figure{
		Name:   detector + "_intrinsic_efficiency",
		Title:  "Intrinsic efficiency vs Energy (log-log)",
		XLabel: "Energy (keV)",
		YLabel: "Intrinsic efficiency",
		LogX:   true,
		LogY:   true,
		Series: []plot.Series{{Label: "data", X: r.Energies, Y: r.Intrinsic}},
	}
	if lo, hi, ok := positiveRange(r.Energies); ok && r.LogFit != nil {
		// extend the curve past the data the same way on both ends in log space
		lo, hi = math.Exp(math.Log(lo)*0.9), math.Exp(math.Log(hi)*1.1)
		cx, cy := plot.Curve(r.FittedIntrinsic, lo, hi, 200, true)
		intrinsic.Series = append(intrinsic.Series, plot.Series{
			Label: fmt.Sprintf("ln eps fit: a=%.3f, b=%.3f, c=%.3f", r.LogFit[2], r.LogFit[1], r.LogFit[0]),
			X:     cx,
			Y:     cy,
			Line:  true,
		})
	}
	figs = append(figs, intrinsic)

	if len(r.AnglesDeg) > 1 {
		figs = append(figs, plot.Figure{
			Name:   detector + "_efficiency_angle",
			Title:  "Intrinsic efficiency vs Angle",
			XLabel: "Angle (deg)",
			YLabel: "Intrinsic efficiency",
			Series: []plot.Series{
				{X: r.AnglesDeg, Y: r.AngleIntrinsic},
				{Label: fmt.Sprintf("%.1f keV", r.Energies[r.Strongest]), X: r.AnglesDeg, Y: r.AngleIntrinsic, Line: true},
			},
		})
	}
	return figs
}

func positiveRange(values []float64) (lo, hi float64, ok bool) {
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if !ok || v < lo {
			lo = v
		}
		if !ok || v > hi {
			hi = v
		}
		ok = true
	}
	return lo, hi, ok
}
