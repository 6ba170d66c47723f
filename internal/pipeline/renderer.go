package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	pkgerrors "github.com/pkg/errors"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/quality"
)

// Renderer writes run results to disk and to the terminal
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// WriteCSV writes the results table, one row per fitted line, in the column
// order of model.ResultsHeader
func (r *Renderer) WriteCSV(table *model.ResultsTable, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return pkgerrors.Wrapf(err, "failed to create output directory %s", dir)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create results file %s", path)
	}
	if err := writeTable(f, table); err != nil {
		_ = f.Close()
		return pkgerrors.Wrapf(err, "failed to write results file %s", path)
	}
	return f.Close()
}

func writeTable(w io.Writer, table *model.ResultsTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.ResultsHeader); err != nil {
		return err
	}
	for _, rec := range table.Records {
		row := []string{
			formatFloat(rec.Energy),
			formatFloat(rec.PeakLoc),
			formatFloat(rec.FWHM),
			formatFloat(rec.Amp),
			formatFloat(rec.FWHMkeV),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Summary prints the fitted lines, the calibration and anything left out
func (r *Renderer) Summary(w io.Writer, result *RunResult) {
	table := result.Table

	fmt.Fprintln(w, bold("%s calibration", table.Detector))
	for _, rec := range table.Records {
		fmt.Fprintf(w, "  %-3s %9.3f keV  ch %8.2f  FWHM %7.2f ch / %7.2f keV  %s\n",
			rec.Isotope, rec.Energy, rec.PeakLoc, rec.FWHM, rec.FWHMkeV, mark(quality.Worst(rec.Signals)))
	}

	line := table.Calibration
	fmt.Fprintf(w, "  E = %s keV  (R² %.5f, %d peaks)\n",
		color.New(color.Bold, color.FgGreen).Sprintf("%.5g·ch %+.5g", line.Slope, line.Intercept),
		line.RSquared, line.Points)

	if len(table.Failures) > 0 {
		fmt.Fprintln(w, bold("Failed fits:"))
		for _, f := range table.Failures {
			fmt.Fprintf(w, "  %s\n", color.RedString("%s %g keV in %s %s: %v", f.Isotope, f.Energy, f.File, f.Range, f.Err))
		}
	}
	if len(table.Skipped) > 0 {
		fmt.Fprintln(w, bold("Skipped files:"))
		for _, s := range table.Skipped {
			fmt.Fprintf(w, "  %s\n", color.YellowString("%s (%s)", s.File, s.Reason))
		}
	}

	fmt.Fprintf(w, "Results: %s\n", bold("%s", result.CSVPath))
	if len(result.Figures) > 0 {
		fmt.Fprintf(w, "Figures: %d written\n", len(result.Figures))
	}
}

func mark(severity model.SignalSeverity) string {
	switch severity {
	case model.SeverityCritical:
		return color.New(color.Bold, color.FgRed).Sprint("✘")
	case model.SeverityWarning:
		return color.New(color.Bold, color.FgYellow).Sprint("!")
	default:
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
