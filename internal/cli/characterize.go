package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/analysis"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/plot"
)

// resolutionCmd represents the resolution command
var resolutionCmd = &cobra.Command{
	Use:   "resolution <results_csv> <detector>",
	Short: "Fit the energy resolution curve R(E) = FWHM/E",
	Long: `Resolution reads a results table written by calibrate and fits
R² = a·E⁻² + b·E⁻¹ + c to the relative resolution of every line.

Example:
  detlab resolution "NaITi + results.csv" NaITi`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, cfg, err := characterizeInputs(args)
		if err != nil {
			return err
		}
		res, err := analysis.ResolutionFromTable(table)
		if err != nil {
			return err
		}
		res.WriteReport(cmd.OutOrStdout(), args[1])
		return renderFigures(cfg, res.Figure(args[1]))
	},
}

// efficiencyCmd represents the efficiency command
var efficiencyCmd = &cobra.Command{
	Use:   "efficiency <results_csv> <detector>",
	Short: "Compute absolute, intrinsic and angular efficiency",
	Long: `Efficiency reads a results table and the source geometry from the
efficiency section of the config (activity, branching ratios, detector area,
distance and angles) and reports absolute and intrinsic efficiency per line,
a log-log quadratic fit of intrinsic efficiency against energy and, when the
table carries an angle column, intrinsic efficiency of the strongest line
against angle.

Example:
  detlab efficiency "BGO + results.csv" BGO --config lab.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, cfg, err := characterizeInputs(args)
		if err != nil {
			return err
		}
		if err := cfg.ValidateEfficiency(); err != nil {
			return err
		}
		res, err := analysis.EfficiencyFromTable(table, cfg.Efficiency)
		if err != nil {
			return err
		}
		res.WriteReport(cmd.OutOrStdout(), args[1])
		return renderFigures(cfg, res.Figures(args[1])...)
	},
}

// angularCmd represents the angular command
var angularCmd = &cobra.Command{
	Use:   "angular <results_csv> <detector>",
	Short: "Fit the off-axis response amp(θ) = A·cos θ + B",
	Long: `Angular reads a results table with an angle column (degrees) and
fits the peak amplitude against angle.

Example:
  detlab angular "CdTe + results.csv" CdTe`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, cfg, err := characterizeInputs(args)
		if err != nil {
			return err
		}
		res, err := analysis.AngularFromTable(table)
		if err != nil {
			return err
		}
		res.WriteReport(cmd.OutOrStdout(), args[1])
		return renderFigures(cfg, res.Figure(args[1]))
	},
}

func init() {
	rootCmd.AddCommand(resolutionCmd)
	rootCmd.AddCommand(efficiencyCmd)
	rootCmd.AddCommand(angularCmd)
}

// characterizeInputs loads the config, checks the detector name and reads
// the results table named by args
func characterizeInputs(args []string) (*analysis.Table, *model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if _, err := cfg.Detector(args[1]); err != nil {
		return nil, nil, err
	}
	table, err := analysis.ReadTable(args[0])
	if err != nil {
		return nil, nil, err
	}
	return table, cfg, nil
}

func renderFigures(cfg *model.Config, figs ...plot.Figure) error {
	renderer, err := plot.NewRenderer(plot.Mode(cfg.Output.Plot), cfg.Output.PlotDir, cfg.Output.PlotFormat)
	if err != nil {
		return err
	}
	for _, fig := range figs {
		path, err := renderer.Render(fig)
		if err != nil {
			return err
		}
		if path != "" {
			logrus.WithField("path", path).Info("saved figure")
		}
	}
	return nil
}
