package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "detlab",
	Short: "detlab - gamma-ray detector calibration and characterization",
	Long: `detlab turns raw spectra from NaI(Tl), BGO and CdTe detectors into
calibration results.

It subtracts background, fits a Gaussian plus quadratic background to every
known isotope line, fits the channel to energy calibration and writes a
results table. The resolution, efficiency and angular commands characterize
a detector from that table.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return setupLogger()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of detlab.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("detlab %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.detlab/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.StringP("log-level", "l", "", "log level (trace, debug, info, warn, error) (default info)")
	flags.String("plot", "", "figure handling: save or none")
	flags.String("plot-dir", "", "directory for saved figures")
	flags.String("plot-format", "", "figure format: png, svg or pdf")

	// Bind flags to viper under their config keys
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("output.plot", flags.Lookup("plot"))
	_ = viper.BindPFlag("output.plot_dir", flags.Lookup("plot-dir"))
	_ = viper.BindPFlag("output.plot_format", flags.Lookup("plot-format"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".detlab"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// DETLAB_OUTPUT_PLOT overrides output.plot, and so on
	viper.SetEnvPrefix("DETLAB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func setupLogger() error {
	level := viper.GetString("log.level")
	if level == "" {
		level = "info"
	}
	if viper.GetBool("verbose") {
		level = "debug"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return &model.ConfigError{Field: "log.level", Message: fmt.Sprintf("failed to parse log level: %v", err)}
	}
	logrus.SetLevel(parsed)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.Kitchen,
	})
	return nil
}

// loadConfig builds the effective configuration: built-in detector tables,
// then the config file, then environment variables and flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		if err := model.LoadConfigFile(path, cfg); err != nil {
			if _, statErr := os.Stat(path); statErr != nil && cfgFile == "" {
				// the default location is optional
				logrus.WithField("path", path).Debug("no config file")
			} else {
				return nil, err
			}
		}
	}

	overrideString(&cfg.Log.Level, "log.level")
	overrideString(&cfg.Output.Dir, "output.dir")
	overrideString(&cfg.Output.Plot, "output.plot")
	overrideString(&cfg.Output.PlotDir, "output.plot_dir")
	overrideString(&cfg.Output.PlotFormat, "output.plot_format")
	overrideString(&cfg.Output.MetricsFile, "output.metrics_file")
	overrideString(&cfg.Analysis.BackgroundEstimator, "analysis.background_estimator")
	if v := viper.GetString("analysis.on_fit_failure"); v != "" {
		cfg.Analysis.OnFitFailure = model.FitPolicy(v)
	}
	if v := viper.GetString("analysis.fwhm_conversion"); v != "" {
		cfg.Analysis.FWHMConversion = model.FWHMConversion(v)
	}
	if viper.IsSet("analysis.workers") {
		cfg.Analysis.Workers = viper.GetInt("analysis.workers")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overrideString replaces *dst with the viper value for key when one is set
// by a flag or the environment
func overrideString(dst *string, key string) {
	if v := viper.GetString(key); v != "" {
		*dst = v
	}
}
