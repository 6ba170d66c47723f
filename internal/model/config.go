package model

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FitPolicy decides what a failed peak fit does to the detector run
type FitPolicy string

const (
	FitPolicySkip  FitPolicy = "skip"  // log, report, and leave the line out of the calibration
	FitPolicyAbort FitPolicy = "abort" // stop the run with the FitFailure
)

// FWHMConversion selects how a FWHM in channels becomes keV
type FWHMConversion string

const (
	FWHMLine  FWHMConversion = "line"  // slope·FWHM + intercept
	FWHMWidth FWHMConversion = "width" // |slope|·FWHM
)

// Config holds all detlab configuration
type Config struct {
	Detectors  map[string]DetectorConfig `yaml:"detectors"`
	Analysis   AnalysisConfig            `yaml:"analysis"`
	Efficiency EfficiencyConfig          `yaml:"efficiency"`
	Output     OutputConfig              `yaml:"output"`
	Log        LogConfig                 `yaml:"log"`
}

// DetectorConfig describes one detector: which files belong to it and where
// each isotope line is expected to show up.
type DetectorConfig struct {
	Extension string    `yaml:"extension"` // ".Spe" or ".mca"
	Isotopes  []Isotope `yaml:"isotopes"`  // order is the classification order
}

// Isotope is a calibration source with one or more gamma lines
type Isotope struct {
	Label string        `yaml:"label"`
	Lines []IsotopeLine `yaml:"lines"`
}

// IsotopeLine is a known energy and the channel window searched for it
type IsotopeLine struct {
	Energy float64      `yaml:"energy"` // keV
	Range  ChannelRange `yaml:"range"`
}

// AnalysisConfig controls the fitting pipeline
type AnalysisConfig struct {
	OnFitFailure        FitPolicy      `yaml:"on_fit_failure"`
	BackgroundEstimator string         `yaml:"background_estimator"` // running-mean, sigma-clip
	IgnoreChannels      int            `yaml:"ignore_channels"`      // low channels skipped by the coarse peak finder
	Workers             int            `yaml:"workers"`
	MaxIterations       int            `yaml:"max_iterations"`
	FWHMConversion      FWHMConversion `yaml:"fwhm_conversion"` // line or width
}

// EfficiencyConfig describes the source and detector geometry
type EfficiencyConfig struct {
	ActivityBq      float64   `yaml:"activity_bq"`
	BranchingRatios []float64 `yaml:"branching_ratios,omitempty"` // one per table row; empty means 1
	AreaM2          float64   `yaml:"area_m2"`
	DistanceM       float64   `yaml:"distance_m"`
	AnglesDeg       []float64 `yaml:"angles_deg"`
}

// OutputConfig controls where results go
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	Plot        string `yaml:"plot"`        // save, none
	PlotDir     string `yaml:"plot_dir"`
	PlotFormat  string `yaml:"plot_format"` // png, svg, pdf
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in detector tables and analysis defaults
func DefaultConfig() *Config {
	return &Config{
		Detectors: map[string]DetectorConfig{
			"NaITi": {
				Extension: FormatSpe.Extension(),
				Isotopes: []Isotope{
					{Label: "Cs", Lines: []IsotopeLine{{Energy: 661.657, Range: ChannelRange{225, 400}}}},
					{Label: "Ba", Lines: []IsotopeLine{
						{Energy: 80.9979, Range: ChannelRange{22, 85}},
						{Energy: 356.0129, Range: ChannelRange{90, 200}},
					}},
					{Label: "Am", Lines: []IsotopeLine{{Energy: 59.5409, Range: ChannelRange{0, 60}}}},
				},
			},
			"BGO": {
				Extension: FormatSpe.Extension(),
				Isotopes: []Isotope{
					{Label: "Co", Lines: []IsotopeLine{{Energy: 1173.228, Range: ChannelRange{470, 600}}}},
					{Label: "Cs", Lines: []IsotopeLine{{Energy: 661.657, Range: ChannelRange{210, 350}}}},
					{Label: "Ba", Lines: []IsotopeLine{
						{Energy: 80.9979, Range: ChannelRange{20, 50}},
						{Energy: 356.0129, Range: ChannelRange{100, 200}},
					}},
					{Label: "Am", Lines: []IsotopeLine{{Energy: 59.5409, Range: ChannelRange{0, 60}}}},
				},
			},
			"CdTe": {
				Extension: FormatMCA.Extension(),
				Isotopes: []Isotope{
					{Label: "Cs", Lines: []IsotopeLine{{Energy: 661.657, Range: ChannelRange{200, 250}}}},
					{Label: "Ba", Lines: []IsotopeLine{
						{Energy: 53.1622, Range: ChannelRange{0, 80}},
						{Energy: 383.8485, Range: ChannelRange{200, 300}},
					}},
					{Label: "Am", Lines: []IsotopeLine{{Energy: 59.5409, Range: ChannelRange{100, 200}}}},
				},
			},
		},
		Analysis: AnalysisConfig{
			OnFitFailure:        FitPolicySkip,
			BackgroundEstimator: "running-mean",
			IgnoreChannels:      10,
			Workers:             0, // 0 = runtime.NumCPU()
			MaxIterations:       1000,
			FWHMConversion:      FWHMLine,
		},
		Efficiency: EfficiencyConfig{
			ActivityBq: 37000,
			AreaM2:     0.00196,
			DistanceM:  0.10,
			AnglesDeg:  []float64{0, 15, 30, 45, 60},
		},
		Output: OutputConfig{
			Dir:        ".",
			Plot:       "save",
			PlotDir:    "plots",
			PlotFormat: "png",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DecodeConfig merges YAML from r over base. A detector present in the YAML
// replaces the built-in detector of the same name.
func DecodeConfig(r io.Reader, base *Config) error {
	if err := yaml.NewDecoder(r).Decode(base); err != nil && !errors.Is(err, io.EOF) {
		return &ConfigError{Message: fmt.Sprintf("decode config: %v", err)}
	}
	return nil
}

// LoadConfigFile merges the YAML file at path over base
func LoadConfigFile(path string, base *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open config file %s", path)
	}
	defer func() { _ = f.Close() }()

	if err := DecodeConfig(f, base); err != nil {
		return pkgerrors.Wrapf(err, "config file %s", path)
	}
	return nil
}

// DetectorNames returns the configured detector names, sorted
func (c *Config) DetectorNames() []string {
	names := make([]string, 0, len(c.Detectors))
	for name := range c.Detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detector looks up a detector by its exact name
func (c *Config) Detector(name string) (DetectorConfig, error) {
	d, ok := c.Detectors[name]
	if !ok {
		return DetectorConfig{}, &ConfigError{
			Field:   "detector",
			Message: fmt.Sprintf("unknown detector %q (configured: %s)", name, strings.Join(c.DetectorNames(), ", ")),
		}
	}
	return d, nil
}

// Format returns the spectrum format implied by the detector's extension
func (d DetectorConfig) Format() (Format, error) {
	switch d.Extension {
	case FormatSpe.Extension():
		return FormatSpe, nil
	case FormatMCA.Extension():
		return FormatMCA, nil
	default:
		return "", &ConfigError{Field: "extension", Message: fmt.Sprintf("unsupported extension %q", d.Extension)}
	}
}

// Isotope returns the isotope with the given label
func (d DetectorConfig) Isotope(label string) (Isotope, bool) {
	for _, iso := range d.Isotopes {
		if iso.Label == label {
			return iso, true
		}
	}
	return Isotope{}, false
}

// Labels returns isotope labels in classification order
func (d DetectorConfig) Labels() []string {
	labels := make([]string, len(d.Isotopes))
	for i, iso := range d.Isotopes {
		labels[i] = iso.Label
	}
	return labels
}

// Validate checks the whole configuration and returns the first problem found
func (c *Config) Validate() error {
	if len(c.Detectors) == 0 {
		return &ConfigError{Field: "detectors", Message: "no detectors configured"}
	}
	for _, name := range c.DetectorNames() {
		if err := c.Detectors[name].validate(name); err != nil {
			return err
		}
	}

	switch c.Analysis.OnFitFailure {
	case FitPolicySkip, FitPolicyAbort:
	default:
		return &ConfigError{Field: "analysis.on_fit_failure", Message: fmt.Sprintf("want skip or abort, got %q", c.Analysis.OnFitFailure)}
	}
	if c.Analysis.IgnoreChannels < 0 {
		return &ConfigError{Field: "analysis.ignore_channels", Message: "must not be negative"}
	}
	if c.Analysis.MaxIterations <= 0 {
		return &ConfigError{Field: "analysis.max_iterations", Message: "must be positive"}
	}
	switch c.Analysis.FWHMConversion {
	case FWHMLine, FWHMWidth:
	default:
		return &ConfigError{Field: "analysis.fwhm_conversion", Message: fmt.Sprintf("want line or width, got %q", c.Analysis.FWHMConversion)}
	}

	switch c.Output.Plot {
	case "save", "none":
	default:
		return &ConfigError{Field: "output.plot", Message: fmt.Sprintf("want save or none, got %q", c.Output.Plot)}
	}
	switch c.Output.PlotFormat {
	case "png", "svg", "pdf":
	default:
		return &ConfigError{Field: "output.plot_format", Message: fmt.Sprintf("want png, svg or pdf, got %q", c.Output.PlotFormat)}
	}

	return nil
}

// ValidateEfficiency checks the source/geometry block. It is separate from
// Validate because only the efficiency command needs it.
func (c *Config) ValidateEfficiency() error {
	e := c.Efficiency
	if e.ActivityBq <= 0 {
		return &ConfigError{Field: "efficiency.activity_bq", Message: "must be positive"}
	}
	if e.AreaM2 <= 0 {
		return &ConfigError{Field: "efficiency.area_m2", Message: "must be positive"}
	}
	if e.DistanceM <= 0 {
		return &ConfigError{Field: "efficiency.distance_m", Message: "must be positive"}
	}
	if len(e.AnglesDeg) == 0 {
		return &ConfigError{Field: "efficiency.angles_deg", Message: "at least one angle is required"}
	}
	return nil
}

func (d DetectorConfig) validate(name string) error {
	field := "detectors." + name
	if _, err := d.Format(); err != nil {
		return &ConfigError{Field: field + ".extension", Message: err.(*ConfigError).Message}
	}
	if len(d.Isotopes) == 0 {
		return &ConfigError{Field: field, Message: "no isotopes configured"}
	}

	seen := make(map[string]bool)
	for _, iso := range d.Isotopes {
		if iso.Label == "" {
			return &ConfigError{Field: field, Message: "isotope with empty label"}
		}
		if seen[iso.Label] {
			return &ConfigError{Field: field, Message: fmt.Sprintf("duplicate isotope %q", iso.Label)}
		}
		seen[iso.Label] = true

		if len(iso.Lines) == 0 {
			return &ConfigError{Field: field + "." + iso.Label, Message: "no lines configured"}
		}
		for _, line := range iso.Lines {
			if line.Energy <= 0 {
				return &ConfigError{Field: field + "." + iso.Label, Message: fmt.Sprintf("energy must be positive, got %g", line.Energy)}
			}
			if line.Range.Start < 0 || line.Range.End <= line.Range.Start {
				return &ConfigError{Field: field + "." + iso.Label, Message: fmt.Sprintf("invalid range %s", line.Range)}
			}
		}
	}
	return nil
}
