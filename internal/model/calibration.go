package model

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// SigmaToFWHM converts a Gaussian sigma to full width at half maximum (2·sqrt(2·ln2))
const SigmaToFWHM = 2.3548

// ChannelRange is a half-open channel interval [Start, End)
type ChannelRange struct {
	Start int
	End   int
}

// Len returns the number of channels in the range
func (r ChannelRange) Len() int {
	return r.End - r.Start
}

// Span returns the distance between the first and last channel
func (r ChannelRange) Span() float64 {
	return float64(r.End - 1 - r.Start)
}

// Contains reports whether position ch lies in [Start, End). Fitted centers
// are fractional, so 399.5 is inside [225,400).
func (r ChannelRange) Contains(ch float64) bool {
	return ch >= float64(r.Start) && ch < float64(r.End)
}

// Within reports whether the range fits a spectrum of n channels
func (r ChannelRange) Within(n int) bool {
	return r.Start >= 0 && r.End <= n && r.Start < r.End
}

func (r ChannelRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// MarshalYAML renders the range as a two-element sequence
func (r ChannelRange) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.SequenceNode,
		Style: yaml.FlowStyle,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(r.Start)},
			{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(r.End)},
		},
	}, nil
}

// UnmarshalYAML accepts a two-element sequence [start, end]
func (r *ChannelRange) UnmarshalYAML(value *yaml.Node) error {
	var pair []int
	if err := value.Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return &ConfigError{Field: "range", Message: fmt.Sprintf("want [start, end], got %v", pair)}
	}
	r.Start, r.End = pair[0], pair[1]
	return nil
}

// PeakFit is the result of one compound (quadratic + Gaussian) fit
type PeakFit struct {
	Center     float64      `json:"center"`
	Sigma      float64      `json:"sigma"`
	Amplitude  float64      `json:"amplitude"`  // Gaussian area, counts/s·channel
	Background [3]float64   `json:"background"` // a, b, c of a·x²+b·x+c in absolute channels
	Errors     FitErrors    `json:"errors"`
	ReducedChi float64      `json:"reduced_chi"`
	Range      ChannelRange `json:"range"`
}

// FitErrors holds 1σ parameter uncertainties
type FitErrors struct {
	Center    float64 `json:"center"`
	Sigma     float64 `json:"sigma"`
	Amplitude float64 `json:"amplitude"`
}

// FWHM returns the full width at half maximum in channels
func (p PeakFit) FWHM() float64 {
	return SigmaToFWHM * math.Abs(p.Sigma)
}

// CalibrationRecord is one row of the results table
type CalibrationRecord struct {
	Isotope string   `json:"isotope"`
	File    string   `json:"file"`
	Energy  float64  `json:"energy"`   // keV
	PeakLoc float64  `json:"peak_loc"` // channel
	FWHM    float64  `json:"fwhm"`     // channels
	Amp     float64  `json:"amp"`
	FWHMkeV float64  `json:"fwhm_kev"`
	Fit     PeakFit  `json:"fit"`
	Signals []Signal `json:"signals,omitempty"`
}

// CalibrationLine maps channel to energy: E = Slope·ch + Intercept
type CalibrationLine struct {
	Slope     float64 `json:"slope"`     // keV/channel
	Intercept float64 `json:"intercept"` // keV
	RSquared  float64 `json:"r_squared"`
	Points    int     `json:"points"`
}

// Energy converts a channel position to keV
func (l CalibrationLine) Energy(ch float64) float64 {
	return l.Slope*ch + l.Intercept
}

// Width converts a channel width (e.g. a FWHM) to keV. Widths are differences
// of positions, so the intercept cancels.
func (l CalibrationLine) Width(ch float64) float64 {
	return math.Abs(l.Slope) * ch
}

// ConvertFWHM converts a FWHM in channels to keV. FWHMLine runs it through
// the calibration line like a position, intercept included; FWHMWidth
// scales it by |slope| only.
func (l CalibrationLine) ConvertFWHM(fwhm float64, mode FWHMConversion) float64 {
	if mode == FWHMWidth {
		return l.Width(fwhm)
	}
	return l.Energy(fwhm)
}

// ResultsTable is the output of one detector run
type ResultsTable struct {
	Detector    string              `json:"detector"`
	Records     []CalibrationRecord `json:"records"`
	Calibration CalibrationLine     `json:"calibration"`
	Failures    []FitFailure        `json:"-"`
	Skipped     []SkippedFile       `json:"skipped,omitempty"`
}

// SkippedFile is a data file that contributed no records
type SkippedFile struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Results table column names, in file order
const (
	ColumnEnergy  = "energy"
	ColumnPeakLoc = "peak loc"
	ColumnFWHM    = "FWHM"
	ColumnAmp     = "amp"
	ColumnFWHMkeV = "FWHM (keV)"
	ColumnAngle   = "angle" // added by hand for off-axis runs
)

// ResultsHeader is the header row of a results CSV
var ResultsHeader = []string{ColumnEnergy, ColumnPeakLoc, ColumnFWHM, ColumnAmp, ColumnFWHMkeV}
