// Package quality flags peak fits that converged to something a human should
// check. Signals never alter fitted values.
package quality

import (
	"fmt"
	"math"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

// Thresholds for the fit signals
const (
	// center error above this fraction of sigma is flagged
	MaxCenterErrorRatio = 0.5
)

// Assessor inspects fits and spectra and produces diagnostic signals
type Assessor struct{}

// NewAssessor creates a new assessor
func NewAssessor() *Assessor {
	return &Assessor{}
}

// AssessFit checks one compound fit against its search window
func (a *Assessor) AssessFit(fit model.PeakFit) []model.Signal {
	var signals []model.Signal

	if sig, ok := a.checkCenter(fit); ok {
		signals = append(signals, sig)
	}
	if sig, ok := a.checkAmplitude(fit); ok {
		signals = append(signals, sig)
	}
	if sig, ok := a.checkWidth(fit); ok {
		signals = append(signals, sig)
	}
	if sig, ok := a.checkUncertainty(fit); ok {
		signals = append(signals, sig)
	}
	return signals
}

// AssessSpectrum reports when the coarse maximum of a spectrum (absolute
// channel) lies outside every configured window for its isotope
func (a *Assessor) AssessSpectrum(coarse int, windows []model.ChannelRange) []model.Signal {
	for _, w := range windows {
		if w.Contains(float64(coarse)) {
			return nil
		}
	}
	return []model.Signal{{
		Type:        model.SignalDominantElsewhere,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("Strongest channel %d is outside every search window", coarse),
		Data: map[string]interface{}{
			"channel": coarse,
		},
	}}
}

func (a *Assessor) checkCenter(fit model.PeakFit) (model.Signal, bool) {
	if fit.Range.Contains(fit.Center) {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalCenterOutsideRange,
		Severity:    model.SeverityCritical,
		Description: fmt.Sprintf("Fitted center %.2f is outside %s", fit.Center, fit.Range),
		Data: map[string]interface{}{
			"center": fit.Center,
			"start":  fit.Range.Start,
			"end":    fit.Range.End,
		},
	}, true
}

func (a *Assessor) checkAmplitude(fit model.PeakFit) (model.Signal, bool) {
	if fit.Amplitude > 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalNegativeAmplitude,
		Severity:    model.SeverityCritical,
		Description: fmt.Sprintf("Fitted amplitude %.4g is not positive", fit.Amplitude),
		Data: map[string]interface{}{
			"amplitude": fit.Amplitude,
		},
	}, true
}

func (a *Assessor) checkWidth(fit model.PeakFit) (model.Signal, bool) {
	width := float64(fit.Range.Len())
	if width <= 0 || fit.FWHM() <= width {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalWidePeak,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("FWHM %.1f channels exceeds the %d-channel window", fit.FWHM(), fit.Range.Len()),
		Data: map[string]interface{}{
			"fwhm":   fit.FWHM(),
			"window": fit.Range.Len(),
		},
	}, true
}

func (a *Assessor) checkUncertainty(fit model.PeakFit) (model.Signal, bool) {
	e := fit.Errors.Center
	if !math.IsInf(e, 0) && !math.IsNaN(e) && e <= MaxCenterErrorRatio*fit.Sigma {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalLargeUncertainty,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Center uncertainty %.3g exceeds %.0f%% of sigma", e, MaxCenterErrorRatio*100),
		Data: map[string]interface{}{
			"center_error": e,
			"sigma":        fit.Sigma,
		},
	}, true
}

// Worst returns the highest severity among signals, or "" for none
func Worst(signals []model.Signal) model.SignalSeverity {
	rank := map[model.SignalSeverity]int{
		model.SeverityInfo:     1,
		model.SeverityWarning:  2,
		model.SeverityCritical: 3,
	}
	var worst model.SignalSeverity
	for _, s := range signals {
		if rank[s.Severity] > rank[worst] {
			worst = s.Severity
		}
	}
	return worst
}
