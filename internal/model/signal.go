package model

// Signal is a diagnostic attached to a fit. Signals never change the fitted
// numbers; they flag results a human should look at.
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the diagnostic
type SignalType string

const (
	SignalCenterOutsideRange SignalType = "center_outside_range" // fitted mu left the search window
	SignalNegativeAmplitude  SignalType = "negative_amplitude"   // dip instead of a peak
	SignalWidePeak           SignalType = "wide_peak"            // FWHM larger than the window
	SignalLargeUncertainty   SignalType = "large_uncertainty"    // center error above a fraction of sigma
	SignalDominantElsewhere  SignalType = "dominant_elsewhere"   // spectrum maximum outside every window
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
