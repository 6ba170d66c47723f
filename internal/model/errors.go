package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. The typed errors below match them through Is, so
// callers can use errors.Is for the kind and errors.As for the details.
var (
	ErrFormat        = errors.New("unsupported spectrum format")
	ErrShapeMismatch = errors.New("spectrum shape mismatch")
	ErrFitFailure    = errors.New("peak fit failed")
	ErrConfig        = errors.New("invalid configuration")
)

// FormatError reports a file that cannot be parsed as a known spectrum format
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// ShapeMismatchError reports spectra that do not share a channel axis
type ShapeMismatchError struct {
	Measurement string
	Background  string
	Want        int
	Got         int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("background %s has %d channels, measurement %s has %d",
		e.Background, e.Got, e.Measurement, e.Want)
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// FitFailure identifies which isotope line, file and range could not be fit
type FitFailure struct {
	Isotope string
	Energy  float64
	File    string
	Range   ChannelRange
	Err     error
}

func (e *FitFailure) Error() string {
	return fmt.Sprintf("fit %s %.4g keV in %s channels %s: %v", e.Isotope, e.Energy, e.File, e.Range, e.Err)
}

func (e *FitFailure) Unwrap() error { return e.Err }

func (e *FitFailure) Is(target error) bool { return target == ErrFitFailure }

// ConfigError reports an unknown detector, isotope or malformed table entry
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
