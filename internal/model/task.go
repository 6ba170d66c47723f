package model

// FileTask is one classified spectrum file waiting to be fit
type FileTask struct {
	Path    string
	Isotope Isotope
}

// FileOutcome holds everything produced for one file: a record per
// successful line fit and a failure per line that could not be fit
type FileOutcome struct {
	Records  []CalibrationRecord
	Failures []FitFailure
}
