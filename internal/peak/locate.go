// Package peak finds coarse peak positions and estimates the smooth
// background underneath a peak.
package peak

import (
	"fmt"

	timestats "github.com/cwbudde/algo-dsp/stats/time"
)

// DefaultSkip is the number of low channels ignored by Coarse. The first
// channels of most detectors carry a noise pedestal that outranks real peaks.
const DefaultSkip = 10

// Coarse returns the index of the largest sample after dropping the first
// skip samples. The index is relative to rates[skip:]; use CoarseAbsolute for
// a channel number. Ties resolve to the lowest index.
func Coarse(rates []float64, skip int) (int, error) {
	if skip < 0 {
		return 0, fmt.Errorf("negative skip %d", skip)
	}
	if len(rates) <= skip {
		return 0, fmt.Errorf("spectrum has %d channels, need more than %d", len(rates), skip)
	}
	return timestats.Calculate(rates[skip:]).MaxPos, nil
}

// CoarseAbsolute is Coarse mapped back to a channel number of rates
func CoarseAbsolute(rates []float64, skip int) (int, error) {
	idx, err := Coarse(rates, skip)
	if err != nil {
		return 0, err
	}
	return idx + skip, nil
}
