package spectrum

import (
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

// ToRate normalizes counts by the live time
func ToRate(s *model.Spectrum) *model.RateSpectrum {
	rates := make([]float64, len(s.Counts))
	for i, c := range s.Counts {
		rates[i] = c / s.LiveTime
	}
	return &model.RateSpectrum{Source: s.Path, Rates: rates}
}

// Subtract returns measurement minus background in counts per second,
// channel by channel. Both spectra must have the same number of channels;
// no rebinning or alignment is attempted.
func Subtract(measurement, background *model.Spectrum) (*model.NetSpectrum, error) {
	if measurement.Len() != background.Len() {
		return nil, &model.ShapeMismatchError{
			Measurement: measurement.Path,
			Background:  background.Path,
			Want:        measurement.Len(),
			Got:         background.Len(),
		}
	}

	m := ToRate(measurement)
	b := ToRate(background)

	net := make([]float64, len(m.Rates))
	for i := range net {
		net[i] = m.Rates[i] - b.Rates[i]
	}
	return &model.NetSpectrum{
		Source:     measurement.Path,
		Background: background.Path,
		Rates:      net,
	}, nil
}
