package fit

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

// Linear fits energy = slope·channel + intercept by ordinary least squares.
// All points carry equal weight; there is no outlier rejection.
func Linear(channels, energies []float64) (model.CalibrationLine, error) {
	if len(channels) != len(energies) {
		return model.CalibrationLine{}, fmt.Errorf("%d channels but %d energies", len(channels), len(energies))
	}
	if len(channels) < 2 {
		return model.CalibrationLine{}, fmt.Errorf("calibration needs at least 2 peaks, got %d", len(channels))
	}
	if stat.Variance(channels, nil) == 0 {
		return model.CalibrationLine{}, fmt.Errorf("all peaks at channel %g", channels[0])
	}

	intercept, slope := stat.LinearRegression(channels, energies, nil, false)
	return model.CalibrationLine{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  stat.RSquared(channels, energies, nil, intercept, slope),
		Points:    len(channels),
	}, nil
}
