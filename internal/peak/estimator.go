package peak

import (
	"fmt"
	"math"
	"sort"
	"strings"

	timestats "github.com/cwbudde/algo-dsp/stats/time"
	"gonum.org/v1/gonum/stat"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

// Estimator names accepted in analysis.background_estimator
const (
	RunningMeanName = "running-mean"
	SigmaClipName   = "sigma-clip"
)

// Estimator produces a peak-free version of a window of rates. The output has
// the same length as the input and is used to seed the background polynomial.
type Estimator interface {
	Name() string
	Estimate(y []float64) []float64
}

// NewEstimator returns the estimator registered under name
func NewEstimator(name string) (Estimator, error) {
	switch name {
	case RunningMeanName, "":
		return RunningMean{}, nil
	case SigmaClipName:
		return NewSigmaClip(), nil
	default:
		return nil, &model.ConfigError{
			Field:   "analysis.background_estimator",
			Message: fmt.Sprintf("unknown estimator %q (want %s)", name, strings.Join(EstimatorNames(), " or ")),
		}
	}
}

// EstimatorNames lists the registered estimator names
func EstimatorNames() []string {
	return []string{RunningMeanName, SigmaClipName}
}

// RunningMean replaces samples at or above half the window's standard
// deviation with the mean of the samples kept so far. A high sample seen
// before anything was kept is replaced by the window mean.
//
// This is a heuristic. The threshold compares raw values, not deviations, so
// it behaves well only on windows whose baseline sits near zero after
// background subtraction, and the output depends on sample order.
type RunningMean struct{}

// Name returns the registered name
func (RunningMean) Name() string { return RunningMeanName }

// Estimate applies the running-mean replacement
func (RunningMean) Estimate(y []float64) []float64 {
	out := make([]float64, 0, len(y))
	if len(y) == 0 {
		return out
	}

	mean, variance, _, _ := timestats.Moments(y)
	threshold := 0.5 * math.Sqrt(variance)

	kept := timestats.NewStreamingStats()
	for _, v := range y {
		var next float64
		switch {
		case v < threshold:
			next = v
		case len(out) == 0:
			next = mean
		default:
			next = kept.Result().DC
		}
		out = append(out, next)
		kept.Update([]float64{next})
	}
	return out
}

// SigmaClip iteratively drops samples further than K scaled MADs from the
// median and replaces them with the median of the samples that survive.
type SigmaClip struct {
	K          float64
	Iterations int
}

// NewSigmaClip returns a SigmaClip with k=2 and at most 5 iterations
func NewSigmaClip() SigmaClip {
	return SigmaClip{K: 2, Iterations: 5}
}

// madScale makes the MAD a consistent estimator of sigma for normal data
const madScale = 1.4826

// Name returns the registered name
func (SigmaClip) Name() string { return SigmaClipName }

// Estimate applies the clipping
func (c SigmaClip) Estimate(y []float64) []float64 {
	out := make([]float64, len(y))
	copy(out, y)
	if len(y) == 0 {
		return out
	}

	keep := make([]bool, len(y))
	for i := range keep {
		keep[i] = true
	}

	center := median(y)
	for iter := 0; iter < c.Iterations; iter++ {
		kept := selectKept(y, keep)
		if len(kept) == 0 {
			break
		}
		center = median(kept)

		dev := make([]float64, len(kept))
		for i, v := range kept {
			dev[i] = math.Abs(v - center)
		}
		spread := madScale * median(dev)
		if spread == 0 {
			break
		}

		changed := false
		for i, v := range y {
			in := math.Abs(v-center) <= c.K*spread
			if in != keep[i] {
				keep[i] = in
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	if kept := selectKept(y, keep); len(kept) > 0 {
		center = median(kept)
	}
	for i := range out {
		if !keep[i] {
			out[i] = center
		}
	}
	return out
}

func selectKept(y []float64, keep []bool) []float64 {
	kept := make([]float64, 0, len(y))
	for i, v := range y {
		if keep[i] {
			kept = append(kept, v)
		}
	}
	return kept
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if len(sorted)%2 == 1 {
		return sorted[len(sorted)/2]
	}
	// stat.Quantile with Empirical picks the lower middle; average both middles
	lo := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	hi := sorted[len(sorted)/2]
	return (lo + hi) / 2
}
