package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/fit"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/metrics"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/peak"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/plot"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/spectrum"
)

// detectorRun fits the files of one run. It is shared by the batch workers.
type detectorRun struct {
	pipeline   *Pipeline
	detector   string
	background *model.Spectrum
	metrics    *metrics.Recorder

	mu      sync.Mutex
	figures []string
}

// AnalyzeFile subtracts the background from one spectrum and fits every line
// of its isotope. A line whose range does not fit the spectrum, or whose fit
// does not converge, becomes a FitFailure; the other lines are still fit.
func (r *detectorRun) AnalyzeFile(ctx context.Context, task model.FileTask) (*model.FileOutcome, error) {
	p := r.pipeline
	log := logrus.WithFields(logrus.Fields{
		"detector": r.detector,
		"file":     task.Path,
		"isotope":  task.Isotope.Label,
	})

	measurement, err := p.loader.Load(task.Path)
	if err != nil {
		return nil, err
	}
	net, err := spectrum.Subtract(measurement, r.background)
	if err != nil {
		return nil, err
	}

	windows := make([]model.ChannelRange, len(task.Isotope.Lines))
	for i, line := range task.Isotope.Lines {
		windows[i] = line.Range
	}
	var spectrumSignals []model.Signal
	if coarse, err := peak.CoarseAbsolute(net.Rates, p.config.Analysis.IgnoreChannels); err != nil {
		log.WithError(err).Debug("no coarse peak")
	} else {
		log.WithField("channel", coarse).Debug("coarse peak")
		spectrumSignals = p.assessor.AssessSpectrum(coarse, windows)
	}

	file := filepath.Base(task.Path)
	outcome := &model.FileOutcome{}
	for _, line := range task.Isotope.Lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		failure := model.FitFailure{
			Isotope: task.Isotope.Label,
			Energy:  line.Energy,
			File:    file,
			Range:   line.Range,
		}
		if !line.Range.Within(net.Len()) {
			failure.Err = fmt.Errorf("range outside spectrum of %d channels", net.Len())
			outcome.Failures = append(outcome.Failures, failure)
			r.metrics.PeakFit(r.detector, task.Isotope.Label, metrics.StatusSkipped, 0)
			continue
		}

		x, y := net.Window(line.Range)
		start := time.Now()
		pf, err := fit.Compound(x, y, fit.CompoundOptions{
			Estimator:     p.estimator,
			MaxIterations: p.config.Analysis.MaxIterations,
		})
		if err != nil {
			failure.Err = err
			outcome.Failures = append(outcome.Failures, failure)
			r.metrics.PeakFit(r.detector, task.Isotope.Label, metrics.StatusFailed, time.Since(start))
			continue
		}
		r.metrics.PeakFit(r.detector, task.Isotope.Label, metrics.StatusOK, time.Since(start))
		pf.Range = line.Range

		signals := append(p.assessor.AssessFit(pf), spectrumSignals...)
		for _, s := range signals {
			if s.Severity != model.SeverityInfo {
				log.WithFields(logrus.Fields{
					"energy": line.Energy,
					"signal": s.Type,
				}).Warn(s.Description)
			}
		}

		rec := model.CalibrationRecord{
			Isotope: task.Isotope.Label,
			File:    file,
			Energy:  line.Energy,
			PeakLoc: pf.Center,
			FWHM:    pf.FWHM(),
			Amp:     pf.Amplitude,
			Fit:     pf,
			Signals: signals,
		}
		outcome.Records = append(outcome.Records, rec)
		log.WithFields(logrus.Fields{
			"energy": line.Energy,
			"center": pf.Center,
			"fwhm":   rec.FWHM,
		}).Debug("peak fitted")

		if err := r.renderFit(rec, x, y); err != nil {
			log.WithError(err).Warn("failed to render peak fit")
		}
	}
	return outcome, nil
}

// renderFit draws the net rates of a window with the fitted model on top
func (r *detectorRun) renderFit(rec model.CalibrationRecord, x, y []float64) error {
	renderer := r.pipeline.plots
	if renderer.Mode() == plot.ModeNone {
		return nil
	}

	fx, fy := plot.Curve(func(ch float64) float64 {
		return fit.CompoundValue(rec.Fit, ch)
	}, x[0], x[len(x)-1], 200, false)

	path, err := renderer.Render(plot.Figure{
		Name:   fmt.Sprintf("%s %s %g keV", r.detector, strings.TrimSuffix(rec.File, filepath.Ext(rec.File)), rec.Energy),
		Title:  fmt.Sprintf("%s %s %g keV", r.detector, rec.Isotope, rec.Energy),
		XLabel: "Channel",
		YLabel: "Net rate (counts/s)",
		Series: []plot.Series{
			{Label: "net rate", X: x, Y: y},
			{Label: "gaussian + quadratic", X: fx, Y: fy, Line: true},
		},
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.figures = append(r.figures, path)
	r.mu.Unlock()
	return nil
}
