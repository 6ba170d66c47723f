// Package pipeline runs one detector calibration: classify spectrum files,
// subtract background, fit every configured line, fit the energy calibration
// and write the results table.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/cache"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/classify"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/fit"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/metrics"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/peak"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/plot"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/quality"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/spectrum"
	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/worker"
)

// Spectra are immutable once parsed; keep them for the life of the process.
const (
	spectrumCacheTTL     = 30 * time.Minute
	spectrumCacheCleanup = 10 * time.Minute
)

// Pipeline orchestrates detector runs
type Pipeline struct {
	config    *model.Config
	loader    *spectrum.Loader
	estimator peak.Estimator
	assessor  *quality.Assessor
	plots     *plot.Renderer
	renderer  *Renderer
}

// NewPipeline creates a pipeline from a validated configuration
func NewPipeline(cfg *model.Config) (*Pipeline, error) {
	estimator, err := peak.NewEstimator(cfg.Analysis.BackgroundEstimator)
	if err != nil {
		return nil, err
	}
	plots, err := plot.NewRenderer(plot.Mode(cfg.Output.Plot), cfg.Output.PlotDir, cfg.Output.PlotFormat)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:    cfg,
		loader:    spectrum.NewLoader(cache.NewMemoryCache[*model.Spectrum](spectrumCacheTTL, spectrumCacheCleanup)),
		estimator: estimator,
		assessor:  quality.NewAssessor(),
		plots:     plots,
		renderer:  NewRenderer(),
	}, nil
}

// RunRequest names the inputs of one detector run
type RunRequest struct {
	DataDir    string // directory of measurement spectra
	Background string // background spectrum file
	Detector   string
	Manifest   string // optional file name -> isotope YAML
	OutDir     string // overrides output.dir when set
}

// RunResult is everything a detector run produced
type RunResult struct {
	Table   *model.ResultsTable
	CSVPath string
	Figures []string // peak figures sorted by path, then the calibration figure
	Metrics *metrics.Recorder
}

// Run executes one detector calibration. Configuration problems, an
// unreadable background and spectra whose channel count differs from the
// background stop the run. Files that cannot be classified or parsed are
// logged and skipped. Line fits that fail follow analysis.on_fit_failure.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	det, err := p.config.Detector(req.Detector)
	if err != nil {
		return nil, err
	}

	var manifest *classify.Manifest
	if req.Manifest != "" {
		if manifest, err = classify.LoadManifest(req.Manifest); err != nil {
			return nil, err
		}
	}
	classifier, err := classify.NewClassifier(det, manifest)
	if err != nil {
		return nil, err
	}

	bg, err := p.loader.Load(req.Background)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "background")
	}

	paths, err := listSpectra(req.DataDir, det.Extension, req.Background)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()
	table := &model.ResultsTable{Detector: req.Detector}
	var tasks []model.FileTask
	for _, path := range paths {
		match, ok := classifier.Classify(path)
		if !ok {
			logrus.WithField("file", path).Warn("no isotope label in file name, skipping")
			table.Skipped = append(table.Skipped, model.SkippedFile{File: filepath.Base(path), Reason: "unclassified"})
			recorder.FileProcessed(req.Detector, metrics.StatusSkipped, 0)
			continue
		}
		iso, _ := det.Isotope(match.Label)
		logrus.WithFields(logrus.Fields{
			"file":    path,
			"isotope": match.Label,
			"source":  match.Source,
		}).Debug("classified spectrum")
		tasks = append(tasks, model.FileTask{Path: path, Isotope: iso})
	}
	if len(tasks) == 0 {
		return nil, &model.ConfigError{
			Field:   "data",
			Message: fmt.Sprintf("no %s spectra for %s in %s", det.Extension, req.Detector, req.DataDir),
		}
	}

	run := &detectorRun{
		pipeline:   p,
		detector:   req.Detector,
		background: bg,
		metrics:    recorder,
	}

	workers := p.config.Analysis.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logrus.WithFields(logrus.Fields{
		"detector": req.Detector,
		"files":    len(tasks),
		"workers":  workers,
	}).Info("fitting spectra")

	results := worker.NewBatchProcessor(run, workers).
		OnResult(func(r *worker.FitResult) {
			status := metrics.StatusOK
			if r.Error != nil {
				status = metrics.StatusFailed
			}
			recorder.FileProcessed(req.Detector, status, r.Duration)
		}).
		ProcessFiles(ctx, tasks)

	abort := p.config.Analysis.OnFitFailure == model.FitPolicyAbort
	for _, r := range results {
		if r.Error != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !fileSkippable(r.Error) || abort {
				return nil, r.Error
			}
			logrus.WithError(r.Error).WithField("file", r.Task.Path).Warn("skipping spectrum")
			table.Skipped = append(table.Skipped, model.SkippedFile{File: filepath.Base(r.Task.Path), Reason: r.Error.Error()})
			continue
		}

		for i := range r.Outcome.Failures {
			failure := r.Outcome.Failures[i]
			if abort {
				return nil, &failure
			}
			logrus.WithError(failure.Err).WithFields(logrus.Fields{
				"file":    failure.File,
				"isotope": failure.Isotope,
				"energy":  failure.Energy,
				"range":   failure.Range.String(),
			}).Warn("peak fit failed, line left out of calibration")
			table.Failures = append(table.Failures, failure)
		}
		table.Records = append(table.Records, r.Outcome.Records...)
	}

	if err := calibrate(table, p.config.Analysis.FWHMConversion); err != nil {
		return nil, err
	}
	recorder.Calibration(req.Detector, table.Calibration.Slope, table.Calibration.Intercept, table.Calibration.RSquared)

	outDir := req.OutDir
	if outDir == "" {
		outDir = p.config.Output.Dir
	}
	sort.Strings(run.figures)
	result := &RunResult{
		Table:   table,
		CSVPath: filepath.Join(outDir, ResultsFileName(req.Detector)),
		Figures: run.figures,
		Metrics: recorder,
	}
	if err := p.renderer.WriteCSV(table, result.CSVPath); err != nil {
		return nil, err
	}

	path, err := p.plots.Render(calibrationFigure(table))
	if err != nil {
		return nil, err
	}
	if path != "" {
		result.Figures = append(result.Figures, path)
	}

	if p.config.Output.MetricsFile != "" {
		if err := recorder.WriteTextfile(p.config.Output.MetricsFile); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"detector":  req.Detector,
		"records":   len(table.Records),
		"failures":  len(table.Failures),
		"skipped":   len(table.Skipped),
		"slope":     table.Calibration.Slope,
		"intercept": table.Calibration.Intercept,
	}).Info("calibration complete")

	return result, nil
}

// Summary prints a human-readable run summary
func (p *Pipeline) Summary(result *RunResult) {
	p.renderer.Summary(os.Stdout, result)
}

// ResultsFileName is the name of the results CSV for a detector
func ResultsFileName(detector string) string {
	return detector + " + results.csv"
}

// calibrate fits the energy calibration over every record and converts the
// peak widths to keV
func calibrate(table *model.ResultsTable, conversion model.FWHMConversion) error {
	channels := make([]float64, len(table.Records))
	energies := make([]float64, len(table.Records))
	for i, rec := range table.Records {
		channels[i] = rec.PeakLoc
		energies[i] = rec.Energy
	}

	line, err := fit.Linear(channels, energies)
	if err != nil {
		return pkgerrors.Wrapf(err, "energy calibration for %s", table.Detector)
	}
	table.Calibration = line
	for i := range table.Records {
		table.Records[i].FWHMkeV = line.ConvertFWHM(table.Records[i].FWHM, conversion)
	}
	return nil
}

// fileSkippable reports whether a per-file error should drop only that file
func fileSkippable(err error) bool {
	var formatErr *model.FormatError
	if pkgerrors.As(err, &formatErr) {
		return true
	}
	var pathErr *os.PathError
	return pkgerrors.As(err, &pathErr)
}

// listSpectra returns the files in dir with the given extension, sorted by
// name, leaving out the background file
func listSpectra(dir, ext, background string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read data directory %s", dir)
	}

	bgAbs, _ := filepath.Abs(background)
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if abs, _ := filepath.Abs(path); abs == bgAbs {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func calibrationFigure(table *model.ResultsTable) plot.Figure {
	channels := make([]float64, len(table.Records))
	energies := make([]float64, len(table.Records))
	lo, hi := 0.0, 0.0
	for i, rec := range table.Records {
		channels[i] = rec.PeakLoc
		energies[i] = rec.Energy
		if rec.PeakLoc > hi {
			hi = rec.PeakLoc
		}
	}
	fx, fy := plot.Curve(table.Calibration.Energy, lo, hi*1.1, 100, false)

	return plot.Figure{
		Name:   table.Detector + " calibration",
		Title:  fmt.Sprintf("%s energy calibration", table.Detector),
		XLabel: "Channel",
		YLabel: "Energy (keV)",
		Series: []plot.Series{
			{Label: "peaks", X: channels, Y: energies},
			{Label: fmt.Sprintf("E = %.4g ch + %.4g", table.Calibration.Slope, table.Calibration.Intercept), X: fx, Y: fy, Line: true},
		},
	}
}
