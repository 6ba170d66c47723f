// Package metrics records per-run Prometheus metrics for the calibration
// pipeline and exports them in the node-exporter textfile format.
package metrics

import (
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Recorder holds Prometheus metrics on its own registry. Counters only grow,
// so callers create one Recorder per run to get per-run counts.
type Recorder struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	filesProcessed *prometheus.CounterVec
	peakFits       *prometheus.CounterVec
	fitDuration    *prometheus.HistogramVec
	fileDuration   prometheus.Histogram
	calibration    *prometheus.GaugeVec
}

// Option applies a configuration option to the Recorder
type Option func(*Recorder)

// WithNamespace sets the namespace for all metrics
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for the duration histograms
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.histogramBuckets = buckets
		}
	}
}

// NewRecorder creates a recorder with a fresh registry
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace:        "detlab",
		histogramBuckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.initializeMetrics()
	return r
}

func (r *Recorder) initializeMetrics() {
	auto := promauto.With(r.registry)

	r.filesProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "files_processed_total",
		Help:      "Spectrum files seen by the calibration pipeline",
	}, []string{"detector", "status"})

	r.peakFits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "peak_fits_total",
		Help:      "Compound peak fits attempted",
	}, []string{"detector", "isotope", "status"})

	r.fitDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "peak_fit_duration_seconds",
		Help:      "Time spent in one compound peak fit",
		Buckets:   r.histogramBuckets,
	}, []string{"detector"})

	r.fileDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "file_duration_seconds",
		Help:      "Time spent loading, subtracting and fitting one file",
		Buckets:   r.histogramBuckets,
	})

	r.calibration = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Name:      "calibration",
		Help:      "Fitted energy calibration line (slope keV/channel, intercept keV, r_squared)",
	}, []string{"detector", "param"})
}

// FileProcessed counts one file with the given status
func (r *Recorder) FileProcessed(detector, status string, elapsed time.Duration) {
	r.filesProcessed.WithLabelValues(detector, status).Inc()
	if elapsed > 0 {
		r.fileDuration.Observe(elapsed.Seconds())
	}
}

// PeakFit counts one fit attempt and records its duration
func (r *Recorder) PeakFit(detector, isotope, status string, elapsed time.Duration) {
	r.peakFits.WithLabelValues(detector, isotope, status).Inc()
	r.fitDuration.WithLabelValues(detector).Observe(elapsed.Seconds())
}

// Calibration records the fitted calibration line
func (r *Recorder) Calibration(detector string, slope, intercept, rSquared float64) {
	r.calibration.WithLabelValues(detector, "slope").Set(slope)
	r.calibration.WithLabelValues(detector, "intercept").Set(intercept)
	r.calibration.WithLabelValues(detector, "r_squared").Set(rSquared)
}

// WriteTextfile writes the registry to path for the node-exporter textfile
// collector
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return pkgerrors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
