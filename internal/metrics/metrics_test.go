package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRecorder(t *testing.T) {
	Convey("Given a recorder", t, func() {
		r := NewRecorder()

		Convey("When files and fits are recorded", func() {
			r.FileProcessed("NaITi", StatusOK, 20*time.Millisecond)
			r.FileProcessed("NaITi", StatusOK, 0)
			r.FileProcessed("NaITi", StatusSkipped, 0)
			r.PeakFit("NaITi", "Ba", StatusOK, 3*time.Millisecond)
			r.PeakFit("NaITi", "Ba", StatusFailed, 3*time.Millisecond)

			Convey("Then the counters reflect each label set", func() {
				So(testutil.ToFloat64(r.filesProcessed.WithLabelValues("NaITi", StatusOK)), ShouldEqual, 2)
				So(testutil.ToFloat64(r.filesProcessed.WithLabelValues("NaITi", StatusSkipped)), ShouldEqual, 1)
				So(testutil.ToFloat64(r.peakFits.WithLabelValues("NaITi", "Ba", StatusFailed)), ShouldEqual, 1)
			})
		})

		Convey("When the calibration is recorded", func() {
			r.Calibration("BGO", 2.5, -4, 0.999)

			Convey("Then each parameter is a gauge", func() {
				So(testutil.ToFloat64(r.calibration.WithLabelValues("BGO", "slope")), ShouldEqual, 2.5)
				So(testutil.ToFloat64(r.calibration.WithLabelValues("BGO", "intercept")), ShouldEqual, -4)
			})
		})

		Convey("When written to a textfile", func() {
			r.FileProcessed("CdTe", StatusOK, time.Millisecond)
			path := filepath.Join(t.TempDir(), "detlab.prom")
			err := r.WriteTextfile(path)

			Convey("Then the file holds the exposition format", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(strings.Contains(string(data), `detlab_files_processed_total{detector="CdTe",status="ok"} 1`), ShouldBeTrue)
			})
		})
	})
}

func TestRecorderOptions(t *testing.T) {
	Convey("Given custom options", t, func() {
		r := NewRecorder(WithNamespace("lab"), WithHistogramBuckets([]float64{1, 2}))

		Convey("Then they are applied", func() {
			So(r.namespace, ShouldEqual, "lab")
			So(r.histogramBuckets, ShouldResemble, []float64{1, 2})
		})

		Convey("Then empty values keep the defaults", func() {
			d := NewRecorder(WithNamespace(""), WithHistogramBuckets(nil))
			So(d.namespace, ShouldEqual, "detlab")
			So(len(d.histogramBuckets), ShouldBeGreaterThan, 0)
		})
	})
}
