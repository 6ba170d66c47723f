// Package plot renders result figures with gonum/plot. Figures are described
// as data so the analysis code never touches drawing calls, and a renderer in
// "none" mode lets batch runs skip drawing entirely.
package plot

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

// Mode selects what the renderer does with a figure
type Mode string

const (
	ModeSave Mode = "save" // write the figure to disk
	ModeNone Mode = "none" // build nothing
)

// Figure size on disk
const (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// Series is one data set on a figure
type Series struct {
	Label string
	X, Y  []float64
	Line  bool // draw as a line instead of points
}

// Figure describes one plot
type Figure struct {
	Name   string // file name without extension
	Title  string
	XLabel string
	YLabel string
	LogX   bool
	LogY   bool
	Series []Series
}

// Renderer writes figures according to its mode
type Renderer struct {
	mode   Mode
	dir    string
	format string
	mu     sync.Mutex // serializes drawing; callers render from worker goroutines
}

// NewRenderer creates a renderer. format is png, svg or pdf.
func NewRenderer(mode Mode, dir, format string) (*Renderer, error) {
	switch mode {
	case ModeSave, ModeNone:
	default:
		return nil, &model.ConfigError{Field: "output.plot", Message: fmt.Sprintf("want save or none, got %q", mode)}
	}
	switch format {
	case "png", "svg", "pdf":
	default:
		return nil, &model.ConfigError{Field: "output.plot_format", Message: fmt.Sprintf("want png, svg or pdf, got %q", format)}
	}
	return &Renderer{mode: mode, dir: dir, format: format}, nil
}

// Mode returns the renderer mode
func (r *Renderer) Mode() Mode {
	return r.mode
}

// Render draws fig and returns the written path, or "" when suppressed
func (r *Renderer) Render(fig Figure) (string, error) {
	if r.mode == ModeNone {
		return "", nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := build(fig)
	if err != nil {
		return "", fmt.Errorf("build figure %s: %w", fig.Name, err)
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to create plot directory %s", r.dir)
	}
	path := filepath.Join(r.dir, fileName(fig.Name)+"."+r.format)
	if err := p.Save(Width, Height, path); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to save figure %s", path)
	}

	logrus.WithField("path", path).Debug("figure written")
	return path, nil
}

func build(fig Figure) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fig.Title
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel
	p.Add(plotter.NewGrid())

	if fig.LogX {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	if fig.LogY {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	for i, s := range fig.Series {
		xy := points(s, fig.LogX, fig.LogY)
		if len(xy) == 0 {
			continue
		}

		if s.Line {
			line, err := plotter.NewLine(xy)
			if err != nil {
				return nil, err
			}
			line.LineStyle.Width = vg.Points(1.5)
			line.LineStyle.Color = plotutil.Color(i)
			p.Add(line)
			if s.Label != "" {
				p.Legend.Add(s.Label, line)
			}
			continue
		}

		scatter, err := plotter.NewScatter(xy)
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyle.Radius = vg.Points(3)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Color = plotutil.Color(i)
		p.Add(scatter)
		if s.Label != "" {
			p.Legend.Add(s.Label, scatter)
		}
	}
	p.Legend.Top = true
	return p, nil
}

// points drops samples a log axis cannot show and any non-finite values
func points(s Series, logX, logY bool) plotter.XYs {
	n := len(s.X)
	if len(s.Y) < n {
		n = len(s.Y)
	}
	xy := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		x, y := s.X[i], s.Y[i]
		if !finite(x) || !finite(y) || (logX && x <= 0) || (logY && y <= 0) {
			continue
		}
		xy = append(xy, plotter.XY{X: x, Y: y})
	}
	return xy
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func fileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "figure"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
}

// Curve samples f at n evenly spaced points in [lo, hi]. With logSpacing the
// points are evenly spaced in log(x); lo must then be positive.
func Curve(f func(float64) float64, lo, hi float64, n int, logSpacing bool) (x, y []float64) {
	if n < 2 {
		n = 2
	}
	x = make([]float64, n)
	y = make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		if logSpacing {
			x[i] = math.Exp(math.Log(lo) + t*(math.Log(hi)-math.Log(lo)))
		} else {
			x[i] = lo + t*(hi-lo)
		}
		y[i] = f(x[i])
	}
	return x, y
}
