// Package plots renders the exploratory and evaluation charts as PNG files
// with gonum/plot.
package plots

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
)

// maxTickLabels bounds the named ticks drawn on a heatmap axis.
const maxTickLabels = 40

// Plotter writes charts into Dir.
type Plotter struct {
	Dir    string
	Width  vg.Length
	Height vg.Length
	Bins   int

	logger log.Logger
}

// New creates dir if needed and returns a Plotter writing 4x4 inch charts.
func New(dir string) (*Plotter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "plots: creating %s", dir)
	}
	return &Plotter{
		Dir:    dir,
		Width:  4 * vg.Inch,
		Height: 4 * vg.Inch,
		Bins:   20,
		logger: log.GetLoggerWithName("plots"),
	}, nil
}

func fileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	return name + ".png"
}

func (p *Plotter) save(pl *plot.Plot, name string, w, h vg.Length) (string, error) {
	path := filepath.Join(p.Dir, fileName(name))
	if err := pl.Save(w, h, path); err != nil {
		return "", errors.Wrapf(err, "plots: saving %s", path)
	}
	p.logger.Debug("Chart written", "path", path)
	return path, nil
}

// Histogram draws the distribution of values, ignoring NaN entries. It
// returns the written path, or "" when no value is present.
func (p *Plotter) Histogram(name string, values []float64) (string, error) {
	vals := plotter.Values(lo.Filter(values, func(v float64, _ int) bool { return !math.IsNaN(v) }))
	if len(vals) == 0 {
		return "", nil
	}
	h, err := plotter.NewHist(vals, p.Bins)
	if err != nil {
		return "", errors.Wrapf(err, "plots: histogram %s", name)
	}
	pl := plot.New()
	pl.Title.Text = name
	pl.Y.Label.Text = "count"
	pl.Add(h)
	return p.save(pl, "hist_"+name, p.Width, p.Height)
}

// LabelDistribution draws one bar per label.
func (p *Plotter) LabelDistribution(name string, labels []int, counts []int) (string, error) {
	if len(labels) != len(counts) {
		return "", errors.NewDimensionError("LabelDistribution", len(labels), len(counts), 0)
	}
	if len(labels) == 0 {
		return "", errors.NewModelError("LabelDistribution", "no labels", errors.ErrEmptyData)
	}
	vals := plotter.Values(lo.Map(counts, func(c int, _ int) float64 { return float64(c) }))
	bars, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil {
		return "", errors.Wrap(err, "plots: label bars")
	}
	bars.Color = plotutil.Color(0)

	pl := plot.New()
	pl.Title.Text = name + " label distribution"
	pl.Y.Label.Text = "count"
	pl.Add(bars)
	pl.NominalX(lo.Map(labels, func(l int, _ int) string { return fmt.Sprint(l) })...)
	return p.save(pl, name+"_labels", p.Width, p.Height)
}

// corrGrid adapts a correlation matrix to plotter.GridXYZ with a fixed
// [-1, 1] range.
type corrGrid struct{ m *mat.SymDense }

func (g corrGrid) Dims() (c, r int)   { n := g.m.SymmetricDim(); return n, n }
func (g corrGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }
func (g corrGrid) Min() float64       { return -1 }
func (g corrGrid) Max() float64       { return 1 }

// CorrelationHeatmap draws a correlation matrix. NaN cells (constant
// columns) are grey. Axis names are drawn when there are few enough.
func (p *Plotter) CorrelationHeatmap(name string, names []string, corr *mat.SymDense) (string, error) {
	n := corr.SymmetricDim()
	if len(names) != n {
		return "", errors.NewDimensionError("CorrelationHeatmap", n, len(names), 0)
	}
	h := plotter.NewHeatMap(corrGrid{corr}, palette.Heat(32, 1))
	h.NaN = color.Gray{Y: 160}

	pl := plot.New()
	pl.Title.Text = name + " correlation"
	pl.Add(h)
	if n <= maxTickLabels {
		ticks := lo.Map(names, func(s string, i int) plot.Tick { return plot.Tick{Value: float64(i), Label: s} })
		pl.X.Tick.Marker = plot.ConstantTicks(ticks)
		pl.Y.Tick.Marker = plot.ConstantTicks(ticks)
	}
	side := 6 * vg.Inch
	return p.save(pl, name+"_correlation", side, side)
}

// Curve draws y against 1..len(y), as used for cumulative explained variance
// and eigenvalues per component count. A positive marker draws a horizontal
// reference line.
func (p *Plotter) Curve(name, title, yLabel string, y []float64, marker float64) (string, error) {
	if len(y) == 0 {
		return "", errors.NewModelError("Curve", "no points", errors.ErrEmptyData)
	}
	pts := make(plotter.XYs, len(y))
	for i, v := range y {
		pts[i] = plotter.XY{X: float64(i + 1), Y: v}
	}
	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = "components"
	pl.Y.Label.Text = yLabel
	if err := plotutil.AddLinePoints(pl, yLabel, pts); err != nil {
		return "", errors.Wrap(err, "plots: curve")
	}
	if marker > 0 {
		ref, err := plotter.NewLine(plotter.XYs{{X: 1, Y: marker}, {X: float64(len(y)), Y: marker}})
		if err != nil {
			return "", errors.Wrap(err, "plots: reference line")
		}
		ref.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		pl.Add(ref)
	}
	return p.save(pl, name, p.Width, p.Height)
}

// Series is one named line of (x, y) points; NaN y values are skipped.
type Series struct {
	Name string
	X, Y []float64
}

// LogXLines draws several series on a log-scaled x axis, e.g. accuracy
// against the SVM regularization strength per kernel.
func (p *Plotter) LogXLines(name, title, xLabel, yLabel string, series []Series) (string, error) {
	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = xLabel
	pl.Y.Label.Text = yLabel
	pl.X.Scale = plot.LogScale{}
	pl.X.Tick.Marker = plot.LogTicks{Prec: -1}

	var args []interface{}
	for _, s := range series {
		if len(s.X) != len(s.Y) {
			return "", errors.NewDimensionError("LogXLines", len(s.X), len(s.Y), 0)
		}
		var pts plotter.XYs
		for i := range s.X {
			if s.X[i] > 0 && !math.IsNaN(s.Y[i]) {
				pts = append(pts, plotter.XY{X: s.X[i], Y: s.Y[i]})
			}
		}
		if len(pts) > 0 {
			args = append(args, s.Name, pts)
		}
	}
	if len(args) == 0 {
		return "", errors.NewModelError("LogXLines", "no finite points", errors.ErrEmptyData)
	}
	if err := plotutil.AddLinePoints(pl, args...); err != nil {
		return "", errors.Wrap(err, "plots: lines")
	}
	pl.Legend.Top = true
	return p.save(pl, name, 6*vg.Inch, p.Height)
}
