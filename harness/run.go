// Package harness runs the model comparisons: it splits a dataset, fits the
// preprocessing chain on the training rows only, reduces or selects
// features, fits the classifier menu and the SVM sweep, and renders the
// results.
package harness

import (
	"context"
	"io"
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/cardioml/config"
	"github.com/ezoic/cardioml/dataset"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
	"github.com/ezoic/cardioml/plots"
	"github.com/ezoic/cardioml/sklearn/model_selection"
	"github.com/ezoic/cardioml/sklearn/pipeline"
)

// Run carries the configuration and outputs of one comparison. Every stage
// receives it explicitly; the harness keeps no package-level state.
type Run struct {
	Config *config.Config
	Out    io.Writer
	// Plots is nil when charts are disabled.
	Plots *plots.Plotter

	logger log.Logger
}

// NewRun prepares a run writing text to out.
func NewRun(cfg *config.Config, out io.Writer) (*Run, error) {
	r := &Run{
		Config: cfg,
		Out:    out,
		logger: log.GetLoggerWithName("harness"),
	}
	if cfg.Plots.Enabled() {
		p, err := plots.New(cfg.Plots.Dir)
		if err != nil {
			return nil, err
		}
		r.Plots = p
	}
	return r, nil
}

// Prepared is a train/test pair after preprocessing.
type Prepared struct {
	FeatureNames []string
	XTrain       *mat.Dense
	XTest        *mat.Dense
	YTrain       []int
	YTest        []int
}

// NFeatures returns the number of columns of the prepared matrices.
func (p *Prepared) NFeatures() int {
	_, c := p.XTrain.Dims()
	return c
}

func labelMatrix(y []int) *mat.Dense {
	return mat.NewDense(len(y), 1, lo.Map(y, func(l int, _ int) float64 { return float64(l) }))
}

// YTrainMatrix returns the training labels as an (n, 1) matrix.
func (p *Prepared) YTrainMatrix() *mat.Dense { return labelMatrix(p.YTrain) }

// YTestMatrix returns the test labels as an (n, 1) matrix.
func (p *Prepared) YTestMatrix() *mat.Dense { return labelMatrix(p.YTest) }

// WithFeatures returns a Prepared sharing the labels but holding new
// matrices, as produced by a reduction step.
func (p *Prepared) WithFeatures(names []string, train, test mat.Matrix) *Prepared {
	return &Prepared{
		FeatureNames: names,
		XTrain:       mat.DenseCopyOf(train),
		XTest:        mat.DenseCopyOf(test),
		YTrain:       p.YTrain,
		YTest:        p.YTest,
	}
}

// prepare splits d and runs chain: fitted on the training rows, replayed on
// the test rows.
func prepare(ctx context.Context, d *dataset.Dataset, split model_selection.Split, chain *pipeline.Pipeline) (*Prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	xTrain := model_selection.TakeRows(d.X, split.Train)
	xTest := model_selection.TakeRows(d.X, split.Test)

	trainOut, err := chain.FitTransform(xTrain, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: preprocessing train rows", d.Name)
	}
	testOut, err := chain.Transform(xTest)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: preprocessing test rows", d.Name)
	}

	p := &Prepared{
		FeatureNames: d.FeatureNames,
		XTrain:       mat.DenseCopyOf(trainOut),
		XTest:        mat.DenseCopyOf(testOut),
		YTrain:       lo.Map(split.Train, func(i int, _ int) int { return d.Y[i] }),
		YTest:        lo.Map(split.Test, func(i int, _ int) int { return d.Y[i] }),
	}
	if hasNaN(p.XTrain) || hasNaN(p.XTest) {
		return nil, errors.NewModelError(d.Name+": preprocessing", "NaN left after preprocessing", errors.ErrMissingValues)
	}
	return p, nil
}

func hasNaN(m *mat.Dense) bool {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		if floats.HasNaN(m.RawRowView(i)) {
			return true
		}
	}
	return false
}

// meanStd returns the mean and population standard deviation of v.
func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanStdDev(v, nil)
}
