package harness

import (
	"context"
	"math"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/parallel"
	"github.com/ezoic/cardioml/pkg/log"
	"github.com/ezoic/cardioml/plots"
	"github.com/ezoic/cardioml/sklearn/svm"
)

// DefaultSweepC is the regularization grid of the SVM sweep.
var DefaultSweepC = []float64{0.001, 0.01, 0.1, 1, 10, 100, 1000}

// SweepOptions configures SVMSweep.
type SweepOptions struct {
	Kernels     []string
	C           []float64
	MaxIter     int
	ClassWeight string
	Workers     int
}

// SweepCell is one (kernel, C) fit. Accuracy is NaN when Err is set.
type SweepCell struct {
	Kernel    string
	C         float64
	Accuracy  float64
	Converged bool
	Err       error
}

// Failed reports whether the fit or scoring failed.
func (c SweepCell) Failed() bool { return c.Err != nil }

// SweepResult is the kernel × C accuracy grid; Cells are kernel-major.
type SweepResult struct {
	Kernels []string
	C       []float64
	Cells   []SweepCell
}

// Cell returns the cell for kernel index k and C index j.
func (r *SweepResult) Cell(k, j int) SweepCell {
	return r.Cells[k*len(r.C)+j]
}

// Failed returns the cells whose fit failed.
func (r *SweepResult) Failed() []SweepCell {
	return lo.Filter(r.Cells, func(c SweepCell, _ int) bool { return c.Failed() })
}

// BestPerKernel returns, per kernel, the cell with the highest accuracy; the
// smaller C wins ties. A kernel whose cells all failed reports its first
// cell.
func (r *SweepResult) BestPerKernel() []SweepCell {
	out := make([]SweepCell, len(r.Kernels))
	for k := range r.Kernels {
		best := r.Cell(k, 0)
		for j := 1; j < len(r.C); j++ {
			if c := r.Cell(k, j); better(c, best) {
				best = c
			}
		}
		out[k] = best
	}
	return out
}

// Best returns the best successful cell over the whole grid; earlier kernels
// and smaller C win ties. ok is false when every cell failed.
func (r *SweepResult) Best() (best SweepCell, ok bool) {
	for _, c := range r.BestPerKernel() {
		if !c.Failed() && (!ok || c.Accuracy > best.Accuracy) {
			best, ok = c, true
		}
	}
	return best, ok
}

func better(c, than SweepCell) bool {
	if c.Failed() {
		return false
	}
	return than.Failed() || c.Accuracy > than.Accuracy
}

// Series returns one accuracy-vs-C line per kernel for charting.
func (r *SweepResult) Series() []plots.Series {
	return lo.Map(r.Kernels, func(kernel string, k int) plots.Series {
		return plots.Series{
			Name: kernel,
			X:    r.C,
			Y:    lo.Map(r.C, func(_ float64, j int) float64 { return r.Cell(k, j).Accuracy }),
		}
	})
}

// SVMSweep fits one SVC per (kernel, C) on the training rows and records its
// test accuracy. Fits run on a bounded worker pool; each works on its own
// copy of the training matrix. A failing or panicking fit is recorded in its
// cell and the sweep continues. Cancelling ctx stops scheduling new cells and
// returns the context error.
func SVMSweep(ctx context.Context, data *Prepared, opts SweepOptions) (*SweepResult, error) {
	if len(opts.Kernels) == 0 {
		opts.Kernels = svm.Kernels
	}
	if len(opts.C) == 0 {
		opts.C = DefaultSweepC
	}
	logger := log.GetLoggerWithName("sweep")

	res := &SweepResult{
		Kernels: opts.Kernels,
		C:       opts.C,
		Cells:   make([]SweepCell, len(opts.Kernels)*len(opts.C)),
	}
	for k, kernel := range opts.Kernels {
		for j, c := range opts.C {
			res.Cells[k*len(opts.C)+j] = SweepCell{Kernel: kernel, C: c, Accuracy: math.NaN()}
		}
	}

	yTrain, yTest := data.YTrainMatrix(), data.YTestMatrix()
	start := time.Now()
	errs, err := parallel.ForEach(ctx, len(res.Cells), opts.Workers, func(_ context.Context, i int) error {
		cell := &res.Cells[i]
		svmOpts := []svm.SVCOption{
			svm.WithKernel(cell.Kernel),
			svm.WithC(cell.C),
			svm.WithSVCClassWeight(opts.ClassWeight),
		}
		if opts.MaxIter > 0 {
			svmOpts = append(svmOpts, svm.WithMaxIter(opts.MaxIter))
		}
		clf := svm.NewSVC(svmOpts...)
		if err := clf.Fit(mat.DenseCopyOf(data.XTrain), yTrain); err != nil {
			return err
		}
		acc, err := clf.Score(data.XTest, yTest)
		if err != nil {
			return err
		}
		cell.Accuracy = acc
		cell.Converged = clf.Converged()
		return nil
	})
	for i, e := range errs {
		if e != nil {
			res.Cells[i].Err = e
			res.Cells[i].Accuracy = math.NaN()
			logger.Warn("Sweep cell failed",
				log.KernelKey, res.Cells[i].Kernel,
				log.CKey, res.Cells[i].C,
				log.ErrorKey, e.Error(),
			)
		}
	}
	if err != nil {
		return nil, err
	}

	logger.Info("SVM sweep finished",
		log.OperationKey, log.OperationSweep,
		"cells", len(res.Cells),
		"failed", len(res.Failed()),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}
