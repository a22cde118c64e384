package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	cmlErrors "github.com/ezoic/cardioml/pkg/errors"
)

// MissingColumnFilter drops columns whose fraction of NaN cells in the
// training rows is strictly greater than MaxMissingRatio.
type MissingColumnFilter struct {
	model.BaseEstimator

	MaxMissingRatio float64

	// MissingRatio は学習データにおける列ごとの欠損率
	MissingRatio []float64

	support   []bool
	kept      []int
	NFeatures int
}

// NewMissingColumnFilter creates a filter with the given ratio limit.
func NewMissingColumnFilter(maxMissingRatio float64) *MissingColumnFilter {
	f := &MissingColumnFilter{MaxMissingRatio: maxMissingRatio}
	f.ModelType = "MissingColumnFilter"
	return f
}

// Fit measures per-column missing ratios and decides which columns to keep.
func (f *MissingColumnFilter) Fit(X mat.Matrix) (err error) {
	defer cmlErrors.Recover(&err, "MissingColumnFilter.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return cmlErrors.NewModelError("MissingColumnFilter.Fit", "empty data", cmlErrors.ErrEmptyData)
	}
	if f.MaxMissingRatio < 0 || f.MaxMissingRatio > 1 {
		return cmlErrors.NewValidationError("max_missing_ratio", "must be within [0, 1]", f.MaxMissingRatio)
	}

	f.NFeatures = c
	f.MissingRatio = make([]float64, c)
	f.support = make([]bool, c)
	f.kept = f.kept[:0]
	for j := 0; j < c; j++ {
		missing := 0
		for i := 0; i < r; i++ {
			if math.IsNaN(X.At(i, j)) {
				missing++
			}
		}
		f.MissingRatio[j] = float64(missing) / float64(r)
		if f.MissingRatio[j] <= f.MaxMissingRatio {
			f.support[j] = true
			f.kept = append(f.kept, j)
		}
	}

	if len(f.kept) == 0 {
		return cmlErrors.NewValueError("MissingColumnFilter.Fit", "every column exceeds the missing ratio limit")
	}

	f.SetFitted()
	f.LogInfo("Missing-value columns dropped", "dropped", c-len(f.kept), "kept", len(f.kept))
	return nil
}

// Transform keeps the fitted column subset of X.
func (f *MissingColumnFilter) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer cmlErrors.Recover(&err, "MissingColumnFilter.Transform")
	if !f.IsFitted() {
		return nil, cmlErrors.NewNotFittedError("MissingColumnFilter", "Transform")
	}
	_, c := X.Dims()
	if c != f.NFeatures {
		return nil, cmlErrors.NewDimensionError("MissingColumnFilter.Transform", f.NFeatures, c, 1)
	}
	return SelectColumns(X, f.kept), nil
}

// FitTransform fits on X and returns the kept columns.
func (f *MissingColumnFilter) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer cmlErrors.Recover(&err, "MissingColumnFilter.FitTransform")
	if err := f.Fit(X); err != nil {
		return nil, err
	}
	return f.Transform(X)
}

// Support returns a mask over the input columns, true where kept.
func (f *MissingColumnFilter) Support() []bool {
	return append([]bool(nil), f.support...)
}

// KeptColumns returns the indices of kept input columns in order.
func (f *MissingColumnFilter) KeptColumns() []int {
	return append([]int(nil), f.kept...)
}

// SelectColumns copies the listed columns of X, in order, into a new matrix.
// cols must be non-empty.
func SelectColumns(X mat.Matrix, cols []int) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for i := 0; i < r; i++ {
		for k, j := range cols {
			out.Set(i, k, X.At(i, j))
		}
	}
	return out
}
