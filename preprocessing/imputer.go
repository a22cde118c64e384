package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/cardioml/core/model"
	cmlErrors "github.com/ezoic/cardioml/pkg/errors"
)

// Imputation strategies.
const (
	StrategyMedian = "median"
	StrategyMean   = "mean"
)

// SimpleImputer replaces NaN cells with a per-column statistic learned from
// the training rows. A column with no observed value in training fills with 0.
type SimpleImputer struct {
	model.BaseEstimator

	Strategy string

	// Statistics は列ごとの補完値
	Statistics []float64

	NFeatures int
}

// NewSimpleImputer creates an imputer. strategy is "median" or "mean".
func NewSimpleImputer(strategy string) *SimpleImputer {
	imp := &SimpleImputer{Strategy: strategy}
	imp.ModelType = "SimpleImputer"
	return imp
}

// Fit computes the fill value of every column, ignoring NaN cells.
func (imp *SimpleImputer) Fit(X mat.Matrix) (err error) {
	defer cmlErrors.Recover(&err, "SimpleImputer.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return cmlErrors.NewModelError("SimpleImputer.Fit", "empty data", cmlErrors.ErrEmptyData)
	}

	var reduce func([]float64) float64
	switch imp.Strategy {
	case StrategyMedian, "":
		imp.Strategy = StrategyMedian
		reduce = median
	case StrategyMean:
		reduce = func(v []float64) float64 { return stat.Mean(v, nil) }
	default:
		return cmlErrors.NewValueError("SimpleImputer.Fit",
			fmt.Sprintf("unknown strategy %q (want %q or %q)", imp.Strategy, StrategyMedian, StrategyMean))
	}

	imp.NFeatures = c
	imp.Statistics = make([]float64, c)
	observed := make([]float64, 0, r)
	empty := 0
	for j := 0; j < c; j++ {
		observed = observed[:0]
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			empty++
			continue
		}
		imp.Statistics[j] = reduce(observed)
	}

	imp.SetFitted()
	imp.LogDebug("SimpleImputer fitted", "strategy", imp.Strategy, "features", c, "empty_columns", empty)
	return nil
}

// Transform returns a copy of X with every NaN replaced by its column's
// fitted statistic.
func (imp *SimpleImputer) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer cmlErrors.Recover(&err, "SimpleImputer.Transform")
	if !imp.IsFitted() {
		return nil, cmlErrors.NewNotFittedError("SimpleImputer", "Transform")
	}
	r, c := X.Dims()
	if c != imp.NFeatures {
		return nil, cmlErrors.NewDimensionError("SimpleImputer.Transform", imp.NFeatures, c, 1)
	}

	out := mat.DenseCopyOf(X)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(out.At(i, j)) {
				out.Set(i, j, imp.Statistics[j])
			}
		}
	}
	return out, nil
}

// FitTransform fits on X and returns X imputed.
func (imp *SimpleImputer) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer cmlErrors.Recover(&err, "SimpleImputer.FitTransform")
	if err := imp.Fit(X); err != nil {
		return nil, err
	}
	return imp.Transform(X)
}

// GetParams returns the imputer parameters.
func (imp *SimpleImputer) GetParams() map[string]interface{} {
	return map[string]interface{}{"strategy": imp.Strategy}
}

// median of v; v is reordered.
func median(v []float64) float64 {
	sort.Float64s(v)
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}
