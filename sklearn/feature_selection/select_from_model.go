// Package feature_selection provides model-based feature selection.
package feature_selection

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
	"github.com/ezoic/cardioml/preprocessing"
)

// Threshold rules accepted by WithThreshold.
const (
	ThresholdMean   = "mean"
	ThresholdMedian = "median"
)

var globalProvider = log.DefaultProvider()

// ImportanceEstimator is an estimator exposing per-feature importances
// after Fit.
type ImportanceEstimator interface {
	model.Estimator
	model.FeatureImportancer
}

// SelectFromModel keeps the features whose importance under a fitted
// estimator is at least a threshold.
type SelectFromModel struct {
	state     *model.StateManager
	logger    log.Logger
	estimator ImportanceEstimator
	threshold string
	value     float64

	// Fitted attributes
	Importances []float64
	Threshold   float64
	support     []bool
	kept        []int
}

// SelectFromModelOption is a functional option for SelectFromModel
type SelectFromModelOption func(*SelectFromModel)

// WithThreshold sets the rule ("mean" or "median") used to derive the cut.
func WithThreshold(rule string) SelectFromModelOption {
	return func(s *SelectFromModel) {
		s.threshold = rule
	}
}

// WithThresholdValue sets an absolute importance cut.
func WithThresholdValue(v float64) SelectFromModelOption {
	return func(s *SelectFromModel) {
		s.threshold = ""
		s.value = v
	}
}

// NewSelectFromModel wraps estimator with the mean-importance rule.
func NewSelectFromModel(estimator ImportanceEstimator, opts ...SelectFromModelOption) *SelectFromModel {
	s := &SelectFromModel{
		state:     model.NewStateManager(),
		estimator: estimator,
		threshold: ThresholdMean,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = globalProvider.GetLoggerWithName("SelectFromModel")
	return s
}

// Fit fits the wrapped estimator and computes the support mask.
func (s *SelectFromModel) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SelectFromModel.Fit")
	if s.estimator == nil {
		return errors.NewValidationError("estimator", "must not be nil", nil)
	}
	if err := s.estimator.Fit(X, y); err != nil {
		return errors.Wrap(err, "SelectFromModel: fitting estimator")
	}
	n, p := X.Dims()
	imp := s.estimator.FeatureImportances()
	if len(imp) != p {
		return errors.NewDimensionError("SelectFromModel.Fit", p, len(imp), 1)
	}

	switch s.threshold {
	case ThresholdMean:
		s.Threshold = floats.Sum(imp) / float64(p)
	case ThresholdMedian:
		sorted := append([]float64(nil), imp...)
		sort.Float64s(sorted)
		if p%2 == 1 {
			s.Threshold = sorted[p/2]
		} else {
			s.Threshold = (sorted[p/2-1] + sorted[p/2]) / 2
		}
	case "":
		s.Threshold = s.value
	default:
		return errors.NewValidationError("threshold", "must be mean, median or a value", s.threshold)
	}

	s.Importances = imp
	s.support = make([]bool, p)
	s.kept = s.kept[:0]
	for j, v := range imp {
		if v >= s.Threshold {
			s.support[j] = true
			s.kept = append(s.kept, j)
		}
	}
	if len(s.kept) == 0 {
		return errors.NewValueError("SelectFromModel.Fit",
			fmt.Sprintf("no feature reaches threshold %g", s.Threshold))
	}

	s.state.SetDimensions(p, n)
	s.state.SetFitted()
	s.logger.Info("Features selected",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhasePreprocessing,
		log.FeaturesKey, p,
		"selected", len(s.kept),
		"threshold", s.Threshold,
	)
	return nil
}

// Transform keeps the selected columns of X.
func (s *SelectFromModel) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "SelectFromModel.Transform")
	if err := s.state.RequireFitted("SelectFromModel", "Transform"); err != nil {
		return nil, err
	}
	_, p := X.Dims()
	if err := s.state.CheckFeatures("SelectFromModel.Transform", p); err != nil {
		return nil, err
	}
	return preprocessing.SelectColumns(X, s.kept), nil
}

// FitTransform fits on (X, y) and returns the selected columns of X.
func (s *SelectFromModel) FitTransform(X, y mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X, y); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// Support returns the per-feature selection mask.
func (s *SelectFromModel) Support() []bool {
	return append([]bool(nil), s.support...)
}

// SelectedFeatures returns the kept column indices in ascending order.
func (s *SelectFromModel) SelectedFeatures() []int {
	return append([]int(nil), s.kept...)
}

// NSelected returns how many features were kept.
func (s *SelectFromModel) NSelected() int {
	return len(s.kept)
}

// Estimator returns the wrapped estimator.
func (s *SelectFromModel) Estimator() ImportanceEstimator {
	return s.estimator
}
