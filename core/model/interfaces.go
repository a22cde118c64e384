package model

import (
	"gonum.org/v1/gonum/mat"
)

// Estimator learns from features X and a label column vector y.
type Estimator interface {
	Fit(X, y mat.Matrix) error
}

// Predictor produces one label per row of X as an (n, 1) matrix.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the mean accuracy of Predict(X) against y.
	Score(X, y mat.Matrix) (float64, error)
}

// Classifier combines interfaces for classification models.
type Classifier interface {
	Estimator
	Predictor
	Scorer

	// Classes returns the sorted unique classes seen during fitting.
	Classes() []int
}

// ProbabilisticClassifier is a Classifier with per-class probability estimates.
type ProbabilisticClassifier interface {
	Classifier

	// PredictProba returns an (n, len(Classes())) matrix.
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// FeatureImportancer exposes normalized per-feature importances after Fit.
type FeatureImportancer interface {
	FeatureImportances() []float64
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Transformer is an interface for data transformation
type Transformer interface {
	// Fit learns parameters necessary for transformation
	Fit(X mat.Matrix) error

	// Transform transforms data
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform executes Fit and Transform simultaneously
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ClassifierFactory builds a fresh, unfitted classifier. Cross-validation and
// the sweep call it once per fit so no two fits share state.
type ClassifierFactory func() Classifier

// SupervisedTransformer is a transformer whose Fit needs the labels, such as
// model-based feature selection.
type SupervisedTransformer interface {
	Fit(X, y mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
}
