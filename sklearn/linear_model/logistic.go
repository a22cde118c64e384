package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
	"github.com/ezoic/cardioml/preprocessing"
)

const (
	penaltyL2        = "l2"
	penaltyNone      = "none"
	binaryClassCount = 2
	epsilonSmall     = 1e-15
)

var globalProvider = log.DefaultProvider()

// LogisticRegression implements L2-regularized logistic regression fitted with
// L-BFGS. Multiclass problems are handled one-vs-rest.
//
// The objective per binary problem is
//
//	0.5*||w||^2 + C * sum_i s_i * logloss(y_i, sigmoid(w·x_i + b))
//
// where s_i is the class weight of row i (1 without class weighting).
type LogisticRegression struct {
	state  *model.StateManager
	logger log.Logger

	// Hyperparameters
	penalty      string  // "l2" or "none"
	C            float64 // Inverse regularization strength
	fitIntercept bool
	classWeight  string // "" or "balanced"
	maxIter      int
	tol          float64

	// Model parameters
	coef_      [][]float64 // 1 x n_features for binary, n_classes x n_features otherwise
	intercept_ []float64
	classes_   []int
	nClasses_  int
	nFeatures_ int
	nIter_     []int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      penaltyL2,
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
	}

	for _, opt := range opts {
		opt(lr)
	}

	lr.logger = globalProvider.GetLoggerWithName("LogisticRegression")

	return lr
}

// WithLRPenalty sets the regularization type ("l2" or "none")
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of L-BFGS iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the gradient-norm tolerance
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRClassWeight sets class weighting ("" or "balanced")
func WithLRClassWeight(mode string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.classWeight = mode
	}
}

// stableSigmoid computes sigmoid(z) in a numerically stable way.
func stableSigmoid(z float64) float64 {
	if z >= 0 {
		ez := math.Exp(-z)
		return 1.0 / (1.0 + ez)
	}
	ez := math.Exp(z)
	return ez / (1.0 + ez)
}

// clampProbability clamps probability to avoid log(0).
func clampProbability(p float64) float64 {
	if p < epsilonSmall {
		return epsilonSmall
	}
	if p > 1-epsilonSmall {
		return 1 - epsilonSmall
	}
	return p
}

func (lr *LogisticRegression) validate() error {
	switch lr.penalty {
	case penaltyL2:
		if lr.C <= 0 {
			return errors.NewValidationError("C", "must be > 0 for l2 penalty", lr.C)
		}
	case penaltyNone:
	default:
		return errors.NewValidationError("penalty", "lbfgs supports only l2 or none penalty", lr.penalty)
	}
	if lr.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")
	if err := lr.validate(); err != nil {
		return err
	}
	labels, err := model.CheckXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()

	lr.classes_ = model.UniqueLabels(labels)
	lr.nClasses_ = len(lr.classes_)
	lr.nFeatures_ = nFeatures
	if lr.nClasses_ < binaryClassCount {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs at least 2 classes, got %d", lr.nClasses_))
	}

	weights, err := preprocessing.ComputeClassWeight(lr.classWeight, lr.classes_, labels)
	if err != nil {
		return err
	}
	sw := preprocessing.SampleWeights(weights, labels)

	lr.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, lr.nClasses_,
	)

	nModels := lr.nClasses_
	if lr.nClasses_ == binaryClassCount {
		nModels = 1
	}
	lr.coef_ = make([][]float64, nModels)
	lr.intercept_ = make([]float64, nModels)
	lr.nIter_ = make([]int, nModels)

	xD := mat.DenseCopyOf(X)
	target := make([]float64, nSamples)
	for k := 0; k < nModels; k++ {
		// binary: positive class is classes_[1]; OvR: classes_[k]
		pos := lr.classes_[k]
		if nModels == 1 {
			pos = lr.classes_[1]
		}
		for i, l := range labels {
			target[i] = 0
			if l == pos {
				target[i] = 1
			}
		}
		if err := lr.fitBinaryLBFGS(xD, target, sw, k); err != nil {
			return errors.Wrapf(err, "failed to fit class %d", pos)
		}
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// fitBinaryLBFGS minimizes the weighted binary objective for model k.
func (lr *LogisticRegression) fitBinaryLBFGS(xD *mat.Dense, target, sw []float64, k int) error {
	nSamples, nFeatures := xD.Dims()
	pDim := nFeatures
	if lr.fitIntercept {
		pDim++
	}

	alpha := 0.0
	c := 1.0
	if lr.penalty == penaltyL2 {
		alpha = 1.0
		c = lr.C
	}
	weight := func(i int) float64 {
		if sw == nil {
			return 1.0
		}
		return sw[i]
	}
	invN := 1.0 / float64(nSamples)

	z := mat.NewVecDense(nSamples, nil)
	decision := func(theta []float64) {
		w := mat.NewVecDense(nFeatures, theta[:nFeatures])
		z.MulVec(xD, w)
		if lr.fitIntercept {
			b := theta[nFeatures]
			for i := 0; i < nSamples; i++ {
				z.SetVec(i, z.AtVec(i)+b)
			}
		}
	}

	prob := optimize.Problem{
		Func: func(theta []float64) float64 {
			decision(theta)
			loss := 0.0
			for i := 0; i < nSamples; i++ {
				p := clampProbability(stableSigmoid(z.AtVec(i)))
				loss += weight(i) * (-target[i]*math.Log(p) - (1.0-target[i])*math.Log(1.0-p))
			}
			w := theta[:nFeatures]
			return (c*loss + 0.5*alpha*floats.Dot(w, w)) * invN
		},
		Grad: func(grad, theta []float64) {
			decision(theta)
			diff := mat.NewVecDense(nSamples, nil)
			sumDiff := 0.0
			for i := 0; i < nSamples; i++ {
				d := c * weight(i) * (stableSigmoid(z.AtVec(i)) - target[i])
				diff.SetVec(i, d)
				sumDiff += d
			}
			gw := mat.NewVecDense(nFeatures, grad[:nFeatures])
			gw.MulVec(xD.T(), diff)
			for j := 0; j < nFeatures; j++ {
				grad[j] = (grad[j] + alpha*theta[j]) * invN
			}
			if lr.fitIntercept {
				grad[nFeatures] = sumDiff * invN
			}
		},
	}

	settings := optimize.Settings{
		GradientThreshold: lr.tol * invN,
		MajorIterations:   lr.maxIter,
	}
	result, err := optimize.Minimize(prob, make([]float64, pDim), &settings, &optimize.LBFGS{})
	if result == nil {
		return errors.Wrap(err, "lbfgs optimization failed")
	}
	if err != nil || result.Status == optimize.IterationLimit {
		msg := "increase max_iter or scale the data"
		if err != nil {
			msg = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", result.Stats.MajorIterations, msg))
	}

	theta := result.X
	lr.coef_[k] = append([]float64(nil), theta[:nFeatures]...)
	if lr.fitIntercept {
		lr.intercept_[k] = theta[nFeatures]
	}
	lr.nIter_[k] = result.Stats.MajorIterations
	return nil
}

// DecisionFunction returns w·x + b per model: (n, 1) for binary problems,
// (n, n_classes) otherwise.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LogisticRegression.DecisionFunction")
	if err := lr.state.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.state.CheckFeatures("LogisticRegression.DecisionFunction", nFeatures); err != nil {
		return nil, err
	}

	coef := mat.NewDense(len(lr.coef_), lr.nFeatures_, nil)
	for k, row := range lr.coef_ {
		coef.SetRow(k, row)
	}
	var scores mat.Dense
	scores.Mul(X, coef.T())
	for i := 0; i < nSamples; i++ {
		for k := range lr.coef_ {
			scores.Set(i, k, scores.At(i, k)+lr.intercept_[k])
		}
	}
	return &scores, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LogisticRegression.Predict")
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		if lr.nClasses_ == binaryClassCount {
			cls := lr.classes_[0]
			if scores.At(i, 0) > 0 {
				cls = lr.classes_[1]
			}
			predictions.Set(i, 0, float64(cls))
			continue
		}
		best := 0
		for k := 1; k < lr.nClasses_; k++ {
			if scores.At(i, k) > scores.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}

	lr.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.PredsKey, nSamples,
	)
	return predictions, nil
}

// PredictProba returns probability estimates for each class. One-vs-rest
// sigmoid outputs are normalized to sum to one.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LogisticRegression.PredictProba")
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, lr.nClasses_, nil)
	for i := 0; i < nSamples; i++ {
		if lr.nClasses_ == binaryClassCount {
			p1 := stableSigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1.0-p1)
			probas.Set(i, 1, p1)
			continue
		}
		row := make([]float64, lr.nClasses_)
		for k := range row {
			row[k] = stableSigmoid(scores.At(i, k))
		}
		if sum := floats.Sum(row); sum > 0 {
			floats.Scale(1/sum, row)
		}
		probas.SetRow(i, row)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return model.AccuracyScore("LogisticRegression.Score", predictions, y)
}

// Classes returns the sorted class labels seen in Fit.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// Coef returns a copy of the fitted coefficients.
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for k, row := range lr.coef_ {
		out[k] = append([]float64(nil), row...)
	}
	return out
}

// Intercept returns a copy of the fitted intercepts.
func (lr *LogisticRegression) Intercept() []float64 {
	return append([]float64(nil), lr.intercept_...)
}

// NIter returns the L-BFGS iterations used per binary model.
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"class_weight":  lr.classWeight,
		"solver":        "lbfgs",
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.fitIntercept, ok = value.(bool)
		case "class_weight":
			lr.classWeight, ok = value.(string)
		case "max_iter":
			lr.maxIter, ok = value.(int)
		case "tol":
			lr.tol, ok = value.(float64)
		default:
			return errors.NewValidationError("param", "unknown parameter", key)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	lr.state.Reset()
	return nil
}
