// Package ensemble provides a bagged random forest of decision trees.
package ensemble

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/core/parallel"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
	"github.com/ezoic/cardioml/sklearn/tree"
)

var globalProvider = log.DefaultProvider()

// RandomForestClassifier fits NEstimators decision trees on bootstrap
// resamples with per-node feature subsampling and averages their class
// probabilities.
type RandomForestClassifier struct {
	state  *model.StateManager
	logger log.Logger

	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	classWeight     string
	randomState     int64
	nJobs           int

	estimators_         []*tree.DecisionTreeClassifier
	classes_            []int
	featureImportances_ []float64
}

// RandomForestOption is a functional option for RandomForestClassifier
type RandomForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a forest with 100 trees, gini, sqrt
// features per split and bootstrap resampling.
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       tree.CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     tree.MaxFeaturesSqrt,
		bootstrap:       true,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(rf)
	}

	rf.logger = globalProvider.GetLoggerWithName("RandomForestClassifier")
	return rf
}

// WithNEstimators sets the number of trees
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithRFCriterion sets the split criterion of every tree
func WithRFCriterion(criterion string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.criterion = criterion
	}
}

// WithRFMaxDepth sets the maximum depth of every tree
func WithRFMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxDepth = depth
	}
}

// WithRFMaxFeatures sets the per-split feature count ("", "sqrt", "log2" or an integer)
func WithRFMaxFeatures(maxFeatures string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = maxFeatures
	}
}

// WithBootstrap toggles bootstrap resampling
func WithBootstrap(bootstrap bool) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.bootstrap = bootstrap
	}
}

// WithRFClassWeight sets class weighting ("" or "balanced")
func WithRFClassWeight(mode string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.classWeight = mode
	}
}

// WithRFRandomState sets the seed. Equal seeds give identical forests
// regardless of the number of workers.
func WithRFRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

// WithNJobs sets how many trees are built concurrently (<= 0 uses GOMAXPROCS)
func WithNJobs(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nJobs = n
	}
}

// Fit builds the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")
	if rf.nEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be positive", rf.nEstimators)
	}
	labels, err := model.CheckXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	rf.classes_ = model.UniqueLabels(labels)

	// per-tree seeds are drawn up front so results do not depend on scheduling
	seed := rf.randomState
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	master := rand.New(rand.NewSource(seed))
	seeds := make([]int64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	xD := mat.DenseCopyOf(X)
	yD := model.LabelsToMatrix(labels)
	rf.estimators_ = make([]*tree.DecisionTreeClassifier, rf.nEstimators)

	start := time.Now()
	errs, err := parallel.ForEach(context.Background(), rf.nEstimators, rf.nJobs, func(_ context.Context, i int) error {
		rng := rand.New(rand.NewSource(seeds[i]))
		var weights []float64
		if rf.bootstrap {
			weights = make([]float64, nSamples)
			for k := 0; k < nSamples; k++ {
				weights[rng.Intn(nSamples)]++
			}
		}
		dt := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(rf.maxFeatures),
			tree.WithDTClassWeight(rf.classWeight),
			tree.WithDTRandomState(rng.Int63()),
		)
		if err := dt.FitWithWeights(xD, yD, weights); err != nil {
			return err
		}
		rf.estimators_[i] = dt
		return nil
	})
	if err != nil {
		return err
	}
	for i, e := range errs {
		if e != nil {
			return errors.Wrapf(e, "tree %d training failed", i)
		}
	}

	rf.featureImportances_ = make([]float64, nFeatures)
	for _, dt := range rf.estimators_ {
		for j, v := range dt.FeatureImportances() {
			rf.featureImportances_[j] += v
		}
	}
	sum := 0.0
	for _, v := range rf.featureImportances_ {
		sum += v
	}
	if sum > 0 {
		for j := range rf.featureImportances_ {
			rf.featureImportances_[j] /= sum
		}
	}

	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()
	rf.logger.Info("Forest built",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"trees", rf.nEstimators,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// PredictProba averages the trees' leaf class distributions.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "RandomForestClassifier.PredictProba")
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := rf.state.CheckFeatures("RandomForestClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	sum := mat.NewDense(nSamples, len(rf.classes_), nil)
	for _, dt := range rf.estimators_ {
		p, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.estimators_)), sum)
	return sum, nil
}

// Predict returns the class with the highest averaged probability; ties go
// to the smaller label.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Predict")
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, nClasses := proba.Dims()
	out := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for k := 1; k < nClasses; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(rf.classes_[best]))
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return model.AccuracyScore("RandomForestClassifier.Score", pred, y)
}

// Classes returns the sorted class labels seen in Fit.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// FeatureImportances returns the mean of the trees' normalized importances.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), rf.featureImportances_...)
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return append([]*tree.DecisionTreeClassifier(nil), rf.estimators_...)
}

// GetParams returns the model hyperparameters
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"class_weight":      rf.classWeight,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams sets the model hyperparameters
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators":
			rf.nEstimators, ok = value.(int)
		case "criterion":
			rf.criterion, ok = value.(string)
		case "max_depth":
			rf.maxDepth, ok = value.(int)
		case "min_samples_split":
			rf.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			rf.minSamplesLeaf, ok = value.(int)
		case "max_features":
			rf.maxFeatures, ok = value.(string)
		case "bootstrap":
			rf.bootstrap, ok = value.(bool)
		case "class_weight":
			rf.classWeight, ok = value.(string)
		case "random_state":
			rf.randomState, ok = value.(int64)
		case "n_jobs":
			rf.nJobs, ok = value.(int)
		default:
			return errors.NewValidationError("param", "unknown parameter", key)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	rf.state.Reset()
	return nil
}
