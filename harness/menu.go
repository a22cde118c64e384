package harness

import (
	"context"
	"math"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/metrics"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
	"github.com/ezoic/cardioml/sklearn/ensemble"
	"github.com/ezoic/cardioml/sklearn/linear_model"
	"github.com/ezoic/cardioml/sklearn/neighbors"
	"github.com/ezoic/cardioml/sklearn/svm"
	"github.com/ezoic/cardioml/sklearn/tree"
)

// Menu keys accepted in the configuration.
const (
	ModelLR  = "lr"
	ModelKNN = "knn"
	ModelSVC = "svc"
	ModelRF  = "rf"
	ModelDT  = "dt"
)

// ModelSpec names a classifier and builds fresh, unfitted instances of it.
type ModelSpec struct {
	Key  string
	Name string
	New  model.ClassifierFactory
}

// MenuOptions parameterizes the classifier menu.
type MenuOptions struct {
	Neighbors   int
	ForestTrees int
	Seed        int64
	// ClassWeight is "" or "balanced".
	ClassWeight string
	Workers     int
}

// Menu returns the classifier menu in display order: logistic regression,
// k-nearest neighbors, SVM, random forest and decision tree.
func Menu(opts MenuOptions) []ModelSpec {
	cw := opts.ClassWeight
	return []ModelSpec{
		{Key: ModelLR, Name: "Logistic Regression", New: func() model.Classifier {
			return linear_model.NewLogisticRegression(linear_model.WithLRClassWeight(cw))
		}},
		{Key: ModelKNN, Name: "K-Nearest Neighbors", New: func() model.Classifier {
			return neighbors.NewKNeighborsClassifier(
				neighbors.WithNNeighbors(opts.Neighbors),
				neighbors.WithMinkowskiP(2),
			)
		}},
		{Key: ModelSVC, Name: "Support Vector Machine", New: func() model.Classifier {
			return svm.NewSVC(svm.WithSVCClassWeight(cw))
		}},
		{Key: ModelRF, Name: "Random Forest", New: func() model.Classifier {
			return ensemble.NewRandomForestClassifier(
				ensemble.WithNEstimators(opts.ForestTrees),
				ensemble.WithRFRandomState(opts.Seed),
				ensemble.WithRFClassWeight(cw),
				ensemble.WithNJobs(opts.Workers),
			)
		}},
		{Key: ModelDT, Name: "Decision Tree", New: func() model.Classifier {
			return tree.NewDecisionTreeClassifier(
				tree.WithDTRandomState(opts.Seed),
				tree.WithDTClassWeight(cw),
			)
		}},
	}
}

// SelectModels keeps the menu entries named by keys, in key order.
func SelectModels(menu []ModelSpec, keys []string) ([]ModelSpec, error) {
	out := make([]ModelSpec, 0, len(keys))
	for _, k := range keys {
		spec, ok := lo.Find(menu, func(s ModelSpec) bool { return s.Key == k })
		if !ok {
			return nil, errors.NewValidationError("model", "unknown classifier", k)
		}
		out = append(out, spec)
	}
	return out, nil
}

// ModelResult is the evaluation of one fitted classifier on the test rows.
type ModelResult struct {
	Key       string
	Name      string
	Accuracy  float64
	Report    *metrics.Report
	Confusion *mat.Dense
	Labels    []int
	// ROCAUC is the test-set ROC AUC of class 1 for binary 0/1 problems
	// scored by a probabilistic classifier, NaN otherwise.
	ROCAUC float64
	// CVScores holds per-fold accuracies when cross-validation ran.
	CVScores []float64
	Duration time.Duration
}

// Evaluate fits a fresh classifier from spec on the training rows and scores
// its predictions on the test rows.
func Evaluate(ctx context.Context, spec ModelSpec, data *Prepared) (*ModelResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := log.GetLoggerWithName("harness")
	start := time.Now()

	clf := spec.New()
	if err := clf.Fit(data.XTrain, data.YTrainMatrix()); err != nil {
		return nil, errors.Wrapf(err, "%s: fit", spec.Name)
	}
	predM, err := clf.Predict(data.XTest)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: predict", spec.Name)
	}
	pred, err := model.LabelsFromMatrix(spec.Name, predM)
	if err != nil {
		return nil, err
	}

	res := &ModelResult{Key: spec.Key, Name: spec.Name, ROCAUC: math.NaN()}
	if res.Accuracy, err = metrics.Accuracy(data.YTest, pred); err != nil {
		return nil, err
	}
	if res.Confusion, res.Labels, err = metrics.ConfusionMatrix(data.YTest, pred, nil); err != nil {
		return nil, err
	}
	if res.Report, err = metrics.ClassificationReport(data.YTest, pred, res.Labels); err != nil {
		return nil, err
	}
	if res.ROCAUC, err = rocAUC(clf, data); err != nil {
		return nil, errors.Wrapf(err, "%s: roc auc", spec.Name)
	}
	res.Duration = time.Since(start)

	logger.Info("Model evaluated",
		log.ModelNameKey, spec.Name,
		log.PhaseKey, log.PhaseEvaluation,
		log.AccuracyKey, res.Accuracy,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res, nil
}

// rocAUC scores the class-1 probability when the classifier was fitted on
// exactly the labels 0 and 1 and the test labels stay within them.
func rocAUC(clf model.Classifier, data *Prepared) (float64, error) {
	prob, ok := clf.(model.ProbabilisticClassifier)
	if !ok || !lo.ElementsMatch(clf.Classes(), []int{0, 1}) {
		return math.NaN(), nil
	}
	if !lo.EveryBy(data.YTest, func(l int) bool { return l == 0 || l == 1 }) {
		return math.NaN(), nil
	}
	proba, err := prob.PredictProba(data.XTest)
	if err != nil {
		return 0, err
	}
	pos := lo.IndexOf(clf.Classes(), 1)
	return metrics.AUC(data.YTest, mat.Col(nil, pos, proba))
}

// EvaluateAll evaluates every spec in order and stops at the first failure.
func EvaluateAll(ctx context.Context, specs []ModelSpec, data *Prepared) ([]*ModelResult, error) {
	results := make([]*ModelResult, 0, len(specs))
	for _, spec := range specs {
		res, err := Evaluate(ctx, spec, data)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
