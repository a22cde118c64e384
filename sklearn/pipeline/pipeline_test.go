package pipeline_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/preprocessing"
	"github.com/ezoic/cardioml/sklearn/ensemble"
	"github.com/ezoic/cardioml/sklearn/feature_selection"
	"github.com/ezoic/cardioml/sklearn/linear_model"
	"github.com/ezoic/cardioml/sklearn/pipeline"
)

// two well separated groups on a large-scale first column
func groups() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		100, 1, 110, 2, 105, 1, 95, 3,
		300, 2, 310, 1, 290, 3, 305, 2,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestPipeline_ScaleThenClassify(t *testing.T) {
	X, y := groups()
	p := pipeline.New(
		pipeline.Step{Name: "scale", Estimator: preprocessing.NewStandardScalerDefault()},
		pipeline.Step{Name: "clf", Estimator: linear_model.NewLogisticRegression()},
	)
	if err := p.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	score, err := p.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 1 {
		t.Errorf("expected training accuracy 1, got %v", score)
	}
	if got := p.Classes(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("unexpected classes %v", got)
	}

	proba, err := p.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	for i := 0; i < 8; i++ {
		if s := proba.At(i, 0) + proba.At(i, 1); math.Abs(s-1) > 1e-12 {
			t.Errorf("row %d probabilities sum to %v", i, s)
		}
	}

	params := p.GetParams()
	if params["clf__C"] != 1.0 {
		t.Errorf("expected clf__C=1, got %v", params["clf__C"])
	}
	if params["scale__with_mean"] != true {
		t.Errorf("expected scale__with_mean=true, got %v", params["scale__with_mean"])
	}
}

func TestPipeline_TransformReusesTrainStatistics(t *testing.T) {
	train := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	test := mat.NewDense(2, 1, []float64{2.5, math.NaN()})

	p := pipeline.Make(
		preprocessing.NewSimpleImputer(preprocessing.StrategyMedian),
		preprocessing.NewStandardScalerDefault(),
	)
	if _, err := p.FitTransform(train, nil); err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	out, err := p.Transform(test)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	// the train mean and median are both 2.5
	for i := 0; i < 2; i++ {
		if v := out.At(i, 0); math.Abs(v) > 1e-12 {
			t.Errorf("row %d: expected 0, got %v", i, v)
		}
	}
	if len(p.Steps()) != 2 || p.Steps()[0].Name != "step1" {
		t.Errorf("unexpected steps %+v", p.Steps())
	}
}

func TestPipeline_SupervisedStep(t *testing.T) {
	X, y := groups()
	selector := feature_selection.NewSelectFromModel(
		ensemble.NewRandomForestClassifier(ensemble.WithNEstimators(5), ensemble.WithRFRandomState(0)),
	)
	p := pipeline.New(pipeline.Step{Name: "select", Estimator: selector})

	if _, err := p.FitTransform(X, nil); err == nil {
		t.Error("expected an error when a supervised step gets no labels")
	}
	out, err := p.FitTransform(X, y)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if _, c := out.Dims(); c != selector.NSelected() {
		t.Errorf("expected %d columns, got %d", selector.NSelected(), c)
	}
}

func TestPipeline_Errors(t *testing.T) {
	X, y := groups()

	if err := pipeline.New().Fit(X, y); err == nil {
		t.Error("expected an error for an empty pipeline")
	}

	p := pipeline.Make(preprocessing.NewStandardScalerDefault(), linear_model.NewLogisticRegression())
	if _, err := p.Predict(X); !errors.Is(err, errors.ErrNotFitted) {
		t.Errorf("expected ErrNotFitted, got %v", err)
	}

	bad := pipeline.Make("not a transformer", linear_model.NewLogisticRegression())
	err := bad.Fit(X, y)
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
