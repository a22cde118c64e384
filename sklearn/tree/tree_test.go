package tree

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/pkg/errors"
)

// stepData: class 0 left of x0=0.5, then x1 separates classes 1 and 2.
// Column 2 is constant.
func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 7,
		0, 1, 7,
		0.1, 0.1, 7,
		0.1, 0.9, 7,
		1, 0, 7,
		1, 1, 7,
		0.9, 0.1, 7,
		0.9, 0.9, 7,
	})
	y := model.LabelsToMatrix([]int{0, 0, 0, 0, 1, 2, 1, 2})
	return X, y
}

func TestDecisionTreeFitsSteps(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeClassifier(WithDTRandomState(0))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	acc, err := dt.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if acc != 1.0 {
		t.Errorf("expected training accuracy 1.0, got %v", acc)
	}
	if d := dt.GetDepth(); d != 2 {
		t.Errorf("expected depth 2, got %d", d)
	}
	if n := dt.GetNLeaves(); n != 3 {
		t.Errorf("expected 3 leaves, got %d", n)
	}

	imp := dt.FeatureImportances()
	if imp[2] != 0 {
		t.Errorf("constant feature must have zero importance, got %v", imp[2])
	}
	sum := imp[0] + imp[1] + imp[2]
	if sum < 1-1e-12 || sum > 1+1e-12 {
		t.Errorf("importances should sum to 1, got %v", sum)
	}
}

func TestDecisionTreeMaxDepth(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeClassifier(WithMaxDepth(1), WithDTRandomState(0))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if d := dt.GetDepth(); d > 1 {
		t.Errorf("depth %d exceeds max_depth 1", d)
	}
}

func TestDecisionTreeSampleWeights(t *testing.T) {
	// Two identical points with different labels; weight decides the leaf.
	X := mat.NewDense(2, 1, []float64{1, 1})
	y := model.LabelsToMatrix([]int{3, 4})

	dt := NewDecisionTreeClassifier()
	if err := dt.FitWithWeights(X, y, []float64{1, 5}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	pred, err := dt.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if pred.At(0, 0) != 4 {
		t.Errorf("expected heavier class 4, got %v", pred.At(0, 0))
	}

	proba, _ := dt.PredictProba(X)
	if got := proba.At(0, 1); got < 5.0/6-1e-12 || got > 5.0/6+1e-12 {
		t.Errorf("expected P(4)=5/6, got %v", got)
	}

	// zero-weight rows drop out but their class is still known
	if err := dt.FitWithWeights(X, y, []float64{0, 1}); err != nil {
		t.Fatal(err)
	}
	if got := dt.Classes(); len(got) != 2 {
		t.Errorf("expected both classes, got %v", got)
	}
}

func TestDecisionTreeBalancedClassWeight(t *testing.T) {
	// Majority label 0 dominates the shared point without weighting.
	X := mat.NewDense(5, 1, []float64{1, 1, 1, 1, 1})
	y := model.LabelsToMatrix([]int{0, 0, 0, 1, 1})

	plain := NewDecisionTreeClassifier()
	if err := plain.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	proba, _ := plain.PredictProba(X)
	if got := proba.At(0, 1); got < 0.4-1e-12 || got > 0.4+1e-12 {
		t.Errorf("unweighted P(1) = %v, want 0.4", got)
	}

	balanced := NewDecisionTreeClassifier(WithDTClassWeight("balanced"))
	if err := balanced.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	proba, _ = balanced.PredictProba(X)
	if got := proba.At(0, 1); got < 0.5-1e-12 || got > 0.5+1e-12 {
		t.Errorf("balanced P(1) = %v, want 0.5", got)
	}
}

func TestDecisionTreeSeededMaxFeatures(t *testing.T) {
	X := mat.NewDense(40, 9, nil)
	labels := make([]int, 40)
	for i := 0; i < 40; i++ {
		for j := 0; j < 9; j++ {
			X.Set(i, j, float64((i*(j+3))%17))
		}
		labels[i] = (i * 7 % 11) % 3
	}
	y := model.LabelsToMatrix(labels)

	a := NewDecisionTreeClassifier(WithMaxFeatures(MaxFeaturesSqrt), WithDTRandomState(42))
	b := NewDecisionTreeClassifier(WithMaxFeatures(MaxFeaturesSqrt), WithDTRandomState(42))
	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	pa, _ := a.Predict(X)
	pb, _ := b.Predict(X)
	if !mat.Equal(pa, pb) {
		t.Error("same seed should grow the same tree")
	}
	ia, ib := a.FeatureImportances(), b.FeatureImportances()
	for j := range ia {
		if ia[j] != ib[j] {
			t.Fatalf("importance %d differs: %v vs %v", j, ia[j], ib[j])
		}
	}
}

func TestDecisionTreeErrors(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	if _, err := dt.Predict(mat.NewDense(1, 1, nil)); !errors.Is(err, errors.ErrNotFitted) {
		t.Errorf("expected ErrNotFitted, got %v", err)
	}

	X, y := stepData()
	bad := NewDecisionTreeClassifier(WithMaxFeatures("many"))
	var ve *errors.ValidationError
	if err := bad.Fit(X, y); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}

	if err := dt.FitWithWeights(X, y, []float64{1}); !errors.Is(err, errors.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}

	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if _, err := dt.Predict(mat.NewDense(1, 2, nil)); !errors.Is(err, errors.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}

func TestDecisionTreeParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	if err := dt.SetParams(map[string]interface{}{"criterion": "entropy", "max_depth": 3}); err != nil {
		t.Fatal(err)
	}
	p := dt.GetParams()
	if p["criterion"] != "entropy" || p["max_depth"] != 3 {
		t.Errorf("unexpected params %v", p)
	}
	if err := dt.SetParams(map[string]interface{}{"bogus": 1}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
