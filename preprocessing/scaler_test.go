package preprocessing_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/preprocessing"
)

const epsilon = 1e-10 // Tolerance for floating-point comparisons

// age, trestbps, chol for six patients
func vitals() *mat.Dense {
	return mat.NewDense(6, 3, []float64{
		63, 145, 233,
		67, 160, 286,
		37, 130, 250,
		41, 130, 204,
		56, 120, 236,
		62, 140, 268,
	})
}

func TestStandardScaler_TrainColumnsStandardized(t *testing.T) {
	X := vitals()
	scaler := preprocessing.NewStandardScalerDefault()

	Xs, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	r, c := Xs.Dims()
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, Xs)
		mean, std := stat.PopMeanStdDev(col, nil)
		if math.Abs(mean) > epsilon {
			t.Errorf("column %d mean: expected 0, got %g", j, mean)
		}
		if math.Abs(std-1) > 1e-9 {
			t.Errorf("column %d std: expected 1, got %g", j, std)
		}
	}
}

func TestStandardScaler_PopulationStd(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1.0, 4.0,
		2.0, 5.0,
		3.0, 6.0,
	})

	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	expectedMean := []float64{2.0, 5.0}
	expectedStd := []float64{0.816496580927726, 0.816496580927726}
	for i := range expectedMean {
		if math.Abs(scaler.Mean[i]-expectedMean[i]) > epsilon {
			t.Errorf("Mean[%d]: expected %f, got %f", i, expectedMean[i], scaler.Mean[i])
		}
		if math.Abs(scaler.Scale[i]-expectedStd[i]) > epsilon {
			t.Errorf("Scale[%d]: expected %f, got %f", i, expectedStd[i], scaler.Scale[i])
		}
	}
}

// Test rows must be transformed with the training parameters, never refitted.
func TestStandardScaler_TestUsesTrainParameters(t *testing.T) {
	train := mat.NewDense(4, 1, []float64{0, 2, 4, 6})
	test := mat.NewDense(2, 1, []float64{100, 200})

	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.Fit(train); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	mean, scale := scaler.Mean[0], scaler.Scale[0]

	out, err := scaler.Transform(test)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if scaler.Mean[0] != mean || scaler.Scale[0] != scale {
		t.Fatalf("Transform changed fitted parameters")
	}
	want := (100 - 3.0) / math.Sqrt(5)
	if math.Abs(out.At(0, 0)-want) > epsilon {
		t.Errorf("expected %f, got %f", want, out.At(0, 0))
	}
}

func TestStandardScaler_ConstantFeature(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1, 7,
		2, 7,
		3, 7,
	})
	scaler := preprocessing.NewStandardScalerDefault()
	Xs, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if scaler.Scale[1] != 1.0 {
		t.Errorf("constant column scale: expected 1, got %f", scaler.Scale[1])
	}
	for i := 0; i < 3; i++ {
		if Xs.At(i, 1) != 0 {
			t.Errorf("constant column row %d: expected 0, got %f", i, Xs.At(i, 1))
		}
	}
}

func TestStandardScaler_WithMeanFalse(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{2, 4})
	scaler := preprocessing.NewStandardScaler(false, true)
	Xs, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	// std = 1, mean kept
	if Xs.At(0, 0) != 2 || Xs.At(1, 0) != 4 {
		t.Errorf("expected [2 4], got [%f %f]", Xs.At(0, 0), Xs.At(1, 0))
	}
}

func TestStandardScaler_ErrorCases(t *testing.T) {
	scaler := preprocessing.NewStandardScalerDefault()

	if _, err := scaler.Transform(vitals()); !errors.Is(err, errors.ErrNotFitted) {
		t.Errorf("expected ErrNotFitted, got %v", err)
	}

	if err := scaler.Fit(vitals()); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := scaler.Transform(mat.NewDense(2, 2, nil)); !errors.Is(err, errors.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	withNaN := mat.NewDense(2, 1, []float64{1, math.NaN()})
	if err := preprocessing.NewStandardScalerDefault().Fit(withNaN); !errors.Is(err, errors.ErrMissingValues) {
		t.Errorf("expected ErrMissingValues, got %v", err)
	}
}

// emptyMatrix reports zero rows.
type emptyMatrix struct{}

func (emptyMatrix) Dims() (int, int)    { return 0, 3 }
func (emptyMatrix) At(i, j int) float64 { panic("empty") }
func (m emptyMatrix) T() mat.Matrix     { return mat.Transpose{Matrix: m} }

func TestStandardScaler_EmptyDataError(t *testing.T) {
	err := preprocessing.NewStandardScalerDefault().Fit(emptyMatrix{})
	if !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("expected ErrEmptyData, got %v", err)
	}
}

func TestStandardScaler_String(t *testing.T) {
	scaler := preprocessing.NewStandardScalerDefault()
	if got := scaler.String(); got != "StandardScaler(with_mean=true, with_std=true)" {
		t.Errorf("unexpected String(): %s", got)
	}
	_ = scaler.Fit(vitals())
	if got := scaler.String(); got != "StandardScaler(with_mean=true, with_std=true, n_features=3)" {
		t.Errorf("unexpected String(): %s", got)
	}
}

func TestMinMaxScaler_CustomRange(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 5, 10})
	scaler := preprocessing.NewMinMaxScaler([2]float64{-1, 1})

	Xs, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	for i, want := range []float64{-1, 0, 1} {
		if math.Abs(Xs.At(i, 0)-want) > epsilon {
			t.Errorf("row %d: expected %f, got %f", i, want, Xs.At(i, 0))
		}
	}
}

func TestMinMaxScaler_InvalidRange(t *testing.T) {
	scaler := preprocessing.NewMinMaxScaler([2]float64{1, 1})
	err := scaler.Fit(vitals())
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.ParamName != "feature_range" {
		t.Errorf("unexpected param %s", ve.ParamName)
	}
}
