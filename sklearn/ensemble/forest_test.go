package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/pkg/errors"
)

// informative returns data whose label depends only on column 0; columns
// 1..3 are deterministic noise.
func informative(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 4, nil)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		x0 := float64(i%20) / 20.0
		X.Set(i, 0, x0)
		X.Set(i, 1, float64((i*7)%13))
		X.Set(i, 2, float64((i*11)%5))
		X.Set(i, 3, float64((i*3)%17))
		if x0 >= 0.5 {
			labels[i] = 1
		}
	}
	return X, model.LabelsToMatrix(labels)
}

func TestRandomForestFitPredict(t *testing.T) {
	X, y := informative(120)
	rf := NewRandomForestClassifier(WithNEstimators(20), WithRFRandomState(42))
	require.NoError(t, rf.Fit(X, y))

	acc, err := rf.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.95)
	assert.Len(t, rf.Estimators(), 20)
	assert.Equal(t, []int{0, 1}, rf.Classes())

	imp := rf.FeatureImportances()
	require.Len(t, imp, 4)
	assert.InDelta(t, 1.0, imp[0]+imp[1]+imp[2]+imp[3], 1e-9)
	for j := 1; j < 4; j++ {
		assert.Greater(t, imp[0], imp[j], "informative column ranks first")
	}

	proba, err := rf.PredictProba(X)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, proba.At(0, 0)+proba.At(0, 1), 1e-12)
}

func TestRandomForestSeedReproducibleAcrossWorkers(t *testing.T) {
	X, y := informative(80)

	serial := NewRandomForestClassifier(WithNEstimators(20), WithRFRandomState(42), WithNJobs(1))
	concurrent := NewRandomForestClassifier(WithNEstimators(20), WithRFRandomState(42), WithNJobs(4))
	require.NoError(t, serial.Fit(X, y))
	require.NoError(t, concurrent.Fit(X, y))

	ps, err := serial.PredictProba(X)
	require.NoError(t, err)
	pc, err := concurrent.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(ps, pc))
	assert.Equal(t, serial.FeatureImportances(), concurrent.FeatureImportances())
}

func TestRandomForestBalancedWithoutBootstrap(t *testing.T) {
	X, y := informative(40)
	rf := NewRandomForestClassifier(
		WithNEstimators(3),
		WithBootstrap(false),
		WithRFMaxFeatures(""),
		WithRFClassWeight("balanced"),
		WithRFRandomState(1),
	)
	require.NoError(t, rf.Fit(X, y))
	acc, err := rf.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
}

func TestRandomForestErrors(t *testing.T) {
	rf := NewRandomForestClassifier()
	_, err := rf.Predict(mat.NewDense(1, 4, nil))
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	X, y := informative(10)
	err = NewRandomForestClassifier(WithNEstimators(0)).Fit(X, y)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	err = NewRandomForestClassifier(WithRFMaxFeatures("lots"), WithNEstimators(2)).Fit(X, y)
	assert.Error(t, err)

	require.NoError(t, rf.SetParams(map[string]interface{}{"n_estimators": 5}))
	assert.Equal(t, 5, rf.GetParams()["n_estimators"])
}
