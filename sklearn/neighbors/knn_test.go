package neighbors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/pkg/errors"
)

func TestKNeighborsMajorityVote(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	y := model.LabelsToMatrix([]int{0, 0, 0, 1, 1, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	require.NoError(t, knn.Fit(X, y))

	pred, err := knn.Predict(mat.NewDense(3, 1, []float64{0.5, 11.5, 5.9}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, mat.Col(nil, 0, pred))

	proba, err := knn.PredictProba(mat.NewDense(1, 1, []float64{8}))
	require.NoError(t, err)
	// nearest to 8 are 10, 11, 12
	assert.Equal(t, []float64{0, 1}, mat.Row(nil, 0, proba))
}

func TestKNeighborsTieGoesToSmallestLabel(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{-1, 1, -2, 2})
	y := model.LabelsToMatrix([]int{7, 3, 7, 3})

	knn := NewKNeighborsClassifier(WithNNeighbors(4))
	require.NoError(t, knn.Fit(X, y))
	pred, err := knn.Predict(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.Equal(t, 3.0, pred.At(0, 0))
}

func TestKNeighborsManhattan(t *testing.T) {
	// From (1,1): origin is 1.41 (L2) / 2 (L1) away, (2.5,1) is 1.5 under both.
	X := mat.NewDense(2, 2, []float64{0, 0, 2.5, 1})
	y := model.LabelsToMatrix([]int{0, 1})
	q := mat.NewDense(1, 2, []float64{1, 1})

	l2 := NewKNeighborsClassifier(WithNNeighbors(1))
	require.NoError(t, l2.Fit(X, y))
	p, err := l2.Predict(q)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.At(0, 0))

	l1 := NewKNeighborsClassifier(WithNNeighbors(1), WithMinkowskiP(1))
	require.NoError(t, l1.Fit(X, y))
	p, err = l1.Predict(q)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.At(0, 0))
}

func TestKNeighborsErrors(t *testing.T) {
	knn := NewKNeighborsClassifier()
	_, err := knn.Predict(mat.NewDense(1, 1, nil))
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := model.LabelsToMatrix([]int{0, 1, 0})
	var ve *errors.ValueError
	assert.True(t, errors.As(knn.Fit(X, y), &ve), "k=5 exceeds 3 samples")

	knn = NewKNeighborsClassifier(WithNNeighbors(1))
	require.NoError(t, knn.Fit(X, y))
	_, err = knn.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}
