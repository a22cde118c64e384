package decomposition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/cardioml/pkg/errors"
)

// lineData lies close to the line (t, 2t, 0) with a small third-axis wobble.
func lineData(n int) *mat.Dense {
	X := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		t := float64(i)
		wobble := 0.01
		if i%2 == 0 {
			wobble = -0.01
		}
		X.Set(i, 0, t)
		X.Set(i, 1, 2*t)
		X.Set(i, 2, 5+wobble)
	}
	return X
}

func TestPCAFitTransform(t *testing.T) {
	X := lineData(20)
	pca := NewPCA(2)
	out, err := pca.FitTransform(X)
	require.NoError(t, err)

	r, c := out.Dims()
	assert.Equal(t, 20, r)
	assert.Equal(t, 2, c)
	assert.InDeltaSlice(t, []float64{9.5, 19, 5}, pca.Mean, 1e-12)

	// directions are unit length and orthogonal
	v0 := mat.Col(nil, 0, pca.Components)
	v1 := mat.Col(nil, 1, pca.Components)
	assert.InDelta(t, 1, floats.Norm(v0, 2), 1e-9)
	assert.InDelta(t, 0, floats.Dot(v0, v1), 1e-9)
	// first direction is along (1, 2, 0)
	assert.InDelta(t, 2.0, v0[1]/v0[0], 1e-9)

	// projected scores are centered and carry the reported variance
	scores := mat.Col(nil, 0, out)
	mean, variance := stat.MeanVariance(scores, nil)
	assert.InDelta(t, 0, mean, 1e-9)
	assert.InDelta(t, pca.ExplainedVariance[0], variance, 1e-9)

	assert.Greater(t, pca.ExplainedVarianceRatio[0], 0.99)
	assert.LessOrEqual(t, floats.Sum(pca.ExplainedVarianceRatio), 1+1e-12)
}

func TestPCATransformUsesTrainMean(t *testing.T) {
	X := lineData(10)
	pca := NewPCA(1)
	require.NoError(t, pca.Fit(X))

	out, err := pca.Transform(mat.NewDense(1, 3, pca.Mean))
	require.NoError(t, err)
	assert.InDelta(t, 0, out.At(0, 0), 1e-12)
}

func TestPCAErrors(t *testing.T) {
	X := lineData(10)

	var ve *errors.ValidationError
	assert.True(t, errors.As(NewPCA(4).Fit(X), &ve))

	_, err := NewPCA(1).Transform(X)
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	withNaN := mat.DenseCopyOf(X)
	withNaN.Set(3, 1, math.NaN())
	assert.True(t, errors.Is(NewPCA(1).Fit(withNaN), errors.ErrMissingValues))

	pca := NewPCA(0)
	require.NoError(t, pca.Fit(X))
	assert.Len(t, pca.ExplainedVariance, 3)
	_, err = pca.Transform(mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestSelectComponents(t *testing.T) {
	sel, err := SelectComponents(lineData(20), 0.95)
	require.NoError(t, err)
	assert.Equal(t, 1, sel.Count)
	assert.Equal(t, 0, sel.LargestBelow)
	assert.Len(t, sel.Cumulative, 3)
	assert.InDelta(t, 1.0, sel.Cumulative[2], 1e-12)
	assert.True(t, isDescending(sel.Eigenvalues))
	assert.Equal(t, 1, sel.Kaiser)

	// independent columns with equal spread need every component
	X := mat.NewDense(4, 2, []float64{1, 1, 1, -1, -1, 1, -1, -1})
	sel, err = SelectComponents(X, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 2, sel.Count)
	assert.Equal(t, 1, sel.LargestBelow)
	assert.InDelta(t, 0.5, sel.Cumulative[0], 1e-12)

	_, err = SelectComponents(X, 0)
	assert.Error(t, err)
}

func isDescending(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] > v[i-1] {
			return false
		}
	}
	return true
}
