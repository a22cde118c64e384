package plots

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func requireFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestHistogram(t *testing.T) {
	p, err := New(filepath.Join(t.TempDir(), "charts"))
	require.NoError(t, err)

	path, err := p.Histogram("age", []float64{29, 41, math.NaN(), 57, 57, 77})
	require.NoError(t, err)
	assert.Equal(t, "hist_age.png", filepath.Base(path))
	requireFile(t, path)

	path, err = p.Histogram("empty", []float64{math.NaN()})
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestLabelDistributionAndHeatmap(t *testing.T) {
	p, err := New(t.TempDir())
	require.NoError(t, err)

	path, err := p.LabelDistribution("heart", []int{0, 1}, []int{160, 137})
	require.NoError(t, err)
	requireFile(t, path)

	_, err = p.LabelDistribution("heart", []int{0, 1}, []int{1})
	assert.Error(t, err)

	corr := mat.NewSymDense(3, []float64{
		1, 0.5, math.NaN(),
		0.5, 1, math.NaN(),
		math.NaN(), math.NaN(), math.NaN(),
	})
	path, err = p.CorrelationHeatmap("heart", []string{"age", "chol", "const"}, corr)
	require.NoError(t, err)
	requireFile(t, path)

	_, err = p.CorrelationHeatmap("heart", []string{"age"}, corr)
	assert.Error(t, err)
}

func TestCurveAndLogXLines(t *testing.T) {
	p, err := New(t.TempDir())
	require.NoError(t, err)

	path, err := p.Curve("pca_cumulative", "PCA", "cumulative ratio", []float64{0.6, 0.9, 0.97, 1}, 0.95)
	require.NoError(t, err)
	requireFile(t, path)

	c := []float64{0.01, 1, 100}
	path, err = p.LogXLines("sweep", "SVM", "C", "accuracy", []Series{
		{Name: "linear", X: c, Y: []float64{0.5, 0.7, 0.6}},
		{Name: "rbf", X: c, Y: []float64{0.5, math.NaN(), 0.8}},
	})
	require.NoError(t, err)
	requireFile(t, path)

	_, err = p.LogXLines("none", "SVM", "C", "accuracy", []Series{{Name: "x", X: c, Y: []float64{math.NaN(), math.NaN(), math.NaN()}}})
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a_b_c.png", fileName("a b/c"))
}
