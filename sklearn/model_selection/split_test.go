package model_selection

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/pkg/errors"
)

func assertPartition(t *testing.T, s Split, n int) {
	t.Helper()
	all := append(append([]int(nil), s.Train...), s.Test...)
	require.Len(t, all, n)
	sort.Ints(all)
	assert.Equal(t, lo.Range(n), all, "every row exactly once")
}

func TestTrainTestSplit(t *testing.T) {
	s, err := TrainTestSplit(297, 0.25, 42)
	require.NoError(t, err)
	assert.Len(t, s.Test, 75) // ceil(74.25)
	assert.Len(t, s.Train, 222)
	assertPartition(t, s, 297)

	again, err := TrainTestSplit(297, 0.25, 42)
	require.NoError(t, err)
	assert.Equal(t, s, again, "same seed, same split")

	other, err := TrainTestSplit(297, 0.25, 7)
	require.NoError(t, err)
	assert.NotEqual(t, s.Test, other.Test)
}

func TestTrainTestSplitInvalid(t *testing.T) {
	_, err := TrainTestSplit(0, 0.25, 1)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = TrainTestSplit(10, 1.0, 1)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = TrainTestSplit(1, 0.5, 1)
	assert.Error(t, err)
}

func imbalancedLabels() []int {
	var y []int
	for c, cnt := range map[int]int{1: 245, 2: 44, 3: 15, 4: 15, 5: 13, 6: 25, 7: 3, 8: 2, 9: 9, 10: 50, 14: 4, 15: 5, 16: 22} {
		for i := 0; i < cnt; i++ {
			y = append(y, c)
		}
	}
	sort.Ints(y)
	return y
}

func TestStratifiedTrainTestSplitPreservesProportions(t *testing.T) {
	y := imbalancedLabels()
	n := len(y)
	require.Equal(t, 452, n)

	s, err := StratifiedTrainTestSplit(y, 0.3, 43)
	require.NoError(t, err)
	assertPartition(t, s, n)
	assert.Len(t, s.Test, 136)

	total := lo.CountValues(y)
	inTest := lo.CountValues(lo.Map(s.Test, func(i int, _ int) int { return y[i] }))
	inTrain := lo.CountValues(lo.Map(s.Train, func(i int, _ int) int { return y[i] }))
	for c, cnt := range total {
		expected := float64(cnt) * float64(len(s.Test)) / float64(n)
		assert.LessOrEqual(t, math.Abs(float64(inTest[c])-expected), 1.0, "class %d", c)
		assert.GreaterOrEqual(t, inTrain[c], 1, "class %d keeps a training row", c)
	}
}

func TestStratifiedTrainTestSplitRejectsSingletons(t *testing.T) {
	y := []int{0, 0, 0, 0, 1, 1, 1, 1, 2}
	_, err := StratifiedTrainTestSplit(y, 0.3, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientClassMembers))
}

func TestSplitApply(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 1, 10, 2, 20, 3, 30})
	y := []int{5, 6, 7, 8}
	s := Split{Train: []int{3, 1}, Test: []int{0, 2}}

	Xtr, Xte, ytr, yte := s.Apply(X, y)
	assert.Equal(t, []float64{3, 30}, mat.Row(nil, 0, Xtr))
	assert.Equal(t, []float64{2, 20}, mat.Row(nil, 1, Xte))
	assert.Equal(t, []float64{8, 6}, mat.Col(nil, 0, ytr))
	assert.Equal(t, []float64{5, 7}, mat.Col(nil, 0, yte))
}

func TestKFold(t *testing.T) {
	folds, err := NewKFold(3, true, 0).Split(10)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Len(t, folds[0].Test, 4)
	assert.Len(t, folds[1].Test, 3)
	assert.Len(t, folds[2].Test, 3)

	var tested []int
	for _, f := range folds {
		assertPartition(t, f, 10)
		tested = append(tested, f.Test...)
	}
	sort.Ints(tested)
	assert.Equal(t, lo.Range(10), tested)

	_, err = NewKFold(1, false, 0).Split(10)
	assert.Error(t, err)
}

// majority always predicts the most frequent training label.
type majority struct{ label int }

func (m *majority) Fit(_, y mat.Matrix) error {
	labels, err := model.LabelsFromMatrix("majority", y)
	if err != nil {
		return err
	}
	counts := lo.CountValues(labels)
	bestCount := -1
	for _, c := range model.UniqueLabels(labels) {
		if counts[c] > bestCount {
			m.label, bestCount = c, counts[c]
		}
	}
	return nil
}

func (m *majority) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(m.label))
	}
	return out, nil
}

func (m *majority) Score(X, y mat.Matrix) (float64, error) {
	p, _ := m.Predict(X)
	return model.AccuracyScore("majority", p, y)
}

func (m *majority) Classes() []int { return []int{m.label} }

func TestCrossValScore(t *testing.T) {
	X := mat.NewDense(8, 1, nil)
	y := []int{1, 1, 1, 1, 1, 1, 0, 0}
	folds, err := NewKFold(4, false, 0).Split(8)
	require.NoError(t, err)

	scores, err := CrossValScore(context.Background(), func() model.Classifier { return &majority{} }, X, y, folds, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 0}, scores)
}
