// Package model_selection splits row indices into train/test partitions and
// scores classifiers with k-fold cross-validation.
package model_selection

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	cmlErrors "github.com/ezoic/cardioml/pkg/errors"
)

// Split holds disjoint train and test row indices.
type Split struct {
	Train []int
	Test  []int
}

// testCount returns ceil(testSize*n) and validates that both sides are non-empty.
func testCount(op string, n int, testSize float64) (int, error) {
	if n == 0 {
		return 0, cmlErrors.NewModelError(op, "empty data", cmlErrors.ErrEmptyData)
	}
	if testSize <= 0 || testSize >= 1 {
		return 0, cmlErrors.NewValidationError("test_size", "must be within (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		return 0, cmlErrors.NewValueError(op,
			fmt.Sprintf("test_size=%v leaves no training rows out of %d", testSize, n))
	}
	return nTest, nil
}

// TrainTestSplit shuffles [0, n) with seed and takes the first
// ceil(testSize*n) indices as the test set.
func TrainTestSplit(n int, testSize float64, seed int64) (Split, error) {
	nTest, err := testCount("TrainTestSplit", n, testSize)
	if err != nil {
		return Split{}, err
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return Split{Train: perm[nTest:], Test: perm[:nTest]}, nil
}

// StratifiedTrainTestSplit splits so that every class keeps its share of rows
// on both sides. The per-class test allocation floors each class's
// proportional share of ceil(testSize*n) and gives the remainder to the
// classes with the largest fractional parts (ties to the smaller label). Every
// class needs at least two members.
func StratifiedTrainTestSplit(y []int, testSize float64, seed int64) (Split, error) {
	const op = "StratifiedTrainTestSplit"
	n := len(y)
	nTest, err := testCount(op, n, testSize)
	if err != nil {
		return Split{}, err
	}

	byClass := lo.GroupBy(lo.Range(n), func(i int) int { return y[i] })
	classes := lo.Keys(byClass)
	sort.Ints(classes)

	for _, c := range classes {
		if len(byClass[c]) < 2 {
			return Split{}, cmlErrors.NewModelError(op,
				fmt.Sprintf("class %d has %d member(s), at least 2 are required", c, len(byClass[c])),
				cmlErrors.ErrInsufficientClassMembers)
		}
	}
	if nTest < len(classes) || n-nTest < len(classes) {
		return Split{}, cmlErrors.NewValueError(op,
			fmt.Sprintf("test size %d and train size %d must each be at least the number of classes %d",
				nTest, n-nTest, len(classes)))
	}

	alloc := allocate(classes, byClass, n, nTest)

	rng := rand.New(rand.NewSource(seed))
	var split Split
	for _, c := range classes {
		idx := append([]int(nil), byClass[c]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		split.Test = append(split.Test, idx[:alloc[c]]...)
		split.Train = append(split.Train, idx[alloc[c]:]...)
	}
	rng.Shuffle(len(split.Test), func(i, j int) { split.Test[i], split.Test[j] = split.Test[j], split.Test[i] })
	rng.Shuffle(len(split.Train), func(i, j int) { split.Train[i], split.Train[j] = split.Train[j], split.Train[i] })

	return split, nil
}

// allocate distributes nTest rows over classes by largest remainder, keeping
// at least one training row per class.
func allocate(classes []int, byClass map[int][]int, n, nTest int) map[int]int {
	type share struct {
		class int
		frac  float64
	}
	alloc := make(map[int]int, len(classes))
	shares := make([]share, 0, len(classes))
	given := 0
	for _, c := range classes {
		exact := float64(len(byClass[c])) * float64(nTest) / float64(n)
		alloc[c] = int(math.Floor(exact))
		given += alloc[c]
		shares = append(shares, share{class: c, frac: exact - math.Floor(exact)})
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].frac > shares[j].frac })
	for i := 0; given < nTest; i = (i + 1) % len(shares) {
		c := shares[i].class
		if alloc[c] < len(byClass[c])-1 {
			alloc[c]++
			given++
		}
	}
	return alloc
}

// TakeRows copies rows idx of X into a new matrix.
func TakeRows(X mat.Matrix, idx []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		for j := 0; j < c; j++ {
			out.Set(k, j, X.At(i, j))
		}
	}
	return out
}

// TakeLabels returns y[idx] as an (len(idx), 1) matrix.
func TakeLabels(y []int, idx []int) *mat.Dense {
	return mat.NewDense(len(idx), 1, lo.Map(idx, func(i int, _ int) float64 { return float64(y[i]) }))
}

// Apply materializes the split over X and y.
func (s Split) Apply(X mat.Matrix, y []int) (Xtrain, Xtest, ytrain, ytest *mat.Dense) {
	return TakeRows(X, s.Train), TakeRows(X, s.Test), TakeLabels(y, s.Train), TakeLabels(y, s.Test)
}
