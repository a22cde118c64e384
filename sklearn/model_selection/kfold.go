package model_selection

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/core/parallel"
	cmlErrors "github.com/ezoic/cardioml/pkg/errors"
)

// KFold partitions rows into NSplits consecutive folds. The first n % NSplits
// folds hold one extra row.
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    int64
}

// NewKFold creates a KFold splitter.
func NewKFold(nSplits int, shuffle bool, seed int64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// Split returns one Split per fold; each row is in exactly one test fold.
func (k *KFold) Split(n int) ([]Split, error) {
	if k.NSplits < 2 || k.NSplits > n {
		return nil, cmlErrors.NewValidationError("n_splits",
			fmt.Sprintf("must be within [2, %d]", n), k.NSplits)
	}

	idx := lo.Range(n)
	if k.Shuffle {
		rand.New(rand.NewSource(k.Seed)).Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}

	folds := make([]Split, 0, k.NSplits)
	start := 0
	for f := 0; f < k.NSplits; f++ {
		size := n / k.NSplits
		if f < n%k.NSplits {
			size++
		}
		end := start + size
		train := make([]int, 0, n-size)
		train = append(train, idx[:start]...)
		train = append(train, idx[end:]...)
		folds = append(folds, Split{Train: train, Test: append([]int(nil), idx[start:end]...)})
		start = end
	}
	return folds, nil
}

// CrossValScore fits a fresh classifier from factory on each fold's training
// rows and returns the accuracy on the held-out rows, in fold order. Folds run
// on up to workers goroutines. The first failing fold's error is returned.
func CrossValScore(ctx context.Context, factory model.ClassifierFactory, X mat.Matrix, y []int, folds []Split, workers int) ([]float64, error) {
	scores := make([]float64, len(folds))
	errs, err := parallel.ForEach(ctx, len(folds), workers, func(_ context.Context, f int) error {
		Xtr, Xte, ytr, yte := folds[f].Apply(X, y)
		clf := factory()
		if err := clf.Fit(Xtr, ytr); err != nil {
			return err
		}
		s, err := clf.Score(Xte, yte)
		if err != nil {
			return err
		}
		scores[f] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	for f, e := range errs {
		if e != nil {
			return nil, cmlErrors.Wrapf(e, "fold %d", f)
		}
	}
	return scores, nil
}
