package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/pkg/errors"
)

// LabelsFromMatrix converts an (n, 1) label matrix into integer class labels.
// Every entry must be a finite integer value.
func LabelsFromMatrix(op string, y mat.Matrix) ([]int, error) {
	r, c := y.Dims()
	if c != 1 {
		return nil, errors.NewDimensionError(op, 1, c, 1)
	}
	labels := make([]int, r)
	for i := 0; i < r; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, errors.NewValueError(op, fmt.Sprintf("label at row %d is not an integer class: %v", i, v))
		}
		labels[i] = int(v)
	}
	return labels, nil
}

// LabelsToMatrix packs labels into an (n, 1) matrix.
func LabelsToMatrix(labels []int) *mat.Dense {
	return mat.NewDense(len(labels), 1, lo.Map(labels, func(l int, _ int) float64 { return float64(l) }))
}

// UniqueLabels returns the sorted distinct labels.
func UniqueLabels(labels []int) []int {
	u := lo.Uniq(labels)
	sort.Ints(u)
	return u
}

// CheckXY validates that X and y are non-empty with matching row counts and
// returns y as labels.
func CheckXY(op string, X, y mat.Matrix) ([]int, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yr, _ := y.Dims()
	if yr != r {
		return nil, errors.NewDimensionError(op, r, yr, 0)
	}
	return LabelsFromMatrix(op, y)
}

// AccuracyScore returns the fraction of rows where pred equals y.
func AccuracyScore(op string, pred, y mat.Matrix) (float64, error) {
	pr, _ := pred.Dims()
	yr, _ := y.Dims()
	if pr != yr {
		return 0, errors.NewDimensionError(op, yr, pr, 0)
	}
	if pr == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	correct := 0
	for i := 0; i < pr; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(pr), nil
}
