// Package metrics scores classifier predictions: accuracy, confusion matrix,
// per-class precision/recall/F1 and binary ROC AUC.
//
// Labels are plain ints. Undefined ratios (a class never predicted, or never
// present) are reported as 0.
package metrics

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	cmlErrors "github.com/ezoic/cardioml/pkg/errors"
)

func checkPair(op string, yTrue, yPred []int) error {
	if len(yTrue) == 0 {
		return cmlErrors.NewModelError(op, "empty labels", cmlErrors.ErrEmptyData)
	}
	if len(yTrue) != len(yPred) {
		return cmlErrors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// Accuracy is the fraction of positions where yPred equals yTrue.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if err := checkPair("Accuracy", yTrue, yPred); err != nil {
		return 0, err
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// Labels returns the sorted union of labels appearing in yTrue or yPred.
func Labels(yTrue, yPred []int) []int {
	labels := lo.Union(yTrue, yPred)
	sort.Ints(labels)
	return labels
}

// ConfusionMatrix counts pairs: entry (i, j) is the number of rows whose true
// label is labels[i] and predicted label is labels[j]. When labels is nil it
// defaults to Labels(yTrue, yPred). Pairs with a label outside labels are
// ignored.
func ConfusionMatrix(yTrue, yPred []int, labels []int) (*mat.Dense, []int, error) {
	if err := checkPair("ConfusionMatrix", yTrue, yPred); err != nil {
		return nil, nil, err
	}
	if labels == nil {
		labels = Labels(yTrue, yPred)
	}
	index := make(map[int]int, len(labels))
	for i, l := range labels {
		if _, dup := index[l]; dup {
			return nil, nil, cmlErrors.NewValueError("ConfusionMatrix", fmt.Sprintf("duplicate label %d", l))
		}
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for k := range yTrue {
		i, okT := index[yTrue[k]]
		j, okP := index[yPred[k]]
		if okT && okP {
			cm.Set(i, j, cm.At(i, j)+1)
		}
	}
	return cm, labels, nil
}

// AUC calculates the Area Under the ROC Curve for binary classification.
//
// yTrue holds 0/1 labels and score holds the predicted probability (or any
// monotone score) of class 1. Tied scores form a single ROC point. When only
// one class is present AUC is undefined and 0.5 is returned.
//
// Example:
//
//	auc, err := metrics.AUC([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
//	// auc == 0.75
func AUC(yTrue []int, score []float64) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, cmlErrors.NewValueError("AUC", "input vectors cannot be empty")
	}
	if n != len(score) {
		return 0, cmlErrors.NewDimensionError("AUC", n, len(score), 0)
	}

	type pair struct {
		score float64
		label int
	}
	pairs := make([]pair, n)
	totalPos, totalNeg := 0.0, 0.0
	for i := 0; i < n; i++ {
		if yTrue[i] != 0 && yTrue[i] != 1 {
			return 0, cmlErrors.NewValidationError(
				"yTrue",
				fmt.Sprintf("must contain only binary values (0 or 1), found %d at index %d", yTrue[i], i),
				yTrue[i],
			)
		}
		pairs[i] = pair{score: score[i], label: yTrue[i]}
		if yTrue[i] == 1 {
			totalPos++
		} else {
			totalNeg++
		}
	}
	if totalPos == 0 || totalNeg == 0 {
		return 0.5, nil
	}

	// スコア降順
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	tprs := []float64{0}
	fprs := []float64{0}
	tp, fp := 0.0, 0.0
	for i, p := range pairs {
		if p.label == 1 {
			tp++
		} else {
			fp++
		}
		// 同じスコアが続く間は点を打たない
		if i == n-1 || pairs[i+1].score != p.score {
			tprs = append(tprs, tp/totalPos)
			fprs = append(fprs, fp/totalNeg)
		}
	}

	// 台形則
	auc := 0.0
	for i := 1; i < len(fprs); i++ {
		auc += (fprs[i] - fprs[i-1]) * (tprs[i] + tprs[i-1]) / 2
	}
	return auc, nil
}
