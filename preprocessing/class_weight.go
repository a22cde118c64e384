package preprocessing

import (
	"fmt"

	"github.com/samber/lo"

	cmlErrors "github.com/ezoic/cardioml/pkg/errors"
)

// ClassWeightBalanced weights each class inversely to its frequency.
const ClassWeightBalanced = "balanced"

// ComputeClassWeight returns a weight per entry of classes.
//
// With mode "balanced" a class present in y gets n / (k * count) where k is the
// number of distinct classes present in y, so the weighted counts of present
// classes sum to n. A requested class absent from y gets 0. An empty mode
// returns weight 1 for every class.
func ComputeClassWeight(mode string, classes []int, y []int) (map[int]float64, error) {
	weights := make(map[int]float64, len(classes))
	switch mode {
	case "":
		for _, c := range classes {
			weights[c] = 1.0
		}
		return weights, nil
	case ClassWeightBalanced:
	default:
		return nil, cmlErrors.NewValueError("ComputeClassWeight",
			fmt.Sprintf("unknown class_weight %q (want %q)", mode, ClassWeightBalanced))
	}
	if len(y) == 0 {
		return nil, cmlErrors.NewModelError("ComputeClassWeight", "empty labels", cmlErrors.ErrEmptyData)
	}

	counts := lo.CountValues(y)
	k := float64(len(counts))
	n := float64(len(y))
	for _, c := range classes {
		if cnt, ok := counts[c]; ok {
			weights[c] = n / (k * float64(cnt))
		} else {
			weights[c] = 0
		}
	}
	return weights, nil
}

// SampleWeights expands a class-weight map into one weight per label in y.
// Labels missing from weights get 1. A nil map yields nil.
func SampleWeights(weights map[int]float64, y []int) []float64 {
	if weights == nil {
		return nil
	}
	return lo.Map(y, func(label int, _ int) float64 {
		if w, ok := weights[label]; ok {
			return w
		}
		return 1.0
	})
}
