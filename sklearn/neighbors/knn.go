// Package neighbors provides a brute-force k-nearest-neighbors classifier.
package neighbors

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/core/parallel"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
)

var globalProvider = log.DefaultProvider()

// KNeighborsClassifier votes among the k closest training rows under the
// Minkowski distance of order p. Equal vote counts go to the smallest label;
// equal distances keep training order.
type KNeighborsClassifier struct {
	state  *model.StateManager
	logger log.Logger

	nNeighbors int
	p          float64

	xTrain   *mat.Dense
	yTrain   []int
	classes_ []int
}

// KNeighborsOption is a functional option for KNeighborsClassifier
type KNeighborsOption func(*KNeighborsClassifier)

// NewKNeighborsClassifier creates a classifier with k=5 and Euclidean distance.
func NewKNeighborsClassifier(opts ...KNeighborsOption) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
		p:          2,
	}
	for _, opt := range opts {
		opt(knn)
	}

	knn.logger = globalProvider.GetLoggerWithName("KNeighborsClassifier")
	return knn
}

// WithNNeighbors sets k
func WithNNeighbors(k int) KNeighborsOption {
	return func(knn *KNeighborsClassifier) {
		knn.nNeighbors = k
	}
}

// WithMinkowskiP sets the distance order (1 = Manhattan, 2 = Euclidean)
func WithMinkowskiP(p float64) KNeighborsOption {
	return func(knn *KNeighborsClassifier) {
		knn.p = p
	}
}

// Fit memorizes the training data.
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "KNeighborsClassifier.Fit")
	labels, err := model.CheckXY("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if knn.nNeighbors <= 0 {
		return errors.NewValidationError("n_neighbors", "must be positive", knn.nNeighbors)
	}
	if knn.p < 1 {
		return errors.NewValidationError("p", "must be >= 1", knn.p)
	}
	nSamples, nFeatures := X.Dims()
	if knn.nNeighbors > nSamples {
		return errors.NewValueError("KNeighborsClassifier.Fit",
			fmt.Sprintf("n_neighbors=%d exceeds n_samples=%d", knn.nNeighbors, nSamples))
	}

	knn.xTrain = mat.DenseCopyOf(X)
	knn.yTrain = labels
	knn.classes_ = model.UniqueLabels(labels)
	knn.state.SetDimensions(nFeatures, nSamples)
	knn.state.SetFitted()
	return nil
}

// kneighbors returns the training indices of the k nearest rows to x.
func (knn *KNeighborsClassifier) kneighbors(x []float64) []int {
	n, _ := knn.xTrain.Dims()
	type neighbor struct {
		index    int
		distance float64
	}
	neighbors := make([]neighbor, n)
	for i := 0; i < n; i++ {
		neighbors[i] = neighbor{index: i, distance: floats.Distance(x, knn.xTrain.RawRowView(i), knn.p)}
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].distance < neighbors[j].distance
	})
	out := make([]int, knn.nNeighbors)
	for i := range out {
		out[i] = neighbors[i].index
	}
	return out
}

// votes counts neighbor labels per class, in Classes order.
func (knn *KNeighborsClassifier) votes(X mat.Matrix, op string) ([][]int, error) {
	if err := knn.state.RequireFitted("KNeighborsClassifier", op); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := knn.state.CheckFeatures("KNeighborsClassifier."+op, nFeatures); err != nil {
		return nil, err
	}

	index := make(map[int]int, len(knn.classes_))
	for k, c := range knn.classes_ {
		index[c] = k
	}
	out := make([][]int, nSamples)
	parallel.ParallelizeWithThreshold(nSamples, 64, func(start, end int) {
		row := make([]float64, nFeatures)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			counts := make([]int, len(knn.classes_))
			for _, j := range knn.kneighbors(row) {
				counts[index[knn.yTrain[j]]]++
			}
			out[i] = counts
		}
	})
	return out, nil
}

// Predict returns the majority label among the k nearest training rows.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "KNeighborsClassifier.Predict")
	votes, err := knn.votes(X, "Predict")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(votes), 1, nil)
	for i, counts := range votes {
		best := 0
		for k := 1; k < len(counts); k++ {
			if counts[k] > counts[best] {
				best = k
			}
		}
		out.Set(i, 0, float64(knn.classes_[best]))
	}
	knn.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredict,
		log.PredsKey, len(votes),
	)
	return out, nil
}

// PredictProba returns the neighbor vote fractions per class.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "KNeighborsClassifier.PredictProba")
	votes, err := knn.votes(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(votes), len(knn.classes_), nil)
	for i, counts := range votes {
		for k, c := range counts {
			out.Set(i, k, float64(c)/float64(knn.nNeighbors))
		}
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data
func (knn *KNeighborsClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := knn.Predict(X)
	if err != nil {
		return 0, err
	}
	return model.AccuracyScore("KNeighborsClassifier.Score", pred, y)
}

// Classes returns the sorted class labels seen in Fit.
func (knn *KNeighborsClassifier) Classes() []int {
	return append([]int(nil), knn.classes_...)
}

// GetParams returns the model hyperparameters
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.nNeighbors,
		"p":           knn.p,
		"metric":      "minkowski",
	}
}

// SetParams sets the model hyperparameters
func (knn *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_neighbors":
			knn.nNeighbors, ok = value.(int)
		case "p":
			knn.p, ok = value.(float64)
		default:
			return errors.NewValidationError("param", "unknown parameter", key)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	knn.state.Reset()
	return nil
}
