// Package decomposition provides principal component analysis.
package decomposition

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
)

var globalProvider = log.DefaultProvider()

// PCA projects centered data onto its leading principal directions.
type PCA struct {
	state  *model.StateManager
	logger log.Logger

	// NComponents is the number of components kept; 0 keeps min(n, p).
	NComponents int

	// Fitted attributes
	Mean                   []float64
	Components             *mat.Dense // p x k, one direction per column
	ExplainedVariance      []float64  // eigenvalues of the kept components
	ExplainedVarianceRatio []float64
	NFeatures              int
}

// NewPCA creates a PCA keeping nComponents components.
func NewPCA(nComponents int) *PCA {
	return &PCA{
		state:       model.NewStateManager(),
		logger:      globalProvider.GetLoggerWithName("PCA"),
		NComponents: nComponents,
	}
}

// decompose runs the SVD-based analysis and returns the full set of
// directions and variances, largest first.
func decompose(op string, X mat.Matrix) (mean []float64, vecs *mat.Dense, vars []float64, err error) {
	n, p := X.Dims()
	if n < 2 || p == 0 {
		return nil, nil, nil, errors.NewModelError(op, "need at least 2 samples", errors.ErrEmptyData)
	}
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			if v := X.At(i, j); v != v {
				return nil, nil, nil, errors.NewModelError(op, fmt.Sprintf("NaN in column %d", j), errors.ErrMissingValues)
			}
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return nil, nil, nil, errors.NewModelError(op, "SVD factorization failed", errors.ErrSingularMatrix)
	}
	vecs = &mat.Dense{}
	pc.VectorsTo(vecs)
	vars = pc.VarsTo(nil)

	mean = make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		mean[j] = stat.Mean(col, nil)
	}
	return mean, vecs, vars, nil
}

// Fit learns the mean and principal directions of X.
func (pca *PCA) Fit(X mat.Matrix) (err error) {
	defer errors.Recover(&err, "PCA.Fit")
	mean, vecs, vars, err := decompose("PCA.Fit", X)
	if err != nil {
		return err
	}
	n, p := X.Dims()
	available := len(vars)
	k := pca.NComponents
	if k == 0 {
		k = available
	}
	if k < 0 || k > available {
		return errors.NewValidationError("n_components", fmt.Sprintf("must be in [1, %d]", available), pca.NComponents)
	}

	total := floats.Sum(vars)
	pca.Mean = mean
	pca.Components = mat.DenseCopyOf(vecs.Slice(0, p, 0, k))
	pca.ExplainedVariance = append([]float64(nil), vars[:k]...)
	pca.ExplainedVarianceRatio = make([]float64, k)
	if total > 0 {
		for i := range pca.ExplainedVarianceRatio {
			pca.ExplainedVarianceRatio[i] = vars[i] / total
		}
	}
	pca.NFeatures = p

	pca.state.SetDimensions(p, n)
	pca.state.SetFitted()
	pca.logger.Debug("PCA fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		"components", k,
		"explained", floats.Sum(pca.ExplainedVarianceRatio),
	)
	return nil
}

// Transform centers X with the fitted mean and projects it onto the kept
// components.
func (pca *PCA) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "PCA.Transform")
	if err := pca.state.RequireFitted("PCA", "Transform"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := pca.state.CheckFeatures("PCA.Transform", p); err != nil {
		return nil, err
	}
	centered := mat.DenseCopyOf(X)
	for i := 0; i < n; i++ {
		floats.Sub(centered.RawRowView(i), pca.Mean)
	}
	var out mat.Dense
	out.Mul(centered, pca.Components)
	return &out, nil
}

// FitTransform fits and projects X.
func (pca *PCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := pca.Fit(X); err != nil {
		return nil, err
	}
	return pca.Transform(X)
}

// GetParams returns the model hyperparameters
func (pca *PCA) GetParams() map[string]interface{} {
	return map[string]interface{}{"n_components": pca.NComponents}
}

// ComponentSelection is the outcome of scanning candidate component counts.
type ComponentSelection struct {
	Threshold float64
	// Cumulative[k-1] is the cumulative explained variance ratio of the first k components.
	Cumulative []float64
	// Eigenvalues[k-1] is the variance explained by component k.
	Eigenvalues []float64
	// Count is the smallest k with Cumulative[k-1] >= Threshold.
	Count int
	// LargestBelow is the largest k with Cumulative[k-1] < Threshold (0 if none).
	LargestBelow int
	// Kaiser is the number of components with eigenvalue >= 1.
	Kaiser int
}

// SelectComponents fits a full PCA on X and chooses the component count
// reaching threshold cumulative explained variance ratio.
func SelectComponents(X mat.Matrix, threshold float64) (_ *ComponentSelection, err error) {
	defer errors.Recover(&err, "SelectComponents")
	if threshold <= 0 || threshold > 1 {
		return nil, errors.NewValidationError("threshold", "must be in (0, 1]", threshold)
	}
	_, _, vars, err := decompose("SelectComponents", X)
	if err != nil {
		return nil, err
	}
	total := floats.Sum(vars)
	if total <= 0 {
		return nil, errors.NewValueError("SelectComponents", "data has zero variance")
	}

	sel := &ComponentSelection{
		Threshold:   threshold,
		Cumulative:  make([]float64, len(vars)),
		Eigenvalues: append([]float64(nil), vars...),
	}
	floats.CumSum(sel.Cumulative, vars)
	floats.Scale(1/total, sel.Cumulative)

	// rounding can leave the last entry a hair under 1
	const slack = 1e-12
	sel.Count = len(vars)
	for k, c := range sel.Cumulative {
		if c+slack >= threshold {
			sel.Count = k + 1
			break
		}
	}
	sel.LargestBelow = sel.Count - 1
	for _, v := range vars {
		if v >= 1 {
			sel.Kaiser++
		}
	}
	return sel, nil
}
