package svm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/cardioml/core/parallel"
	"github.com/ezoic/cardioml/pkg/errors"
)

// Kernel names accepted by WithKernel.
const (
	KernelLinear  = "linear"
	KernelRBF     = "rbf"
	KernelPoly    = "poly"
	KernelSigmoid = "sigmoid"
)

// Kernels lists the supported kernels in sweep order.
var Kernels = []string{KernelLinear, KernelRBF, KernelPoly, KernelSigmoid}

// Gamma modes accepted by WithGammaMode.
const (
	GammaScale = "scale" // 1 / (n_features * X.var())
	GammaAuto  = "auto"  // 1 / n_features
)

type kernelFunc func(a, b []float64) float64

func newKernel(name string, gamma, coef0 float64, degree int) (kernelFunc, error) {
	switch name {
	case KernelLinear:
		return floats.Dot, nil
	case KernelRBF:
		return func(a, b []float64) float64 {
			d := 0.0
			for k := range a {
				diff := a[k] - b[k]
				d += diff * diff
			}
			return math.Exp(-gamma * d)
		}, nil
	case KernelPoly:
		return func(a, b []float64) float64 {
			return math.Pow(gamma*floats.Dot(a, b)+coef0, float64(degree))
		}, nil
	case KernelSigmoid:
		return func(a, b []float64) float64 {
			return math.Tanh(gamma*floats.Dot(a, b) + coef0)
		}, nil
	default:
		return nil, errors.NewValidationError("kernel", "must be one of linear, rbf, poly, sigmoid", name)
	}
}

// scaleGamma returns 1/(p*Var(X)) over all entries of X, or 1 when X is
// constant.
func scaleGamma(X *mat.Dense) float64 {
	_, p := X.Dims()
	_, variance := stat.PopMeanVariance(X.RawMatrix().Data, nil)
	if variance == 0 {
		return 1.0
	}
	return 1.0 / (float64(p) * variance)
}

// gramMatrix computes the symmetric kernel matrix of the rows of X.
func gramMatrix(X *mat.Dense, k kernelFunc) *mat.SymDense {
	n, _ := X.Dims()
	K := mat.NewSymDense(n, nil)
	parallel.ParallelizeWithThreshold(n, 128, func(start, end int) {
		for i := start; i < end; i++ {
			xi := X.RawRowView(i)
			for j := i; j < n; j++ {
				K.SetSym(i, j, k(xi, X.RawRowView(j)))
			}
		}
	})
	return K
}
