// Package svm provides a kernel support vector classifier trained with
// sequential minimal optimization.
//
// Multiclass problems are decomposed one-vs-one: one binary machine per
// pair of classes, prediction by majority vote with ties going to the
// smaller label.
package svm

import (
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/core/parallel"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
	"github.com/ezoic/cardioml/preprocessing"
)

const tau = 1e-12

var globalProvider = log.DefaultProvider()

// SVC is a C-support vector classifier.
type SVC struct {
	state  *model.StateManager
	logger log.Logger

	// Hyperparameters
	C           float64
	kernel      string
	degree      int
	gammaMode   string  // "scale" or "auto", used when gamma <= 0
	gamma       float64 // explicit gamma when > 0
	coef0       float64
	tol         float64
	maxIter     int // per binary problem, <= 0 means unlimited
	classWeight string

	// Fitted state
	classes_   []int
	gamma_     float64
	xTrain     *mat.Dense
	machines   []binaryMachine
	support_   []int // sorted training indices with a non-zero multiplier
	nIter_     []int
	converged_ bool
}

// binaryMachine separates classes_[pos] (+1) from classes_[neg] (-1). It is
// one libsvm decision function: the machines are stored in the k*(k-1)/2
// pair order of libsvm's rho array.
type binaryMachine struct {
	pos, neg int
	sv       []int     // training row indices
	coef     []float64 // alpha_i * y_i
	rho      float64
}

// SVCOption is a functional option for SVC
type SVCOption func(*SVC)

// NewSVC creates a classifier with C=1, rbf kernel and gamma="scale".
func NewSVC(opts ...SVCOption) *SVC {
	s := &SVC{
		state:     model.NewStateManager(),
		C:         1.0,
		kernel:    KernelRBF,
		degree:    3,
		gammaMode: GammaScale,
		tol:       1e-3,
		maxIter:   -1,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger = globalProvider.GetLoggerWithName("SVC")
	return s
}

// WithC sets the regularization parameter
func WithC(c float64) SVCOption {
	return func(s *SVC) {
		s.C = c
	}
}

// WithKernel sets the kernel (linear, rbf, poly, sigmoid)
func WithKernel(kernel string) SVCOption {
	return func(s *SVC) {
		s.kernel = kernel
	}
}

// WithDegree sets the poly kernel degree
func WithDegree(degree int) SVCOption {
	return func(s *SVC) {
		s.degree = degree
	}
}

// WithGamma sets an explicit kernel coefficient
func WithGamma(gamma float64) SVCOption {
	return func(s *SVC) {
		s.gamma = gamma
	}
}

// WithGammaMode sets how gamma is derived from the data ("scale" or "auto")
func WithGammaMode(mode string) SVCOption {
	return func(s *SVC) {
		s.gammaMode = mode
	}
}

// WithCoef0 sets the independent term of the poly and sigmoid kernels
func WithCoef0(coef0 float64) SVCOption {
	return func(s *SVC) {
		s.coef0 = coef0
	}
}

// WithTol sets the KKT violation tolerance
func WithTol(tol float64) SVCOption {
	return func(s *SVC) {
		s.tol = tol
	}
}

// WithMaxIter caps SMO iterations per binary problem
func WithMaxIter(n int) SVCOption {
	return func(s *SVC) {
		s.maxIter = n
	}
}

// WithSVCClassWeight sets class weighting ("" or "balanced"); the weight of
// a class scales C for its rows.
func WithSVCClassWeight(mode string) SVCOption {
	return func(s *SVC) {
		s.classWeight = mode
	}
}

func (s *SVC) validate() error {
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be > 0", s.C)
	}
	if s.tol <= 0 {
		return errors.NewValidationError("tol", "must be > 0", s.tol)
	}
	if s.kernel == KernelPoly && s.degree < 0 {
		return errors.NewValidationError("degree", "must be non-negative", s.degree)
	}
	if s.gamma <= 0 && s.gammaMode != GammaScale && s.gammaMode != GammaAuto {
		return errors.NewValidationError("gamma", "mode must be scale or auto", s.gammaMode)
	}
	return nil
}

// Fit trains one binary machine per pair of classes.
func (s *SVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVC.Fit")
	labels, err := model.CheckXY("SVC.Fit", X, y)
	if err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if err := s.validate(); err != nil {
		return err
	}

	s.classes_ = model.UniqueLabels(labels)
	if len(s.classes_) < 2 {
		return errors.NewValueError("SVC.Fit", fmt.Sprintf("needs at least 2 classes, got %d", len(s.classes_)))
	}
	weights, err := preprocessing.ComputeClassWeight(s.classWeight, s.classes_, labels)
	if err != nil {
		return err
	}

	s.xTrain = mat.DenseCopyOf(X)
	switch {
	case s.gamma > 0:
		s.gamma_ = s.gamma
	case s.gammaMode == GammaAuto:
		s.gamma_ = 1.0 / float64(nFeatures)
	default:
		s.gamma_ = scaleGamma(s.xTrain)
	}
	kf, err := newKernel(s.kernel, s.gamma_, s.coef0, s.degree)
	if err != nil {
		return err
	}

	start := time.Now()
	K := gramMatrix(s.xTrain, kf)

	byClass := lo.GroupBy(lo.Range(nSamples), func(i int) int { return labels[i] })
	nClasses := len(s.classes_)
	s.machines = s.machines[:0]
	s.nIter_ = s.nIter_[:0]
	s.converged_ = true
	for a := 0; a < nClasses; a++ {
		for b := a + 1; b < nClasses; b++ {
			rows := append(append([]int(nil), byClass[s.classes_[a]]...), byClass[s.classes_[b]]...)
			yy := make([]float64, len(rows))
			cc := make([]float64, len(rows))
			for k, r := range rows {
				yy[k] = -1
				if labels[r] == s.classes_[a] {
					yy[k] = 1
				}
				cc[k] = s.C
				if weights != nil {
					cc[k] = s.C * weights[labels[r]]
				}
			}

			sol := solve(K, rows, yy, cc, s.tol, s.maxIter)
			if err := errors.CheckScalar("rho", sol.rho, sol.iter); err != nil {
				return errors.Wrapf(err, "classes %d vs %d", s.classes_[a], s.classes_[b])
			}
			if !sol.converged {
				s.converged_ = false
				errors.Warn(errors.NewConvergenceWarning("SVC", sol.iter,
					fmt.Sprintf("kernel=%s C=%g classes %d vs %d: solver hit max_iter, consider scaling the data", s.kernel, s.C, s.classes_[a], s.classes_[b])))
			}

			m := binaryMachine{pos: a, neg: b, rho: sol.rho}
			for k, alpha := range sol.alpha {
				if alpha > 0 {
					m.sv = append(m.sv, rows[k])
					m.coef = append(m.coef, alpha*yy[k])
				}
			}
			s.machines = append(s.machines, m)
			s.nIter_ = append(s.nIter_, sol.iter)
		}
	}

	s.support_ = model.UniqueLabels(lo.FlatMap(s.machines, func(m binaryMachine, _ int) []int { return m.sv }))
	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()

	s.logger.Debug("SVC fitted",
		log.OperationKey, log.OperationFit,
		log.KernelKey, s.kernel,
		log.CKey, s.C,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"support_vectors", len(s.support_),
		log.IterationsKey, lo.Sum(s.nIter_),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// DecisionFunction returns one column per binary machine, in pair order
// (0,1), (0,2), ..., (1,2), ...; positive values favor the first class.
func (s *SVC) DecisionFunction(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "SVC.DecisionFunction")
	if err := s.state.RequireFitted("SVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := s.state.CheckFeatures("SVC.DecisionFunction", nFeatures); err != nil {
		return nil, err
	}
	kf, err := newKernel(s.kernel, s.gamma_, s.coef0, s.degree)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(nSamples, len(s.machines), nil)
	parallel.ParallelizeWithThreshold(nSamples, 64, func(start, end int) {
		row := make([]float64, nFeatures)
		kx := make(map[int]float64, len(s.support_))
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			for _, sv := range s.support_ {
				kx[sv] = kf(row, s.xTrain.RawRowView(sv))
			}
			for j, m := range s.machines {
				d := -m.rho
				for k, sv := range m.sv {
					d += m.coef[k] * kx[sv]
				}
				out.Set(i, j, d)
			}
		}
	})
	return out, nil
}

// Predict returns the one-vs-one vote winner for each row.
func (s *SVC) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "SVC.Predict")
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := dec.Dims()
	out := mat.NewDense(nSamples, 1, nil)
	votes := make([]int, len(s.classes_))
	for i := 0; i < nSamples; i++ {
		for k := range votes {
			votes[k] = 0
		}
		for j, m := range s.machines {
			if dec.At(i, j) > 0 {
				votes[m.pos]++
			} else {
				votes[m.neg]++
			}
		}
		best := 0
		for k := 1; k < len(votes); k++ {
			if votes[k] > votes[best] {
				best = k
			}
		}
		out.Set(i, 0, float64(s.classes_[best]))
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data
func (s *SVC) Score(X, y mat.Matrix) (float64, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}
	return model.AccuracyScore("SVC.Score", pred, y)
}

// Classes returns the sorted class labels seen in Fit.
func (s *SVC) Classes() []int {
	return append([]int(nil), s.classes_...)
}

// Support returns the sorted training indices of the support vectors.
func (s *SVC) Support() []int {
	return append([]int(nil), s.support_...)
}

// NIter returns the SMO iterations per binary machine.
func (s *SVC) NIter() []int {
	return append([]int(nil), s.nIter_...)
}

// Converged reports whether every binary problem met the tolerance.
func (s *SVC) Converged() bool {
	return s.converged_
}

// Gamma returns the kernel coefficient used in the last Fit.
func (s *SVC) Gamma() float64 {
	return s.gamma_
}

// GetParams returns the model hyperparameters
func (s *SVC) GetParams() map[string]interface{} {
	gamma := interface{}(s.gammaMode)
	if s.gamma > 0 {
		gamma = s.gamma
	}
	return map[string]interface{}{
		"C":            s.C,
		"kernel":       s.kernel,
		"degree":       s.degree,
		"gamma":        gamma,
		"coef0":        s.coef0,
		"tol":          s.tol,
		"max_iter":     s.maxIter,
		"class_weight": s.classWeight,
	}
}

// SetParams sets the model hyperparameters. gamma accepts a float64 or a
// mode string.
func (s *SVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		ok := true
		switch key {
		case "C":
			s.C, ok = value.(float64)
		case "kernel":
			s.kernel, ok = value.(string)
		case "degree":
			s.degree, ok = value.(int)
		case "gamma":
			switch g := value.(type) {
			case float64:
				s.gamma = g
			case string:
				s.gamma, s.gammaMode = 0, g
			default:
				ok = false
			}
		case "coef0":
			s.coef0, ok = value.(float64)
		case "tol":
			s.tol, ok = value.(float64)
		case "max_iter":
			s.maxIter, ok = value.(int)
		case "class_weight":
			s.classWeight, ok = value.(string)
		default:
			return errors.NewValidationError("param", "unknown parameter", key)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	s.state.Reset()
	return nil
}

// solution of one binary dual problem.
type solution struct {
	alpha     []float64
	rho       float64
	iter      int
	converged bool
}

// solve minimizes 0.5*a'Qa - e'a subject to 0 <= a_i <= c_i and y'a = 0,
// where Q_ij = y_i y_j K(rows[i], rows[j]). Working pairs are chosen by
// maximal violation for i and second-order gain for j.
func solve(K *mat.SymDense, rows []int, y, c []float64, eps float64, maxIter int) solution {
	n := len(rows)
	alpha := make([]float64, n)
	grad := make([]float64, n)
	for i := range grad {
		grad[i] = -1
	}
	kk := func(i, j int) float64 { return K.At(rows[i], rows[j]) }
	q := func(i, j int) float64 { return y[i] * y[j] * kk(i, j) }

	isUpper := func(t int) bool { return alpha[t] >= c[t] }
	isLower := func(t int) bool { return alpha[t] <= 0 }

	iter := 0
	converged := false
	for maxIter <= 0 || iter < maxIter {
		// select i
		gmax := math.Inf(-1)
		i := -1
		for t := 0; t < n; t++ {
			if y[t] == 1 {
				if !isUpper(t) && -grad[t] >= gmax {
					gmax, i = -grad[t], t
				}
			} else if !isLower(t) && grad[t] >= gmax {
				gmax, i = grad[t], t
			}
		}

		// select j
		gmax2 := math.Inf(-1)
		j := -1
		objMin := math.Inf(1)
		for t := 0; t < n; t++ {
			var gradDiff float64
			if y[t] == 1 {
				if isLower(t) {
					continue
				}
				gradDiff = gmax + grad[t]
				if grad[t] >= gmax2 {
					gmax2 = grad[t]
				}
			} else {
				if isUpper(t) {
					continue
				}
				gradDiff = gmax - grad[t]
				if -grad[t] >= gmax2 {
					gmax2 = -grad[t]
				}
			}
			if i == -1 || gradDiff <= 0 {
				continue
			}
			quad := kk(i, i) + kk(t, t) - 2*kk(i, t)
			if quad <= 0 {
				quad = tau
			}
			if obj := -(gradDiff * gradDiff) / quad; obj <= objMin {
				objMin, j = obj, t
			}
		}

		if gmax+gmax2 < eps || j == -1 {
			converged = true
			break
		}
		iter++

		oldAi, oldAj := alpha[i], alpha[j]
		ci, cj := c[i], c[j]
		if y[i] != y[j] {
			quad := q(i, i) + q(j, j) + 2*q(i, j)
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > ci-cj {
				if alpha[i] > ci {
					alpha[i] = ci
					alpha[j] = ci - diff
				}
			} else if alpha[j] > cj {
				alpha[j] = cj
				alpha[i] = cj + diff
			}
		} else {
			quad := q(i, i) + q(j, j) - 2*q(i, j)
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > ci {
				if alpha[i] > ci {
					alpha[i] = ci
					alpha[j] = sum - ci
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > cj {
				if alpha[j] > cj {
					alpha[j] = cj
					alpha[i] = sum - cj
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dAi, dAj := alpha[i]-oldAi, alpha[j]-oldAj
		for t := 0; t < n; t++ {
			grad[t] += q(t, i)*dAi + q(t, j)*dAj
		}
	}

	return solution{alpha: alpha, rho: computeRho(alpha, grad, y, c), iter: iter, converged: converged}
}

// computeRho averages y_i*G_i over free multipliers, falling back to the
// midpoint of the feasible interval when none are free.
func computeRho(alpha, grad, y, c []float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	sumFree, nFree := 0.0, 0
	for i := range alpha {
		yg := y[i] * grad[i]
		switch {
		case alpha[i] >= c[i]:
			if y[i] == -1 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		case alpha[i] <= 0:
			if y[i] == 1 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		default:
			nFree++
			sumFree += yg
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}
