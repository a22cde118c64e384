package errors

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"
)

// ConvergenceWarning is raised when an iterative solver stops at its iteration
// limit. It is informational: the estimator keeps its last solution.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("ConvergenceWarning: %s did not converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
}

// NewConvergenceWarning creates a ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// NumericalWarning flags a NaN or Inf produced during computation.
type NumericalWarning struct {
	Name      string
	Value     float64
	Iteration int
}

func (w *NumericalWarning) Error() string {
	return fmt.Sprintf("NumericalWarning: %s became %v at iteration %d", w.Name, w.Value, w.Iteration)
}

// CheckScalar returns a NumericalWarning when v is NaN or ±Inf.
func CheckScalar(name string, v float64, iteration int) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &NumericalWarning{Name: name, Value: v, Iteration: iteration}
	}
	return nil
}

var (
	warnMu      sync.RWMutex
	warnHandler = defaultWarnHandler
)

func defaultWarnHandler(w error) {
	log.Warn().Err(w).Msg("warning")
}

// SetWarningHandler replaces the function receiving warnings and returns the
// previous one. Passing nil restores the default zerolog handler.
func SetWarningHandler(h func(error)) func(error) {
	warnMu.Lock()
	defer warnMu.Unlock()
	prev := warnHandler
	if h == nil {
		h = defaultWarnHandler
	}
	warnHandler = h
	return prev
}

// Warn emits a warning. It never fails the caller.
func Warn(w error) {
	if w == nil {
		return
	}
	warnMu.RLock()
	h := warnHandler
	warnMu.RUnlock()
	h(w)
}
