// Package model provides the core abstractions shared by every estimator and
// transformer in cardioml.
//
//   - BaseEstimator: fitted-state tracking, hyperparameter bag and optional logger,
//     embedded by the preprocessing transformers
//   - StateManager: thread-safe fitted state plus the shape seen during Fit,
//     held by the classifiers
//   - Estimator / Predictor / Classifier / Transformer: the interfaces the harness
//     and pipeline program against
//
// Example usage:
//
//	type MyScaler struct {
//		model.BaseEstimator
//		// transformer-specific fields
//	}
//
//	func (m *MyScaler) Fit(X mat.Matrix) error {
//		// fitting logic
//		m.SetFitted()
//		return nil
//	}
package model

import (
	"github.com/ezoic/cardioml/pkg/log"
)

// EstimatorState represents the learning state of a model
type EstimatorState int

const (
	// NotFitted indicates the model is not yet trained
	NotFitted EstimatorState = iota
	// Fitted indicates the model has been trained
	Fitted
)

// String returns the state name.
func (s EstimatorState) String() string {
	if s == Fitted {
		return "fitted"
	}
	return "not_fitted"
}

// BaseEstimator is the base structure for transformers
type BaseEstimator struct {
	// State holds the model's learning state.
	State EstimatorState

	logger log.Logger

	// hyperparameters holds the model's hyperparameters
	hyperparameters map[string]interface{}

	// ModelType identifies the type of model
	ModelType string
}

// IsFitted returns whether Fit has completed successfully.
//
// Example:
//
//	if !scaler.IsFitted() {
//	    if err := scaler.Fit(Xtrain); err != nil {
//	        return err
//	    }
//	}
//	Xtest, err := scaler.Transform(Xtest)
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the estimator as fitted. Called by implementations at the
// end of a successful Fit.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the estimator to its initial untrained state.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

// SetLogger sets the logger for this estimator.
func (e *BaseEstimator) SetLogger(logger log.Logger) {
	e.logger = logger
}

// GetLogger returns the logger for this estimator, or nil.
func (e *BaseEstimator) GetLogger() log.Logger {
	return e.logger
}

// LogInfo logs an info-level message if a logger is configured.
func (e *BaseEstimator) LogInfo(msg string, fields ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, fields...)
	}
}

// LogDebug logs a debug-level message if a logger is configured.
func (e *BaseEstimator) LogDebug(msg string, fields ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, fields...)
	}
}

// LogError logs an error-level message if a logger is configured.
func (e *BaseEstimator) LogError(msg string, fields ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, fields...)
	}
}

// GetParams retrieves the model's hyperparameters. With deep the returned map
// is a copy.
func (e *BaseEstimator) GetParams(deep bool) map[string]interface{} {
	if e.hyperparameters == nil {
		return make(map[string]interface{})
	}

	if !deep {
		return e.hyperparameters
	}

	params := make(map[string]interface{}, len(e.hyperparameters))
	for k, v := range e.hyperparameters {
		params[k] = v
	}
	return params
}

// SetParams merges params into the model's hyperparameters.
func (e *BaseEstimator) SetParams(params map[string]interface{}) error {
	if e.hyperparameters == nil {
		e.hyperparameters = make(map[string]interface{})
	}

	for k, v := range params {
		e.hyperparameters[k] = v
	}

	return nil
}

// Clone returns an unfitted copy carrying the same hyperparameters and logger.
func (e *BaseEstimator) Clone() *BaseEstimator {
	clone := &BaseEstimator{
		State:           NotFitted,
		ModelType:       e.ModelType,
		logger:          e.logger,
		hyperparameters: make(map[string]interface{}, len(e.hyperparameters)),
	}

	for k, v := range e.hyperparameters {
		clone.hyperparameters[k] = v
	}

	return clone
}
