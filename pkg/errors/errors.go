// Package errors provides the error types and helpers shared by every estimator,
// transformer and harness stage in cardioml.
//
// It is a thin layer over github.com/cockroachdb/errors: sentinel errors mark the
// failure category, typed errors carry structured context (operation, expected
// shape, model name), and every error keeps a stack trace that is printed with
// the %+v verb.
//
// Public estimator methods follow one pattern:
//
//	func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
//		defer errors.Recover(&err, "StandardScaler.Fit")
//		...
//	}
//
// so that a panic from gonum (index out of range, dimension mismatch) surfaces as
// an ordinary error instead of tearing down a whole comparison run.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors. Compare with errors.Is.
var (
	ErrEmptyData                = errors.New("empty data")
	ErrNotFitted                = errors.New("not fitted")
	ErrDimensionMismatch        = errors.New("dimension mismatch")
	ErrSingularMatrix           = errors.New("singular matrix")
	ErrMissingValues            = errors.New("missing values present")
	ErrInsufficientClassMembers = errors.New("insufficient class members")
)

// New creates an error with a stack trace.
func New(msg string) error { return errors.New(msg) }

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }

// Wrap annotates err with msg. Returns nil when err is nil.
func Wrap(err error, msg string) error { return errors.Wrap(err, msg) }

// Wrapf annotates err with a formatted message. Returns nil when err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Unwrap returns the next error in err's chain.
func Unwrap(err error) error { return errors.Unwrap(err) }

// DimensionError reports a shape mismatch along one axis (0 = rows, 1 = columns).
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) Error() string {
	axis := "columns"
	if e.Axis == 0 {
		axis = "rows"
	}
	return fmt.Sprintf("cardioml: %s: dimension mismatch on %s: expected %d, got %d", e.Op, axis, e.Expected, e.Got)
}

// Unwrap lets errors.Is match ErrDimensionMismatch.
func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// NotFittedError is returned when a model is used before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("cardioml: %s: this instance is not fitted yet, call Fit before %s", e.ModelName, e.Method)
}

// Unwrap lets errors.Is match ErrNotFitted.
func (e *NotFittedError) Unwrap() error { return ErrNotFitted }

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// ValueError reports an argument with an unacceptable value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("cardioml: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError ties a failure category (Err) to the operation that hit it.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cardioml: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("cardioml: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ValidationError reports an invalid parameter or input value.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cardioml: invalid %s (%v): %s", e.ParamName, e.Value, e.Reason)
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(paramName, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: paramName, Reason: reason, Value: value})
}

// Recover converts a panic into an error assigned to *err. It must be deferred
// directly by the function whose panics it should catch.
func Recover(err *error, op string) {
	if r := recover(); r != nil {
		var cause error
		switch v := r.(type) {
		case error:
			cause = v
		default:
			cause = errors.Newf("%v", v)
		}
		*err = errors.WithStack(&ModelError{Op: op, Kind: "panic recovered", Err: cause})
	}
}
