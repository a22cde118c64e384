package errors_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmlErrors "github.com/ezoic/cardioml/pkg/errors"
)

// TestErrorWrappingCompatibility tests Go 1.13+ error wrapping with our custom types
func TestErrorWrappingCompatibility(t *testing.T) {
	originalErr := cmlErrors.NewNotFittedError("TestModel", "Predict")

	wrappedErr := fmt.Errorf("pipeline step failed: %w", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Errorf("errors.Is failed to identify wrapped error")
	}

	var notFittedErr *cmlErrors.NotFittedError
	if !errors.As(wrappedErr, &notFittedErr) {
		t.Fatalf("errors.As failed to extract NotFittedError")
	}

	if notFittedErr.ModelName != "TestModel" {
		t.Errorf("expected ModelName 'TestModel', got '%s'", notFittedErr.ModelName)
	}
}

// TestCombinedErrorTypes tests mixing custom and standard errors
func TestCombinedErrorTypes(t *testing.T) {
	stdErr := fmt.Errorf("standard error")

	customErr := cmlErrors.NewModelError("TestOp", "test failure", stdErr)
	wrappedErr := fmt.Errorf("operation context: %w", customErr)

	assert.True(t, errors.Is(wrappedErr, stdErr))

	var modelErr *cmlErrors.ModelError
	require.True(t, errors.As(wrappedErr, &modelErr))
	assert.Equal(t, stdErr, modelErr.Unwrap())
}

// TestSentinelErrors tests sentinel error patterns
func TestSentinelErrors(t *testing.T) {
	err := cmlErrors.NewModelError("TestOp", "empty data", cmlErrors.ErrEmptyData)
	assert.True(t, errors.Is(err, cmlErrors.ErrEmptyData))

	wrappedErr := cmlErrors.Wrap(err, "preprocessing failed")
	assert.True(t, cmlErrors.Is(wrappedErr, cmlErrors.ErrEmptyData))

	dimErr := cmlErrors.NewDimensionError("Predict", 3, 4, 1)
	assert.True(t, errors.Is(dimErr, cmlErrors.ErrDimensionMismatch))
	assert.Contains(t, dimErr.Error(), "columns")
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer cmlErrors.Recover(&err, "Explode")
		var s []int
		_ = s[3]
		return nil
	}

	err := run()
	require.Error(t, err)

	var modelErr *cmlErrors.ModelError
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, "Explode", modelErr.Op)
	assert.Equal(t, "panic recovered", modelErr.Kind)
}

func TestRecoverNoPanic(t *testing.T) {
	run := func() (err error) {
		defer cmlErrors.Recover(&err, "Quiet")
		return nil
	}
	assert.NoError(t, run())
}

func TestWarnUsesHandler(t *testing.T) {
	var got []error
	prev := cmlErrors.SetWarningHandler(func(w error) { got = append(got, w) })
	defer cmlErrors.SetWarningHandler(prev)

	cmlErrors.Warn(cmlErrors.NewConvergenceWarning("SVC", 100, "max_iter reached"))
	cmlErrors.Warn(nil)
	cmlErrors.Warn(cmlErrors.CheckScalar("decision", math.NaN(), 7))
	cmlErrors.Warn(cmlErrors.CheckScalar("decision", 1.5, 8))

	require.Len(t, got, 2)
	var cw *cmlErrors.ConvergenceWarning
	require.True(t, errors.As(got[0], &cw))
	assert.Equal(t, 100, cw.Iterations)

	var nw *cmlErrors.NumericalWarning
	require.True(t, errors.As(got[1], &nw))
	assert.Equal(t, 7, nw.Iteration)
}
