package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/cardioml/pkg/errors"
)

func TestStateManagerLifecycle(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("KNeighborsClassifier", "Predict")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	s.SetDimensions(4, 100)
	s.SetFitted()
	assert.True(t, s.IsFitted())
	nf, ns := s.GetDimensions()
	assert.Equal(t, 4, nf)
	assert.Equal(t, 100, ns)
	assert.NoError(t, s.CheckFeatures("op", 4))
	assert.True(t, errors.Is(s.CheckFeatures("op", 5), errors.ErrDimensionMismatch))

	s.Reset()
	assert.False(t, s.IsFitted())
	nf, _ = s.GetDimensions()
	assert.Zero(t, nf)
}

func TestStateManagerConcurrentReads(t *testing.T) {
	s := NewStateManager()
	s.SetFitted()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, s.IsFitted())
		}()
	}
	wg.Wait()
}

func TestBaseEstimatorCloneIsUnfitted(t *testing.T) {
	e := &BaseEstimator{ModelType: "StandardScaler"}
	require.NoError(t, e.SetParams(map[string]interface{}{"with_mean": true}))
	e.SetFitted()

	c := e.Clone()
	assert.False(t, c.IsFitted())
	assert.Equal(t, "StandardScaler", c.ModelType)
	assert.Equal(t, true, c.GetParams(true)["with_mean"])

	// deep copy
	c.GetParams(false)["with_mean"] = false
	assert.Equal(t, true, e.GetParams(false)["with_mean"])
}
