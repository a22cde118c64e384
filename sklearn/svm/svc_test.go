package svm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/pkg/errors"
)

// grid places n points per class in a small square around each center.
func grid(centers [][2]float64, labels []int, n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(len(centers)*n, 2, nil)
	var y []int
	row := 0
	for c, ctr := range centers {
		for i := 0; i < n; i++ {
			X.Set(row, 0, ctr[0]+float64(i%4)*0.25-0.375)
			X.Set(row, 1, ctr[1]+float64(i/4%4)*0.25-0.375)
			y = append(y, labels[c])
			row++
		}
	}
	return X, model.LabelsToMatrix(y)
}

func TestSVCKernelsSeparateBlobs(t *testing.T) {
	X, y := grid([][2]float64{{-2, -2}, {2, 2}}, []int{0, 1}, 16)
	for _, kernel := range Kernels {
		t.Run(kernel, func(t *testing.T) {
			opts := []SVCOption{WithKernel(kernel), WithC(1)}
			svc := NewSVC(opts...)
			require.NoError(t, svc.Fit(X, y))
			if kernel == KernelSigmoid {
				// sigmoid is not a PSD kernel; only require a usable model
				_, err := svc.Score(X, y)
				require.NoError(t, err)
				return
			}
			acc, err := svc.Score(X, y)
			require.NoError(t, err)
			assert.Equal(t, 1.0, acc)
			assert.True(t, svc.Converged())
			assert.NotEmpty(t, svc.Support())
		})
	}
}

func TestSVCLinearMarginDecision(t *testing.T) {
	// two points: the max-margin boundary is x=0 with f(x)=x
	X := mat.NewDense(2, 1, []float64{-1, 1})
	y := model.LabelsToMatrix([]int{1, 0})

	svc := NewSVC(WithKernel(KernelLinear), WithC(10))
	require.NoError(t, svc.Fit(X, y))

	dec, err := svc.DecisionFunction(mat.NewDense(3, 1, []float64{-2, 0, 0.5}))
	require.NoError(t, err)
	// class 0 is the first of the pair and sits at +1
	assert.InDelta(t, -2.0, dec.At(0, 0), 1e-6)
	assert.InDelta(t, 0.0, dec.At(1, 0), 1e-6)
	assert.InDelta(t, 0.5, dec.At(2, 0), 1e-6)
}

func TestSVCMulticlassOneVsOne(t *testing.T) {
	X, y := grid([][2]float64{{0, 4}, {4, -2}, {-4, -2}}, []int{2, 5, 8}, 16)
	svc := NewSVC(WithKernel(KernelRBF), WithC(10))
	require.NoError(t, svc.Fit(X, y))
	assert.Equal(t, []int{2, 5, 8}, svc.Classes())

	dec, err := svc.DecisionFunction(X)
	require.NoError(t, err)
	_, pairs := dec.Dims()
	assert.Equal(t, 3, pairs)

	acc, err := svc.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
	assert.Len(t, svc.NIter(), 3)
}

func TestSVCGammaScale(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{0, 0, 2, 2})
	y := model.LabelsToMatrix([]int{0, 1})
	svc := NewSVC()
	require.NoError(t, svc.Fit(X, y))
	// entries {0,0,2,2}: variance 1, two features
	assert.InDelta(t, 0.5, svc.Gamma(), 1e-12)

	auto := NewSVC(WithGammaMode(GammaAuto))
	require.NoError(t, auto.Fit(X, y))
	assert.InDelta(t, 0.5, auto.Gamma(), 1e-12)

	fixed := NewSVC(WithGamma(3))
	require.NoError(t, fixed.Fit(X, y))
	assert.Equal(t, 3.0, fixed.Gamma())
}

func TestSVCMaxIterWarns(t *testing.T) {
	var warnings []error
	prev := errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(prev)

	X, y := grid([][2]float64{{-0.5, 0}, {0.5, 0}}, []int{0, 1}, 16)
	svc := NewSVC(WithKernel(KernelLinear), WithMaxIter(1))
	require.NoError(t, svc.Fit(X, y))
	assert.False(t, svc.Converged())
	require.NotEmpty(t, warnings)

	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As(warnings[0], &cw))
	assert.Equal(t, []int{1}, svc.NIter())
}

func TestSVCBalancedClassWeight(t *testing.T) {
	// heavy overlap; with balancing the minority class wins more of the shared region
	X := mat.NewDense(12, 1, nil)
	labels := make([]int, 12)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i)/10)
	}
	X.Set(10, 0, 0.75)
	X.Set(11, 0, 0.85)
	labels[10], labels[11] = 1, 1
	y := model.LabelsToMatrix(labels)

	plain := NewSVC(WithKernel(KernelLinear), WithC(1))
	balanced := NewSVC(WithKernel(KernelLinear), WithC(1), WithSVCClassWeight("balanced"))
	require.NoError(t, plain.Fit(X, y))
	require.NoError(t, balanced.Fit(X, y))

	probe := mat.NewDense(1, 1, []float64{0.8})
	dp, err := plain.DecisionFunction(probe)
	require.NoError(t, err)
	db, err := balanced.DecisionFunction(probe)
	require.NoError(t, err)
	// positive favors class 0
	assert.Less(t, db.At(0, 0), dp.At(0, 0))
}

func TestSVCErrors(t *testing.T) {
	X, y := grid([][2]float64{{-2, -2}, {2, 2}}, []int{0, 1}, 4)

	_, err := NewSVC().Predict(X)
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	var ve *errors.ValidationError
	assert.True(t, errors.As(NewSVC(WithKernel("cubic")).Fit(X, y), &ve))
	assert.True(t, errors.As(NewSVC(WithC(0)).Fit(X, y), &ve))
	assert.True(t, errors.As(NewSVC(WithGammaMode("wide")).Fit(X, y), &ve))

	one := model.LabelsToMatrix([]int{1, 1, 1, 1, 1, 1, 1, 1})
	var valErr *errors.ValueError
	assert.True(t, errors.As(NewSVC().Fit(X, one), &valErr))

	svc := NewSVC()
	require.NoError(t, svc.SetParams(map[string]interface{}{"C": 100.0, "kernel": "poly", "gamma": "auto"}))
	p := svc.GetParams()
	assert.Equal(t, 100.0, p["C"])
	assert.Equal(t, "auto", p["gamma"])
	assert.Error(t, svc.SetParams(map[string]interface{}{"gamma": 1}))
}

func TestComputeRhoBoundsOnly(t *testing.T) {
	rho := computeRho([]float64{0, 0}, []float64{-1, -1}, []float64{1, -1}, []float64{1, 1})
	assert.False(t, math.IsNaN(rho))
	assert.Equal(t, 0.0, rho)
}
