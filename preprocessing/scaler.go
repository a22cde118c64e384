// Package preprocessing provides the transformers applied to a training split
// and then, with the same fitted parameters, to the matching test split.
//
//   - MissingColumnFilter: drops columns whose missing ratio exceeds a limit
//   - SimpleImputer: fills NaN cells with a per-column median or mean
//   - StandardScaler: zero mean, unit (population) variance per column
//   - MinMaxScaler: per-column scaling to a target range
//   - ComputeClassWeight / SampleWeights: balanced class weighting
//
// Every transformer is fitted on training rows only:
//
//	scaler := preprocessing.NewStandardScalerDefault()
//	Xtrain, err := scaler.FitTransform(Xtrain)
//	...
//	Xtest, err := scaler.Transform(Xtest)
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/core/parallel"
	cmlErrors "github.com/ezoic/cardioml/pkg/errors"
)

// 行数がこれ未満なら逐次処理
const parallelThreshold = 2000

// StandardScaler は平均0・分散1への標準化を行う
// 標準偏差は母標準偏差（n で割る）。定数列のスケールは1
type StandardScaler struct {
	model.BaseEstimator

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler creates a StandardScaler.
//
// Parameters:
//   - withMean: center each column at zero
//   - withStd: divide each column by its population standard deviation
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	s := &StandardScaler{WithMean: withMean, WithStd: withStd}
	s.ModelType = "StandardScaler"
	return s
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes per-column mean and population standard deviation.
//
// Errors:
//   - ErrEmptyData: X has no rows or no columns
//   - ErrMissingValues: X contains NaN (impute first)
func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
	defer cmlErrors.Recover(&err, "StandardScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return cmlErrors.NewModelError("StandardScaler.Fit", "empty data", cmlErrors.ErrEmptyData)
	}
	if err := checkNoNaN("StandardScaler.Fit", X); err != nil {
		return err
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)

		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1.0
		if s.WithStd && std > 1e-8 {
			s.Scale[j] = std
		}
	}

	s.SetFitted()
	s.LogDebug("StandardScaler fitted", "features", c, "samples", r)
	return nil
}

// Transform applies (x - mean) / scale with the fitted parameters.
func (s *StandardScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer cmlErrors.Recover(&err, "StandardScaler.Transform")
	if !s.IsFitted() {
		return nil, cmlErrors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, cmlErrors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
			}
		}
	})

	return result, nil
}

// FitTransform fits the scaler on X and returns X standardized.
func (s *StandardScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer cmlErrors.Recover(&err, "StandardScaler.FitTransform")
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

// MinMaxScaler は各特徴量を FeatureRange にスケーリングする
type MinMaxScaler struct {
	model.BaseEstimator

	// DataMin / DataMax は学習データの列ごとの最小値・最大値
	DataMin []float64
	DataMax []float64

	// Scale は各特徴量のレンジ (max - min)。定数列は1
	Scale []float64

	NFeatures int

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler creates a MinMaxScaler targeting featureRange.
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	m := &MinMaxScaler{FeatureRange: featureRange}
	m.ModelType = "MinMaxScaler"
	return m
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit records per-column minimum and maximum.
func (m *MinMaxScaler) Fit(X mat.Matrix) (err error) {
	defer cmlErrors.Recover(&err, "MinMaxScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return cmlErrors.NewModelError("MinMaxScaler.Fit", "empty data", cmlErrors.ErrEmptyData)
	}
	if m.FeatureRange[1] <= m.FeatureRange[0] {
		return cmlErrors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}
	if err := checkNoNaN("MinMaxScaler.Fit", X); err != nil {
		return err
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		m.DataMin[j] = lo
		m.DataMax[j] = hi
		m.Scale[j] = hi - lo
		if m.Scale[j] < 1e-8 {
			m.Scale[j] = 1.0
		}
	}

	m.SetFitted()
	return nil
}

// Transform scales X into FeatureRange using the fitted extrema. Test values
// outside the training range fall outside FeatureRange.
func (m *MinMaxScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer cmlErrors.Recover(&err, "MinMaxScaler.Transform")
	if !m.IsFitted() {
		return nil, cmlErrors.NewNotFittedError("MinMaxScaler", "Transform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, cmlErrors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	width := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-m.DataMin[j])/m.Scale[j]*width+m.FeatureRange[0])
		}
	}

	return result, nil
}

// FitTransform fits on X and returns X scaled.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer cmlErrors.Recover(&err, "MinMaxScaler.FitTransform")
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures)
}

// checkNoNaN returns ErrMissingValues wrapped with the first NaN position.
func checkNoNaN(op string, X mat.Matrix) error {
	r, c := X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(X.At(i, j)) {
				return cmlErrors.NewModelError(op,
					fmt.Sprintf("NaN at row %d column %d", i, j), cmlErrors.ErrMissingValues)
			}
		}
	}
	return nil
}
