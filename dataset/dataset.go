// Package dataset loads the heart-disease and arrhythmia tables into
// numeric feature matrices and computes their descriptive statistics.
//
// Missing cells are NaN in Dataset.X. Every row carries an integer label.
package dataset

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/pkg/errors"
)

const (
	// HeartLabel is the label column of the heart table after renaming.
	HeartLabel = "target"
	// heartRawLabel is the label column as shipped in the CSV.
	heartRawLabel = "condition"
	// ArrhythmiaLabel names the last (class) column of the arrhythmia table.
	ArrhythmiaLabel = "class"

	// DefaultArrhythmiaURL is the UCI location of the arrhythmia data.
	DefaultArrhythmiaURL = "https://archive.ics.uci.edu/ml/machine-learning-databases/arrhythmia/arrhythmia.data"
)

// Dataset is a numeric feature matrix with one integer label per row.
type Dataset struct {
	Name         string
	FeatureNames []string
	LabelName    string
	X            *mat.Dense
	Y            []int
}

// NSamples returns the number of rows.
func (d *Dataset) NSamples() int { return len(d.Y) }

// NFeatures returns the number of feature columns.
func (d *Dataset) NFeatures() int { return len(d.FeatureNames) }

// Labels returns Y as an (n, 1) matrix.
func (d *Dataset) Labels() *mat.Dense {
	return mat.NewDense(len(d.Y), 1, lo.Map(d.Y, func(l int, _ int) float64 { return float64(l) }))
}

// ColumnIndex returns the position of a feature column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	return lo.IndexOf(d.FeatureNames, name)
}

// Column returns a copy of the named feature column.
func (d *Dataset) Column(name string) ([]float64, error) {
	j := d.ColumnIndex(name)
	if j < 0 {
		return nil, errors.NewValueError("Dataset.Column", fmt.Sprintf("%s: no column %q", d.Name, name))
	}
	return mat.Col(nil, j, d.X), nil
}

// MissingCounts returns the number of NaN cells per feature column.
func (d *Dataset) MissingCounts() []int {
	r, c := d.X.Dims()
	out := make([]int, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			if math.IsNaN(d.X.At(i, j)) {
				out[j]++
			}
		}
	}
	return out
}

// HasMissing reports whether any feature cell is NaN.
func (d *Dataset) HasMissing() bool {
	return lo.SomeBy(d.MissingCounts(), func(c int) bool { return c > 0 })
}

var (
	heartMissing      = []string{"?", "NA", "NaN"}
	arrhythmiaMissing = []string{"?"}
)

// ReadHeart parses the heart-disease CSV (with header). The label column
// "condition" is renamed "target". "?", "NA" and "NaN" mark missing cells;
// any other non-numeric cell is an error.
func ReadHeart(r io.Reader) (*Dataset, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.NaNValues(heartMissing),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "dataset: reading heart CSV")
	}
	if lo.Contains(df.Names(), heartRawLabel) {
		df = df.Rename(HeartLabel, heartRawLabel)
	}
	if !lo.Contains(df.Names(), HeartLabel) {
		return nil, errors.NewValueError("ReadHeart", fmt.Sprintf("missing label column %q or %q", heartRawLabel, HeartLabel))
	}
	return fromFrame("heart", df, HeartLabel)
}

// ReadArrhythmia parses the header-less arrhythmia CSV where "?" marks a
// missing value and the last column is the class label. Feature columns are
// named X0, X1, ... Any other non-numeric cell is an error.
func ReadArrhythmia(r io.Reader) (*Dataset, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(false),
		dataframe.NaNValues(arrhythmiaMissing),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "dataset: reading arrhythmia CSV")
	}
	if df.Ncol() < 2 {
		return nil, errors.NewValueError("ReadArrhythmia", fmt.Sprintf("expected a label column after the features, got %d columns", df.Ncol()))
	}
	names := df.Names()
	df = df.Rename(ArrhythmiaLabel, names[len(names)-1])
	return fromFrame("arrhythmia", df, ArrhythmiaLabel)
}

// fromFrame splits a string frame into numeric features and the label
// column. Cells gota marked as NA become NaN.
func fromFrame(name string, df dataframe.DataFrame, label string) (*Dataset, error) {
	if df.Nrow() == 0 {
		return nil, errors.NewModelError("dataset."+name, "no rows", errors.ErrEmptyData)
	}
	op := "dataset." + name
	features := lo.Without(df.Names(), label)
	n := df.Nrow()

	X := mat.NewDense(n, len(features), nil)
	for j, col := range features {
		values, err := parseColumn(op, df.Col(col), col)
		if err != nil {
			return nil, err
		}
		X.SetCol(j, values)
	}

	raw, err := parseColumn(op, df.Col(label), label)
	if err != nil {
		return nil, err
	}
	y := make([]int, n)
	for i, v := range raw {
		if math.IsNaN(v) {
			return nil, errors.NewValueError(op, fmt.Sprintf("row %d has no label", i))
		}
		if v != math.Trunc(v) {
			return nil, errors.NewValueError(op, fmt.Sprintf("row %d has non-integer label %v", i, v))
		}
		y[i] = int(v)
	}

	return &Dataset{
		Name:         name,
		FeatureNames: features,
		LabelName:    label,
		X:            X,
		Y:            y,
	}, nil
}

// parseColumn converts a string column to float64. NA cells become NaN; a
// cell that is not a finite number fails with its row and column.
func parseColumn(op string, s series.Series, col string) ([]float64, error) {
	out := make([]float64, s.Len())
	for i := range out {
		e := s.Elem(i)
		if e.IsNA() {
			out[i] = math.NaN()
			continue
		}
		cell := strings.TrimSpace(e.String())
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewValueError(op, fmt.Sprintf("row %d column %q: malformed value %q", i, col, cell))
		}
		out[i] = v
	}
	return out, nil
}
