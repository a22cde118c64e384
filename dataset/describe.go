package dataset

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/cardioml/pkg/errors"
)

// HeartGroupColumns are summarized per label by DefaultHeartDescribe.
var HeartGroupColumns = []string{"age", "trestbps", "chol", "oldpeak"}

// HeartCategoricalColumns are cross-tabulated against the label.
var HeartCategoricalColumns = []string{"sex", "cp", "fbs", "restecg", "exang", "slope", "ca", "thal"}

// DescribeOptions selects the optional parts of a Summary.
type DescribeOptions struct {
	GroupColumns    []string
	CrosstabColumns []string
	Correlation     bool
}

// DefaultHeartDescribe mirrors the exploratory analysis of the heart table.
func DefaultHeartDescribe() DescribeOptions {
	return DescribeOptions{
		GroupColumns:    HeartGroupColumns,
		CrosstabColumns: HeartCategoricalColumns,
		Correlation:     true,
	}
}

// ColumnSummary describes one feature column, ignoring missing cells.
type ColumnSummary struct {
	Name    string
	Missing int
	Unique  int
	Mean    float64
	Std     float64 // sample standard deviation
	Min     float64
	Max     float64
}

// LabelCount is the frequency of one label.
type LabelCount struct {
	Label   int
	Count   int
	Percent float64
}

// GroupStats summarizes one column restricted to rows with one label.
type GroupStats struct {
	Column string
	Label  int
	Min    float64
	Max    float64
	Mean   float64
}

// Crosstab counts rows per (column value, label) pair. Counts has one row
// per entry of Values and one column per entry of Labels.
type Crosstab struct {
	Column string
	Values []float64
	Labels []int
	Counts *mat.Dense
}

// Summary is the descriptive report of a Dataset.
type Summary struct {
	Name      string
	Rows      int
	Cols      int // feature columns plus the label
	Columns   []ColumnSummary
	Labels    []LabelCount
	Groups    []GroupStats
	Crosstabs []Crosstab
	// Correlation is the Pearson matrix over CorrNames (features then the
	// label), computed on rows without missing cells.
	Correlation *mat.SymDense
	CorrNames   []string
}

func present(col []float64) []float64 {
	return lo.Filter(col, func(v float64, _ int) bool { return !math.IsNaN(v) })
}

// Describe computes the descriptive statistics of d.
func Describe(d *Dataset, opts DescribeOptions) (*Summary, error) {
	n, p := d.X.Dims()
	if n == 0 {
		return nil, errors.NewModelError("Describe", "no rows", errors.ErrEmptyData)
	}
	s := &Summary{Name: d.Name, Rows: n, Cols: p + 1}

	col := make([]float64, n)
	for j, name := range d.FeatureNames {
		mat.Col(col, j, d.X)
		vals := present(col)
		cs := ColumnSummary{Name: name, Missing: n - len(vals), Unique: len(lo.Uniq(vals))}
		if len(vals) > 0 {
			cs.Mean, cs.Std = stat.MeanStdDev(vals, nil)
			cs.Min, cs.Max = floats.Min(vals), floats.Max(vals)
		}
		s.Columns = append(s.Columns, cs)
	}

	counts := lo.CountValues(d.Y)
	labels := lo.Keys(counts)
	sort.Ints(labels)
	for _, l := range labels {
		s.Labels = append(s.Labels, LabelCount{
			Label:   l,
			Count:   counts[l],
			Percent: 100 * float64(counts[l]) / float64(n),
		})
	}

	byLabel := lo.GroupBy(lo.Range(n), func(i int) int { return d.Y[i] })
	for _, name := range opts.GroupColumns {
		values, err := d.Column(name)
		if err != nil {
			return nil, err
		}
		for _, l := range labels {
			vals := present(lo.Map(byLabel[l], func(i int, _ int) float64 { return values[i] }))
			g := GroupStats{Column: name, Label: l, Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()}
			if len(vals) > 0 {
				g.Min, g.Max, g.Mean = floats.Min(vals), floats.Max(vals), stat.Mean(vals, nil)
			}
			s.Groups = append(s.Groups, g)
		}
	}

	for _, name := range opts.CrosstabColumns {
		ct, err := crosstab(d, name, labels)
		if err != nil {
			return nil, err
		}
		s.Crosstabs = append(s.Crosstabs, ct)
	}

	if opts.Correlation {
		s.CorrNames = append(append([]string(nil), d.FeatureNames...), d.LabelName)
		s.Correlation = correlation(d)
	}
	return s, nil
}

func crosstab(d *Dataset, name string, labels []int) (Crosstab, error) {
	values, err := d.Column(name)
	if err != nil {
		return Crosstab{}, err
	}
	distinct := lo.Uniq(present(values))
	sort.Float64s(distinct)
	if len(distinct) == 0 {
		return Crosstab{}, errors.NewValueError("Describe", fmt.Sprintf("column %q has no values", name))
	}
	row := make(map[float64]int, len(distinct))
	for i, v := range distinct {
		row[v] = i
	}
	colIdx := make(map[int]int, len(labels))
	for i, l := range labels {
		colIdx[l] = i
	}
	counts := mat.NewDense(len(distinct), len(labels), nil)
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		r, c := row[v], colIdx[d.Y[i]]
		counts.Set(r, c, counts.At(r, c)+1)
	}
	return Crosstab{Column: name, Values: distinct, Labels: labels, Counts: counts}, nil
}

// correlation returns the Pearson matrix of features plus the label over
// complete rows. Constant columns yield NaN entries.
func correlation(d *Dataset) *mat.SymDense {
	n, p := d.X.Dims()
	var rows [][]float64
	for i := 0; i < n; i++ {
		r := append(mat.Row(nil, i, d.X), float64(d.Y[i]))
		if !floats.HasNaN(r) {
			rows = append(rows, r)
		}
	}
	corr := mat.NewSymDense(p+1, nil)
	if len(rows) < 2 {
		for i := 0; i <= p; i++ {
			for j := i; j <= p; j++ {
				corr.SetSym(i, j, math.NaN())
			}
		}
		return corr
	}
	m := mat.NewDense(len(rows), p+1, nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	stat.CorrelationMatrix(corr, m, nil)
	return corr
}
