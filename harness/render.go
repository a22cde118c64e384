package harness

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/ezoic/cardioml/dataset"
	"github.com/ezoic/cardioml/sklearn/decomposition"
)

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(lo.ToAnySlice(header)...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func fmtFloat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func fmtC(c float64) string {
	return strconv.FormatFloat(c, 'g', -1, 64)
}

// RenderModels writes one row per evaluated classifier.
func RenderModels(w io.Writer, results []*ModelResult) error {
	withCV := lo.SomeBy(results, func(r *ModelResult) bool { return len(r.CVScores) > 0 })
	withAUC := lo.SomeBy(results, func(r *ModelResult) bool { return !math.IsNaN(r.ROCAUC) })
	header := []string{"Model", "Accuracy", "Macro F1", "Weighted F1", "Time"}
	if withAUC {
		header = append(header, "ROC AUC")
	}
	if withCV {
		header = append(header, "CV Mean", "CV Std")
	}
	rows := lo.Map(results, func(r *ModelResult, _ int) []string {
		row := []string{
			r.Name,
			fmtFloat(r.Accuracy),
			fmtFloat(r.Report.MacroAvg.F1),
			fmtFloat(r.Report.WeightedAvg.F1),
			r.Duration.Round(time.Millisecond).String(),
		}
		if withAUC {
			row = append(row, fmtFloat(r.ROCAUC))
		}
		if withCV {
			mean, std := meanStd(r.CVScores)
			row = append(row, fmtFloat(mean), fmtFloat(std))
		}
		return row
	})
	return renderTable(w, header, rows)
}

// RenderModelDetail writes the classification report and the confusion
// matrix of one classifier.
func RenderModelDetail(w io.Writer, r *ModelResult) error {
	if _, err := fmt.Fprintf(w, "\n== %s ==\nAccuracy: %.2f%%\n\n%s\n", r.Name, 100*r.Accuracy, r.Report.String()); err != nil {
		return err
	}
	header := append([]string{"true \\ pred"}, lo.Map(r.Labels, func(l int, _ int) string { return strconv.Itoa(l) })...)
	rows := make([][]string, len(r.Labels))
	for i, l := range r.Labels {
		row := []string{strconv.Itoa(l)}
		for j := range r.Labels {
			row = append(row, strconv.Itoa(int(r.Confusion.At(i, j))))
		}
		rows[i] = row
	}
	return renderTable(w, header, rows)
}

// RenderSweep writes the accuracy grid with kernels as rows and C values as
// columns. Failed cells show "failed".
func RenderSweep(w io.Writer, res *SweepResult) error {
	header := append([]string{"Kernel"}, lo.Map(res.C, func(c float64, _ int) string { return "C=" + fmtC(c) })...)
	rows := lo.Map(res.Kernels, func(kernel string, k int) []string {
		row := []string{kernel}
		for j := range res.C {
			cell := res.Cell(k, j)
			switch {
			case cell.Failed():
				row = append(row, "failed")
			case !cell.Converged:
				row = append(row, fmtFloat(cell.Accuracy)+"*")
			default:
				row = append(row, fmtFloat(cell.Accuracy))
			}
		}
		return row
	})
	return renderTable(w, header, rows)
}

// RenderBest writes the best C per kernel.
func RenderBest(w io.Writer, res *SweepResult) error {
	rows := lo.Map(res.BestPerKernel(), func(c SweepCell, _ int) []string {
		if c.Failed() {
			return []string{c.Kernel, "-", "failed"}
		}
		return []string{c.Kernel, fmtC(c.C), fmtFloat(c.Accuracy)}
	})
	return renderTable(w, []string{"Kernel", "Best C", "Accuracy"}, rows)
}

// RenderComponents writes the PCA component choice and its curve.
func RenderComponents(w io.Writer, sel *decomposition.ComponentSelection) error {
	if _, err := fmt.Fprintf(w,
		"PCA: %d components reach %.2f cumulative variance (largest count below: %d, eigenvalue >= 1: %d)\n",
		sel.Count, sel.Threshold, sel.LargestBelow, sel.Kaiser); err != nil {
		return err
	}
	rows := make([][]string, 0, len(sel.Cumulative))
	for k := range sel.Cumulative {
		// the curve is long; print up to the chosen count
		if k >= sel.Count {
			break
		}
		rows = append(rows, []string{strconv.Itoa(k + 1), fmtFloat(sel.Cumulative[k]), fmtFloat(sel.Eigenvalues[k])})
	}
	return renderTable(w, []string{"Components", "Cumulative", "Eigenvalue"}, rows)
}

// RenderSummary writes the descriptive statistics of a dataset.
func RenderSummary(w io.Writer, s *dataset.Summary) error {
	if _, err := fmt.Fprintf(w, "%s: %d rows, %d columns\n", s.Name, s.Rows, s.Cols); err != nil {
		return err
	}
	cols := lo.Map(s.Columns, func(c dataset.ColumnSummary, _ int) []string {
		return []string{c.Name, strconv.Itoa(c.Missing), strconv.Itoa(c.Unique),
			fmtFloat(c.Mean), fmtFloat(c.Std), fmtFloat(c.Min), fmtFloat(c.Max)}
	})
	if err := renderTable(w, []string{"Column", "Missing", "Unique", "Mean", "Std", "Min", "Max"}, cols); err != nil {
		return err
	}

	labels := lo.Map(s.Labels, func(l dataset.LabelCount, _ int) []string {
		return []string{strconv.Itoa(l.Label), strconv.Itoa(l.Count), fmt.Sprintf("%.2f%%", l.Percent)}
	})
	if err := renderTable(w, []string{"Label", "Count", "Percent"}, labels); err != nil {
		return err
	}

	if len(s.Groups) > 0 {
		groups := lo.Map(s.Groups, func(g dataset.GroupStats, _ int) []string {
			return []string{g.Column, strconv.Itoa(g.Label), fmtFloat(g.Min), fmtFloat(g.Max), fmtFloat(g.Mean)}
		})
		if err := renderTable(w, []string{"Column", "Label", "Min", "Max", "Mean"}, groups); err != nil {
			return err
		}
	}

	for _, ct := range s.Crosstabs {
		header := append([]string{ct.Column}, lo.Map(ct.Labels, func(l int, _ int) string { return strconv.Itoa(l) })...)
		rows := lo.Map(ct.Values, func(v float64, i int) []string {
			row := []string{fmtC(v)}
			for j := range ct.Labels {
				row = append(row, strconv.Itoa(int(ct.Counts.At(i, j))))
			}
			return row
		})
		if err := renderTable(w, header, rows); err != nil {
			return err
		}
	}

	if s.Correlation != nil {
		last := len(s.CorrNames) - 1
		rows := make([][]string, 0, last)
		for i := 0; i < last; i++ {
			rows = append(rows, []string{s.CorrNames[i], fmtFloat(s.Correlation.At(i, last))})
		}
		if err := renderTable(w, []string{"Column", "Correlation with " + s.CorrNames[last]}, rows); err != nil {
			return err
		}
	}
	return nil
}
