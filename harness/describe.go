package harness

import (
	"context"

	"github.com/samber/lo"

	"github.com/ezoic/cardioml/dataset"
	"github.com/ezoic/cardioml/pkg/log"
)

// maxHistograms bounds per-feature histograms; wider tables only get the
// label and correlation charts.
const maxHistograms = 40

// DescribeOptionsFor returns the summary options used for a dataset name.
func DescribeOptionsFor(name string) dataset.DescribeOptions {
	if name == "heart" {
		return dataset.DefaultHeartDescribe()
	}
	return dataset.DescribeOptions{Correlation: true}
}

// Describe renders the descriptive statistics of d and, when charts are
// enabled, its histograms, label distribution and correlation heatmap.
func (r *Run) Describe(ctx context.Context, d *dataset.Dataset) (*dataset.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := dataset.Describe(d, DescribeOptionsFor(d.Name))
	if err != nil {
		return nil, err
	}
	if err := RenderSummary(r.Out, s); err != nil {
		return nil, err
	}
	if r.Plots == nil {
		return s, nil
	}

	if d.NFeatures() <= maxHistograms {
		for _, name := range d.FeatureNames {
			values, err := d.Column(name)
			if err != nil {
				return nil, err
			}
			if _, err := r.Plots.Histogram(d.Name+"_"+name, values); err != nil {
				return nil, err
			}
		}
	}
	labels := lo.Map(s.Labels, func(l dataset.LabelCount, _ int) int { return l.Label })
	counts := lo.Map(s.Labels, func(l dataset.LabelCount, _ int) int { return l.Count })
	if _, err := r.Plots.LabelDistribution(d.Name, labels, counts); err != nil {
		return nil, err
	}
	if s.Correlation != nil {
		if _, err := r.Plots.CorrelationHeatmap(d.Name, s.CorrNames, s.Correlation); err != nil {
			return nil, err
		}
	}
	r.logger.Info("Charts written", log.DatasetKey, d.Name, "dir", r.Plots.Dir)
	return s, nil
}
