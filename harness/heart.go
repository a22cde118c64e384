package harness

import (
	"context"
	"fmt"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/dataset"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
	"github.com/ezoic/cardioml/preprocessing"
	"github.com/ezoic/cardioml/sklearn/model_selection"
	"github.com/ezoic/cardioml/sklearn/pipeline"
)

// HeartReport is the outcome of the heart-disease comparison.
type HeartReport struct {
	Data    *Prepared
	Results []*ModelResult
}

// heartSteps builds an unfitted preprocessing chain. Imputation is only
// added when the table has missing cells.
func (r *Run) heartSteps(withImputer bool) []pipeline.Step {
	var steps []pipeline.Step
	if withImputer {
		steps = append(steps, pipeline.Step{Name: "impute", Estimator: preprocessing.NewSimpleImputer(preprocessing.StrategyMedian)})
	}
	var scaler model.Transformer = preprocessing.NewStandardScalerDefault()
	if r.Config.Heart.Scaler == "minmax" {
		scaler = preprocessing.NewMinMaxScalerDefault()
	}
	return append(steps, pipeline.Step{Name: "scale", Estimator: scaler})
}

// Heart runs the classifier menu on the heart table: a seeded split, a
// scaler fitted on the training rows only, then every selected classifier.
// With cv_folds >= 2 each classifier is also cross-validated on the whole
// table, refitting the scaler inside every fold.
func (r *Run) Heart(ctx context.Context, d *dataset.Dataset) (*HeartReport, error) {
	cfg := r.Config.Heart
	r.logger.Info("Heart comparison",
		log.DatasetKey, d.Name,
		log.SamplesKey, d.NSamples(),
		log.FeaturesKey, d.NFeatures(),
	)

	split, err := model_selection.TrainTestSplit(d.NSamples(), cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, err
	}
	missing := d.HasMissing()
	if missing {
		r.logger.Warn("Heart table has missing cells; imputing with the training median", log.DatasetKey, d.Name)
	}
	data, err := prepare(ctx, d, split, pipeline.New(r.heartSteps(missing)...))
	if err != nil {
		return nil, err
	}

	specs, err := SelectModels(Menu(MenuOptions{
		Neighbors:   cfg.Neighbors,
		ForestTrees: cfg.ForestTrees,
		Seed:        cfg.Seed,
		Workers:     r.Config.Workers,
	}), cfg.Models)
	if err != nil {
		return nil, err
	}
	results, err := EvaluateAll(ctx, specs, data)
	if err != nil {
		return nil, err
	}

	if cfg.CVFolds >= 2 {
		folds, err := model_selection.NewKFold(cfg.CVFolds, true, cfg.Seed).Split(d.NSamples())
		if err != nil {
			return nil, err
		}
		for i, spec := range specs {
			factory := func() model.Classifier {
				steps := append(r.heartSteps(missing), pipeline.Step{Name: "clf", Estimator: spec.New()})
				return pipeline.New(steps...)
			}
			scores, err := model_selection.CrossValScore(ctx, factory, d.X, d.Y, folds, r.Config.Workers)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: cross-validation", spec.Name)
			}
			results[i].CVScores = scores
		}
	}

	rep := &HeartReport{Data: data, Results: results}
	if err := r.renderHeart(rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *Run) renderHeart(rep *HeartReport) error {
	if _, err := fmt.Fprintf(r.Out, "Heart disease: %d train rows, %d test rows, %d features\n",
		len(rep.Data.YTrain), len(rep.Data.YTest), rep.Data.NFeatures()); err != nil {
		return err
	}
	if err := RenderModels(r.Out, rep.Results); err != nil {
		return err
	}
	for _, res := range rep.Results {
		if err := RenderModelDetail(r.Out, res); err != nil {
			return err
		}
	}
	return nil
}
