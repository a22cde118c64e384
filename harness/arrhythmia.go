package harness

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/dataset"
	"github.com/ezoic/cardioml/pkg/log"
	"github.com/ezoic/cardioml/preprocessing"
	"github.com/ezoic/cardioml/sklearn/decomposition"
	"github.com/ezoic/cardioml/sklearn/ensemble"
	"github.com/ezoic/cardioml/sklearn/feature_selection"
	"github.com/ezoic/cardioml/sklearn/model_selection"
	"github.com/ezoic/cardioml/sklearn/pipeline"
	"github.com/ezoic/cardioml/sklearn/svm"
)

// ArrhythmiaReport is the outcome of the arrhythmia comparison.
type ArrhythmiaReport struct {
	// OriginalFeatures counts the feature columns before the missing-ratio drop.
	OriginalFeatures int
	Data             *Prepared
	ClassWeights     map[int]float64

	Components *decomposition.ComponentSelection
	PCA        *Prepared
	Selected   *Prepared

	PCASweep      *SweepResult
	SelectedSweep *SweepResult
	// Final is the best sweep configuration refitted on its representation.
	Final *ModelResult
	// Menu holds the classifier menu fitted on the PCA matrix.
	Menu []*ModelResult
}

func classWeightMode(cfg string) string {
	if cfg == "none" {
		return ""
	}
	return cfg
}

// Arrhythmia runs the arrhythmia pipeline: a stratified split, a
// missing-ratio column drop, imputation and scaling fitted on the training
// rows, then PCA and importance-based selection, each followed by the SVM
// sweep. The best sweep cell is refitted for a full report.
func (r *Run) Arrhythmia(ctx context.Context, d *dataset.Dataset) (*ArrhythmiaReport, error) {
	cfg := r.Config.Arrhythmia
	cw := classWeightMode(cfg.ClassWeight)
	r.logger.Info("Arrhythmia comparison",
		log.DatasetKey, d.Name,
		log.SamplesKey, d.NSamples(),
		log.FeaturesKey, d.NFeatures(),
	)

	split, err := model_selection.StratifiedTrainTestSplit(d.Y, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, err
	}
	filter := preprocessing.NewMissingColumnFilter(cfg.MaxMissingRatio)
	chain := pipeline.New(
		pipeline.Step{Name: "drop", Estimator: filter},
		pipeline.Step{Name: "impute", Estimator: preprocessing.NewSimpleImputer(cfg.Imputer)},
		pipeline.Step{Name: "scale", Estimator: preprocessing.NewStandardScalerDefault()},
	)
	data, err := prepare(ctx, d, split, chain)
	if err != nil {
		return nil, err
	}
	data.FeatureNames = lo.Map(filter.KeptColumns(), func(j int, _ int) string { return d.FeatureNames[j] })
	r.logger.Info("Arrhythmia preprocessed",
		log.PhaseKey, log.PhasePreprocessing,
		"dropped", d.NFeatures()-data.NFeatures(),
		log.FeaturesKey, data.NFeatures(),
	)

	rep := &ArrhythmiaReport{OriginalFeatures: d.NFeatures(), Data: data}
	if cw != "" {
		rep.ClassWeights, err = preprocessing.ComputeClassWeight(cw, lo.Uniq(d.Y), data.YTrain)
		if err != nil {
			return nil, err
		}
	}

	if err := r.reduce(ctx, rep); err != nil {
		return nil, err
	}

	sweep := SweepOptions{
		Kernels:     r.Config.Sweep.Kernels,
		C:           r.Config.Sweep.C,
		MaxIter:     r.Config.Sweep.MaxIter,
		ClassWeight: cw,
		Workers:     r.Config.Workers,
	}
	if rep.PCASweep, err = SVMSweep(ctx, rep.PCA, sweep); err != nil {
		return nil, err
	}
	if rep.SelectedSweep, err = SVMSweep(ctx, rep.Selected, sweep); err != nil {
		return nil, err
	}
	if err := r.refitBest(ctx, rep, sweep); err != nil {
		return nil, err
	}

	if len(cfg.Models) > 0 {
		specs, err := SelectModels(Menu(MenuOptions{
			Neighbors:   r.Config.Heart.Neighbors,
			ForestTrees: cfg.SelectorTrees,
			Seed:        cfg.Seed,
			ClassWeight: cw,
			Workers:     r.Config.Workers,
		}), cfg.Models)
		if err != nil {
			return nil, err
		}
		if rep.Menu, err = EvaluateAll(ctx, specs, rep.PCA); err != nil {
			return nil, err
		}
	}

	if err := r.renderArrhythmia(rep); err != nil {
		return nil, err
	}
	if err := r.plotArrhythmia(rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// reduce fills the PCA and importance-selected representations.
func (r *Run) reduce(ctx context.Context, rep *ArrhythmiaReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := r.Config.Arrhythmia
	data := rep.Data

	sel, err := decomposition.SelectComponents(data.XTrain, cfg.VarianceThreshold)
	if err != nil {
		return err
	}
	rep.Components = sel
	pca := decomposition.NewPCA(sel.Count)
	train, err := pca.FitTransform(data.XTrain)
	if err != nil {
		return err
	}
	test, err := pca.Transform(data.XTest)
	if err != nil {
		return err
	}
	names := lo.Map(lo.Range(sel.Count), func(i int, _ int) string { return fmt.Sprintf("PC%d", i+1) })
	rep.PCA = data.WithFeatures(names, train, test)

	selector := feature_selection.NewSelectFromModel(
		ensemble.NewRandomForestClassifier(
			ensemble.WithNEstimators(cfg.SelectorTrees),
			ensemble.WithRFRandomState(cfg.SelectorSeed),
			ensemble.WithNJobs(r.Config.Workers),
		),
		feature_selection.WithThreshold(cfg.Threshold),
	)
	train, err = selector.FitTransform(data.XTrain, data.YTrainMatrix())
	if err != nil {
		return err
	}
	test, err = selector.Transform(data.XTest)
	if err != nil {
		return err
	}
	names = lo.Map(selector.SelectedFeatures(), func(j int, _ int) string { return data.FeatureNames[j] })
	rep.Selected = data.WithFeatures(names, train, test)

	r.logger.Info("Feature reduction",
		"pca_components", sel.Count,
		"selected_features", selector.NSelected(),
	)
	return nil
}

// refitBest refits the best cell of both sweeps; the PCA sweep wins ties.
func (r *Run) refitBest(ctx context.Context, rep *ArrhythmiaReport, opts SweepOptions) error {
	best, ok := rep.PCASweep.Best()
	data := rep.PCA
	if other, otherOK := rep.SelectedSweep.Best(); otherOK && (!ok || other.Accuracy > best.Accuracy) {
		best, ok, data = other, true, rep.Selected
	}
	if !ok {
		r.logger.Warn("Every sweep cell failed; no final model")
		return nil
	}
	spec := ModelSpec{
		Key:  ModelSVC,
		Name: fmt.Sprintf("SVM (%s, C=%s)", best.Kernel, fmtC(best.C)),
		New: func() model.Classifier {
			svmOpts := []svm.SVCOption{
				svm.WithKernel(best.Kernel),
				svm.WithC(best.C),
				svm.WithSVCClassWeight(opts.ClassWeight),
			}
			if opts.MaxIter > 0 {
				svmOpts = append(svmOpts, svm.WithMaxIter(opts.MaxIter))
			}
			return svm.NewSVC(svmOpts...)
		},
	}
	final, err := Evaluate(ctx, spec, data)
	if err != nil {
		return err
	}
	rep.Final = final
	return nil
}

func (r *Run) renderArrhythmia(rep *ArrhythmiaReport) error {
	w := r.Out
	data := rep.Data
	if _, err := fmt.Fprintf(w, "Arrhythmia: %d train rows, %d test rows; features %d -> %d after dropping sparse columns\n",
		len(data.YTrain), len(data.YTest), rep.OriginalFeatures, data.NFeatures()); err != nil {
		return err
	}
	if rep.ClassWeights != nil {
		labels := lo.Keys(rep.ClassWeights)
		sort.Ints(labels)
		rows := lo.Map(labels, func(l int, _ int) []string {
			return []string{strconv.Itoa(l), fmtFloat(rep.ClassWeights[l])}
		})
		if err := renderTable(w, []string{"Class", "Weight"}, rows); err != nil {
			return err
		}
	}
	if err := RenderComponents(w, rep.Components); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Importance selection kept %d of %d features\n", rep.Selected.NFeatures(), data.NFeatures()); err != nil {
		return err
	}

	for _, s := range []struct {
		title string
		res   *SweepResult
	}{{"PCA", rep.PCASweep}, {"Importance selection", rep.SelectedSweep}} {
		if _, err := fmt.Fprintf(w, "\nSVM accuracy on %s features (* = iteration limit reached)\n", s.title); err != nil {
			return err
		}
		if err := RenderSweep(w, s.res); err != nil {
			return err
		}
		if err := RenderBest(w, s.res); err != nil {
			return err
		}
	}

	if rep.Final != nil {
		if err := RenderModelDetail(w, rep.Final); err != nil {
			return err
		}
	}
	if len(rep.Menu) > 0 {
		if _, err := fmt.Fprintln(w, "\nClassifier menu on PCA features"); err != nil {
			return err
		}
		if err := RenderModels(w, rep.Menu); err != nil {
			return err
		}
	}
	return nil
}

func (r *Run) plotArrhythmia(rep *ArrhythmiaReport) error {
	if r.Plots == nil {
		return nil
	}
	sel := rep.Components
	if _, err := r.Plots.Curve("arrhythmia_pca_variance", "PCA variance", "cumulative ratio", sel.Cumulative, sel.Threshold); err != nil {
		return err
	}
	if _, err := r.Plots.Curve("arrhythmia_pca_eigen", "PCA eigenvalues", "eigenvalue", sel.Eigenvalues, 1); err != nil {
		return err
	}
	if _, err := r.Plots.LogXLines("arrhythmia_svm_pca", "SVM accuracy (PCA)", "C", "accuracy", rep.PCASweep.Series()); err != nil {
		r.logger.Warn("Sweep chart skipped", log.ErrorKey, err.Error())
	}
	if _, err := r.Plots.LogXLines("arrhythmia_svm_selected", "SVM accuracy (importance)", "C", "accuracy", rep.SelectedSweep.Series()); err != nil {
		r.logger.Warn("Sweep chart skipped", log.ErrorKey, err.Error())
	}
	return nil
}
