// Package pipeline chains transformers and a final classifier so that every
// step is fitted on the training rows and replayed unchanged on test rows.
// This provides the same API as sklearn.pipeline.Pipeline.
package pipeline

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
)

var globalProvider = log.DefaultProvider()

// Step represents a single step in the pipeline.
// Each step is a tuple of (name, transformer/estimator).
type Step struct {
	Name      string      // Name of this step (for identification)
	Estimator interface{} // model.Transformer, model.SupervisedTransformer or model.Classifier
}

// Pipeline chains multiple transforms and optionally a final estimator.
// Intermediate steps must be transformers. The final step can be a
// transformer or a classifier.
type Pipeline struct {
	state  *model.StateManager
	logger log.Logger

	steps   []Step
	verbose bool // log elapsed time per step

	namedSteps_ map[string]interface{}
}

// New creates a new Pipeline with the given steps.
// This is equivalent to sklearn.pipeline.Pipeline(steps)
func New(steps ...Step) *Pipeline {
	namedSteps := make(map[string]interface{})
	for _, step := range steps {
		namedSteps[step.Name] = step.Estimator
	}

	pipeline := &Pipeline{
		steps:       steps,
		namedSteps_: namedSteps,
	}

	pipeline.state = model.NewStateManager()
	pipeline.logger = globalProvider.GetLoggerWithName("Pipeline")

	return pipeline
}

// Make is a convenience function similar to sklearn.pipeline.make_pipeline.
// Steps are named step1, step2, ...
func Make(estimators ...interface{}) *Pipeline {
	steps := make([]Step, len(estimators))
	for i, estimator := range estimators {
		steps[i] = Step{Name: fmt.Sprintf("step%d", i+1), Estimator: estimator}
	}
	return New(steps...)
}

// WithVerbose toggles per-step timing logs and returns p.
func (p *Pipeline) WithVerbose(verbose bool) *Pipeline {
	p.verbose = verbose
	return p
}

// fitStep fits one intermediate step and returns its output on Xt.
func (p *Pipeline) fitStep(step Step, Xt, y mat.Matrix) (mat.Matrix, error) {
	start := time.Now()
	var out mat.Matrix
	var err error

	switch t := step.Estimator.(type) {
	case model.Transformer:
		if err = t.Fit(Xt); err == nil {
			out, err = t.Transform(Xt)
		}
	case model.SupervisedTransformer:
		if y == nil {
			return nil, errors.NewValidationError("pipeline step", "supervised step needs labels", step.Name)
		}
		if err = t.Fit(Xt, y); err == nil {
			out, err = t.Transform(Xt)
		}
	default:
		return nil, errors.NewValidationError(
			"pipeline step",
			"all intermediate steps must be transformers",
			step.Name,
		)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fit step '%s'", step.Name)
	}

	if p.verbose {
		_, c := out.Dims()
		p.logger.Info("Pipeline step fitted",
			"step", step.Name,
			log.FeaturesKey, c,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return out, nil
}

// Fit trains the pipeline.
// Fit all the transformers one after the other and transform the
// data, then fit the final estimator.
func (p *Pipeline) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")
	if len(p.steps) == 0 {
		return errors.NewValueError("Pipeline.Fit", "pipeline has no steps")
	}

	Xt := X
	for i := 0; i < len(p.steps)-1; i++ {
		if Xt, err = p.fitStep(p.steps[i], Xt, y); err != nil {
			return err
		}
	}

	finalStep := p.steps[len(p.steps)-1]
	switch final := finalStep.Estimator.(type) {
	case model.Estimator:
		if err = final.Fit(Xt, y); err != nil {
			return errors.Wrapf(err, "failed to fit final step '%s'", finalStep.Name)
		}
	case model.Transformer:
		if err = final.Fit(Xt); err != nil {
			return errors.Wrapf(err, "failed to fit final step '%s'", finalStep.Name)
		}
	default:
		return errors.NewValidationError(
			"pipeline final step",
			"final step must have Fit method",
			finalStep.Name,
		)
	}

	p.state.SetFitted()
	return nil
}

// Predict applies transforms to the data, and predict with the final estimator.
func (p *Pipeline) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.Predict")
	if !p.state.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}

	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}

	finalStep := p.steps[len(p.steps)-1]
	if predictor, ok := finalStep.Estimator.(model.Predictor); ok {
		return predictor.Predict(Xt)
	}

	return nil, errors.NewValidationError(
		"pipeline final step",
		"final step must have Predict method for prediction",
		finalStep.Name,
	)
}

// Transform applies every step's Transform. Only valid if all steps are
// transformers.
func (p *Pipeline) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.Transform")
	if !p.state.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Transform")
	}

	Xt := X
	for _, step := range p.steps {
		transformer, ok := step.Estimator.(interface {
			Transform(mat.Matrix) (mat.Matrix, error)
		})
		if !ok {
			return nil, errors.NewValidationError(
				"pipeline step",
				"all steps must be transformers for Transform",
				step.Name,
			)
		}

		Xt, err = transformer.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to transform at step '%s'", step.Name)
		}
	}

	return Xt, nil
}

// FitTransform fits every step on X (and y for supervised steps) and returns
// the output of the last one. y may be nil when no step is supervised.
func (p *Pipeline) FitTransform(X, y mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.FitTransform")
	Xt := X
	for _, step := range p.steps {
		if Xt, err = p.fitStep(step, Xt, y); err != nil {
			return nil, err
		}
	}

	p.state.SetFitted()
	return Xt, nil
}

// PredictProba applies transforms to the data, and predict_proba with the final estimator.
func (p *Pipeline) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.PredictProba")
	if !p.state.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "PredictProba")
	}

	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}

	finalStep := p.steps[len(p.steps)-1]
	if predictor, ok := finalStep.Estimator.(interface {
		PredictProba(mat.Matrix) (mat.Matrix, error)
	}); ok {
		return predictor.PredictProba(Xt)
	}

	return nil, errors.NewValidationError(
		"pipeline final step",
		"final step must have PredictProba method",
		finalStep.Name,
	)
}

// Score returns the mean accuracy of Predict(X) against y.
func (p *Pipeline) Score(X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	return model.AccuracyScore("Pipeline.Score", pred, y)
}

// Classes returns the classes of the final classifier, or nil.
func (p *Pipeline) Classes() []int {
	if len(p.steps) == 0 {
		return nil
	}
	if clf, ok := p.steps[len(p.steps)-1].Estimator.(model.Classifier); ok {
		return clf.Classes()
	}
	return nil
}

// GetParams returns the parameters of the pipeline, with each step's
// parameters prefixed by "<step>__".
func (p *Pipeline) GetParams() map[string]interface{} {
	params := make(map[string]interface{})
	params["verbose"] = p.verbose

	for _, step := range p.steps {
		if paramsGetter, ok := step.Estimator.(model.ParameterGetter); ok {
			for key, value := range paramsGetter.GetParams() {
				params[fmt.Sprintf("%s__%s", step.Name, key)] = value
			}
		}
	}

	return params
}

// NamedSteps returns the steps as a map for easy access by name.
func (p *Pipeline) NamedSteps() map[string]interface{} {
	return p.namedSteps_
}

// Steps returns the list of steps.
func (p *Pipeline) Steps() []Step {
	steps := make([]Step, len(p.steps))
	copy(steps, p.steps)
	return steps
}

// transform applies all transforms except the final estimator.
func (p *Pipeline) transform(X mat.Matrix) (mat.Matrix, error) {
	Xt := X
	var err error

	for i := 0; i < len(p.steps)-1; i++ {
		step := p.steps[i]
		transformer, ok := step.Estimator.(interface {
			Transform(mat.Matrix) (mat.Matrix, error)
		})
		if !ok {
			return nil, errors.NewValidationError(
				"pipeline step",
				"intermediate steps must be transformers",
				step.Name,
			)
		}

		Xt, err = transformer.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to transform at step '%s'", step.Name)
		}
	}

	return Xt, nil
}
