package log

// 構造化ログのキー
const (
	OperationKey  = "operation"
	PhaseKey      = "phase"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	ModelNameKey  = "model"
	ComponentKey  = "component"
	DurationMsKey = "duration_ms"
	PredsKey      = "predictions"
	ErrorKey      = "error"
	DatasetKey    = "dataset"
	KernelKey     = "kernel"
	CKey          = "C"
	AccuracyKey   = "accuracy"
	ClassesKey    = "classes"
	IterationsKey = "iterations"
)

// 値
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationLoad      = "load"
	OperationSweep     = "sweep"

	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
	PhaseEvaluation    = "evaluation"
)
