// Package config loads the run configuration from defaults, an optional YAML
// file, CARDIOML_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ezoic/cardioml/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. CARDIOML_LOG_LEVEL.
const EnvPrefix = "CARDIOML"

// Config is the complete run configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Workers    int              `mapstructure:"workers" validate:"gte=0"`
	Heart      HeartConfig      `mapstructure:"heart"`
	Arrhythmia ArrhythmiaConfig `mapstructure:"arrhythmia"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Plots      PlotsConfig      `mapstructure:"plots"`
}

// LogConfig sets the zerolog level of the run.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// HeartConfig drives the heart-disease comparison.
type HeartConfig struct {
	Source      string  `mapstructure:"source" validate:"required"`
	TestSize    float64 `mapstructure:"test_size" validate:"gt=0,lt=1"`
	Seed        int64   `mapstructure:"seed"`
	Scaler      string  `mapstructure:"scaler" validate:"oneof=standard minmax"`
	Neighbors   int     `mapstructure:"neighbors" validate:"gt=0"`
	ForestTrees int     `mapstructure:"forest_trees" validate:"gt=0"`
	// Models picks from the classifier menu: lr knn svc rf dt.
	Models []string `mapstructure:"models" validate:"min=1,dive,oneof=lr knn svc rf dt"`
	// CVFolds enables k-fold cross-validation of the menu when >= 2.
	CVFolds int `mapstructure:"cv_folds" validate:"eq=0|gte=2"`
}

// ArrhythmiaConfig drives the arrhythmia comparison.
type ArrhythmiaConfig struct {
	// Source is a path or URL; empty means the UCI URL.
	Source            string  `mapstructure:"source"`
	TestSize          float64 `mapstructure:"test_size" validate:"gt=0,lt=1"`
	Seed              int64   `mapstructure:"seed"`
	MaxMissingRatio   float64 `mapstructure:"max_missing_ratio" validate:"gte=0,lte=1"`
	Imputer           string  `mapstructure:"imputer" validate:"oneof=median mean"`
	ClassWeight       string  `mapstructure:"class_weight" validate:"oneof=balanced none"`
	VarianceThreshold float64 `mapstructure:"variance_threshold" validate:"gt=0,lte=1"`
	SelectorTrees     int     `mapstructure:"selector_trees" validate:"gt=0"`
	SelectorSeed      int64   `mapstructure:"selector_seed"`
	Threshold         string  `mapstructure:"threshold" validate:"oneof=mean median"`
	// Models are fitted on the PCA-reduced matrix; empty skips the menu.
	Models []string `mapstructure:"models" validate:"dive,oneof=lr knn svc rf dt"`
}

// SweepConfig is the SVM kernel × C grid.
type SweepConfig struct {
	Kernels []string  `mapstructure:"kernels" validate:"min=1,dive,oneof=linear rbf poly sigmoid"`
	C       []float64 `mapstructure:"c" validate:"min=1,dive,gt=0"`
	MaxIter int       `mapstructure:"max_iter" validate:"gt=0"`
}

// PlotsConfig enables PNG charts when Dir is set.
type PlotsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Enabled reports whether charts are written.
func (p PlotsConfig) Enabled() bool { return p.Dir != "" }

var defaults = map[string]interface{}{
	"log.level":                     "info",
	"workers":                       0,
	"heart.source":                  "heart_cleveland_upload.csv",
	"heart.test_size":               0.25,
	"heart.seed":                    42,
	"heart.scaler":                  "standard",
	"heart.neighbors":               5,
	"heart.forest_trees":            20,
	"heart.models":                  []string{"lr", "knn", "svc", "rf", "dt"},
	"heart.cv_folds":                0,
	"arrhythmia.source":             "",
	"arrhythmia.test_size":          0.3,
	"arrhythmia.seed":               43,
	"arrhythmia.max_missing_ratio":  0.4,
	"arrhythmia.imputer":            "median",
	"arrhythmia.class_weight":       "balanced",
	"arrhythmia.variance_threshold": 0.95,
	"arrhythmia.selector_trees":     20,
	"arrhythmia.selector_seed":      0,
	"arrhythmia.threshold":          "mean",
	"arrhythmia.models":             []string{"lr", "knn", "svc", "rf", "dt"},
	"sweep.kernels":                 []string{"linear", "rbf", "poly", "sigmoid"},
	"sweep.c":                       []float64{0.001, 0.01, 0.1, 1, 10, 100, 1000},
	"sweep.max_iter":                100000,
	"plots.dir":                     "",
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"log-level": "log.level",
	"workers":   "workers",
	"plots-dir": "plots.dir",
	"cv-folds":  "heart.cv_folds",
}

// Load reads the configuration. path may be empty; flags may be nil. Only
// flags the user changed override file and environment values.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: reading %s", path)
		}
	}
	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "config: binding --%s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: decoding")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint and reports the first failure as a
// ValidationError naming the configuration key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errors.NewValidationError(fieldKey(fe.Namespace()), "failed "+fe.Tag()+" "+fe.Param(), fe.Value())
	}
	return errors.Wrap(err, "config: validating")
}

// fieldKey turns "Config.Heart.TestSize" into "Heart.TestSize".
func fieldKey(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
