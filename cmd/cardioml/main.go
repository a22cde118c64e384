package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ezoic/cardioml/config"
	"github.com/ezoic/cardioml/dataset"
	"github.com/ezoic/cardioml/harness"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
)

var (
	cfg     *config.Config
	fetcher = dataset.NewFetcher()
)

var rootCmd = &cobra.Command{
	Use:           "cardioml",
	Short:         "Compare classifiers on the heart-disease and arrhythmia datasets.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		var err error
		if cfg, err = config.Load(path, cmd.Flags()); err != nil {
			return err
		}
		log.SetupLogger(cfg.Log.Level)
		return nil
	},
}

var heartCmd = &cobra.Command{
	Use:   "heart",
	Short: "Fit the classifier menu on the heart-disease table.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if source, _ := cmd.Flags().GetString("data"); source != "" {
			cfg.Heart.Source = source
		}
		d, err := fetcher.LoadHeart(cmd.Context(), cfg.Heart.Source)
		if err != nil {
			return err
		}
		run, err := harness.NewRun(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		_, err = run.Heart(cmd.Context(), d)
		return err
	},
}

var arrhythmiaCmd = &cobra.Command{
	Use:   "arrhythmia",
	Short: "Reduce the arrhythmia table and sweep SVM kernels and C.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if source, _ := cmd.Flags().GetString("data"); source != "" {
			cfg.Arrhythmia.Source = source
		}
		d, err := fetcher.LoadArrhythmia(cmd.Context(), cfg.Arrhythmia.Source)
		if err != nil {
			return err
		}
		run, err := harness.NewRun(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		_, err = run.Arrhythmia(cmd.Context(), d)
		return err
	},
}

var describeCmd = &cobra.Command{
	Use:       "describe <heart|arrhythmia>",
	Short:     "Print descriptive statistics and write exploratory charts.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"heart", "arrhythmia"},
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("data")
		var (
			d   *dataset.Dataset
			err error
		)
		switch args[0] {
		case "heart":
			if source == "" {
				source = cfg.Heart.Source
			}
			d, err = fetcher.LoadHeart(cmd.Context(), source)
		default:
			if source == "" {
				source = cfg.Arrhythmia.Source
			}
			d, err = fetcher.LoadArrhythmia(cmd.Context(), source)
		}
		if err != nil {
			return err
		}
		run, err := harness.NewRun(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		_, err = run.Describe(cmd.Context(), d)
		return err
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to a YAML configuration file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("plots-dir", "", "write PNG charts into this directory")
	flags.Int("workers", 0, "worker goroutines for the sweep and the forest (0 = number of CPUs)")
	flags.Int("cv-folds", 0, "cross-validate the heart menu with this many folds (0 disables)")

	for _, cmd := range []*cobra.Command{heartCmd, arrhythmiaCmd, describeCmd} {
		cmd.Flags().String("data", "", "dataset path or URL, overriding the configuration")
		rootCmd.AddCommand(cmd)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.LogError(err, "cardioml failed")
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
