package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cppstyle/internal/engine"
	"cppstyle/internal/report"
	"cppstyle/internal/watch"
)

// watchCmd re-checks the inputs whenever a watched source changes.
var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-check sources on change",
	Long: `Runs a check over the inputs, then watches them and re-runs after each
change (debounced). Ctrl-C stops watching; the exit code reflects the
last completed run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, reg, err := setup(cmd)
	if err != nil {
		return err
	}

	store, err := openCache(cfg, false)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return err
	}

	runner := engine.NewRunner(reg, engine.Options{
		Workers:     cfg.Workers,
		FileTimeout: timeout,
		Extensions:  cfg.Extensions,
		Cache:       store,
		Analyzers:   buildAnalyzers(cfg),
	})

	ctx := cmd.Context()
	runOnce := func() {
		violations, stats, err := runner.Run(ctx, args)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("check failed", zap.Error(err))
			return
		}
		reporter := report.NewReporter(report.Format(cfg.Format), cfg.Color, os.Stdout)
		code, rerr := reporter.Report(violations, stats.FilesChecked)
		if rerr != nil {
			logger.Warn("report failed", zap.Error(rerr))
			return
		}
		exitCode = code
	}

	runOnce()

	extensions := cfg.Extensions
	if extensions == nil {
		extensions = engine.DefaultExtensions
	}
	w, err := watch.New(args, extensions, runOnce)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintln(os.Stderr, "watching for changes, Ctrl-C to stop")
	<-ctx.Done()
	return nil
}
