package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cppstyle/internal/engine"
	"cppstyle/internal/report"
)

var (
	flagFormat     string
	flagWorkers    int
	flagColor      bool
	flagNoCache    bool
	flagCategories []string
)

// checkCmd runs the full pipeline once over the given inputs.
var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Check C++ sources for style violations",
	Long: `Checks the given files and directory roots. Directories are expanded
recursively to header/source files. Violations are printed in a fixed
order (file, line, column, rule registration order) so output diffs
cleanly across runs.

Examples:
  cppstyle check src/ include/
  cppstyle check --format json src/widget.cpp`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&flagFormat, "format", "human", "Output format: human or json")
	checkCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Parallel file workers (0 = all CPUs)")
	checkCmd.Flags().BoolVar(&flagColor, "color", true, "Colorize human output")
	checkCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the result cache")
	checkCmd.Flags().StringSliceVar(&flagCategories, "category", nil,
		"Check only these rule categories (repeatable)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, reg, err := setup(cmd)
	if err != nil {
		return err
	}

	store, err := openCache(cfg, flagNoCache)
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

	violations, stats, err := runner.Run(cmd.Context(), args)
	if err != nil {
		return err
	}
	logger.Debug("run complete",
		zap.Int("files", stats.FilesChecked),
		zap.Int("violations", len(violations)),
		zap.Int("cache_hits", stats.CacheHits),
		zap.Duration("duration", stats.Duration))

	reporter := report.NewReporter(report.Format(cfg.Format), cfg.Color, os.Stdout)
	code, err := reporter.Report(violations, stats.FilesChecked)
	if err != nil {
		return err
	}
	exitCode = code
	return nil
}
