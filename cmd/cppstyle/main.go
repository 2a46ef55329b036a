// Command cppstyle checks C++ sources against the project style rules.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cppstyle/internal/analyzer"
	"cppstyle/internal/cache"
	"cppstyle/internal/config"
	"cppstyle/internal/logging"
	"cppstyle/internal/rules"
)

const version = "0.4.0"

var (
	// Global flags
	verbose bool
	cfgFile string

	// Logger
	logger *zap.Logger

	// exitCode is set by subcommands; main exits with it after cobra
	// teardown so PostRun hooks still fire.
	exitCode int
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "cppstyle",
	Short: "cppstyle - C++ coding style conformance checker",
	Long: `cppstyle checks C++ sources against the project's style guide:
naming conventions, member ordering and forbidden constructs.

It parses each file into a lightweight structural model, evaluates the
registered rules against it and reports violations deterministically.
External analyzers (clang-tidy, cppcheck) can be merged into the same
report; cppstyle never rewrites source files.

Exit codes: 0 clean, 1 violations found, 2 internal or unparseable input.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// versionCmd prints the build version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cppstyle version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cppstyle %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose diagnostics")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to cppstyle.yaml")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cppstyle: %v\n", err)
		if exitCode == 0 {
			exitCode = 2
		}
	}
	os.Exit(exitCode)
}

// setup loads configuration and builds the frozen rule registry. Shared by
// check and watch. Configuration errors are fatal before any file is read.
func setup(cmd *cobra.Command) (*config.Config, *rules.Registry, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	// --category narrows the run to the named categories only.
	if len(flagCategories) > 0 {
		enabled := map[string]bool{
			"naming": false, "structure": false, "forbidden": false, "ordering": false,
		}
		for _, c := range flagCategories {
			enabled[c] = true
		}
		cfg.Categories = enabled
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	if err := logging.Initialize(".", cfg.Log.DebugMode); err != nil {
		return nil, nil, err
	}
	logging.Boot("cppstyle %s starting", version)

	reg, err := rules.FilteredRegistry(cfg.Categories)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Rules.CustomDir != "" {
		if err := rules.LoadCustomRules(reg, cfg.Rules.CustomDir); err != nil {
			return nil, nil, err
		}
	}
	reg.Freeze()
	logger.Debug("registry ready", zap.Int("rules", reg.Len()))
	return cfg, reg, nil
}

// openCache opens the result cache when enabled, honoring --no-cache.
func openCache(cfg *config.Config, noCache bool) (*cache.Store, error) {
	if noCache || !cfg.Cache.Enabled {
		return nil, nil
	}
	return cache.Open(cfg.Cache.Path)
}

// buildAnalyzers materializes enabled external analyzers in name order so
// their merge position is stable across runs.
func buildAnalyzers(cfg *config.Config) []*analyzer.Analyzer {
	names := make([]string, 0, len(cfg.Analyzers))
	for name, a := range cfg.Analyzers {
		if a.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]*analyzer.Analyzer, 0, len(names))
	for _, name := range names {
		a := cfg.Analyzers[name]
		out = append(out, &analyzer.Analyzer{Name: name, Command: a.Command, Args: a.Args})
	}
	return out
}
