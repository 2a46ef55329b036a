// Package config loads cppstyle configuration with koanf layering:
// built-in defaults, then cppstyle.yaml, then CPPSTYLE_* environment
// variables, then explicitly-set command line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names searched in the working directory.
const (
	ConfigFileName    = "cppstyle.yaml"
	ConfigFileNameAlt = "cppstyle.yml"
)

// Defaults.
const (
	DefaultFormat      = "human"
	DefaultFileTimeout = "10s"
	DefaultCachePath   = ".cppstyle/cache.db"
)

// knownCategories are the rule categories the `categories` map may toggle.
var knownCategories = map[string]bool{
	"naming": true, "structure": true, "forbidden": true, "ordering": true,
}

// AnalyzerConfig configures one external analyzer.
type AnalyzerConfig struct {
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
	Enabled bool     `koanf:"enabled"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// RulesConfig configures rule loading.
type RulesConfig struct {
	// CustomDir holds yaegi-interpreted Go rule snippets.
	CustomDir string `koanf:"custom_dir"`
}

// LogConfig configures debug logging.
type LogConfig struct {
	DebugMode bool `koanf:"debug_mode"`
}

// Config is the resolved cppstyle configuration.
type Config struct {
	// Categories toggles rule categories; missing entries default to on.
	Categories map[string]bool `koanf:"categories"`

	// Workers bounds the parallel per-file tasks; 0 means GOMAXPROCS.
	Workers int `koanf:"workers"`

	// FileTimeout bounds one file's parse+evaluate, as a duration string.
	FileTimeout string `koanf:"file_timeout"`

	// Extensions overrides the file extensions picked up from directories.
	Extensions []string `koanf:"extensions"`

	// Format is the output mode: human or json.
	Format string `koanf:"format"`

	// Color enables styled human output.
	Color bool `koanf:"color"`

	Rules     RulesConfig               `koanf:"rules"`
	Cache     CacheConfig               `koanf:"cache"`
	Analyzers map[string]AnalyzerConfig `koanf:"analyzers"`
	Log       LogConfig                 `koanf:"log"`
}

// Load resolves the configuration. cfgFile may be empty, in which case
// cppstyle.yaml / cppstyle.yml in the working directory are tried. flags may
// be nil; only explicitly-set flags override lower layers.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"workers":      0,
		"file_timeout": DefaultFileTimeout,
		"format":       DefaultFormat,
		"color":        true,
		"cache.enabled": false,
		"cache.path":    DefaultCachePath,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file.
	if cfgFile == "" {
		cfgFile = findConfigFile(".")
	}
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
		}
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment (CPPSTYLE_FILE_TIMEOUT -> file_timeout).
	if err := k.Load(env.Provider("CPPSTYLE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "CPPSTYLE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, highest priority.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects invalid configuration. Configuration errors are fatal
// before any file is processed.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Format != "human" && c.Format != "json" {
		return fmt.Errorf("format must be human or json, got %q", c.Format)
	}
	if _, err := c.Timeout(); err != nil {
		return fmt.Errorf("invalid file_timeout %q: %w", c.FileTimeout, err)
	}
	for cat := range c.Categories {
		if !knownCategories[cat] {
			return fmt.Errorf("unknown rule category %q", cat)
		}
	}
	for name, a := range c.Analyzers {
		if a.Enabled && a.Command == "" {
			return fmt.Errorf("analyzer %q enabled without a command", name)
		}
	}
	return nil
}

// Timeout parses the per-file timeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.FileTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.FileTimeout)
}

// findConfigFile locates cppstyle.yaml or cppstyle.yml in dir.
// Returns empty string if neither exists.
func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
