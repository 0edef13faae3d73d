package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-control-tree/internal/log"
	"github.com/l3aro/go-control-tree/pkg/structural"
)

// OutputFormat selects how reports are printed.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
	FormatDOT  OutputFormat = "dot"
)

// Config holds all configuration for go-control-tree
type Config struct {
	// Analysis settings
	MaxIterations    int  `yaml:"max_iterations" env:"GCT_MAX_ITERATIONS"`
	PruneUnreachable bool `yaml:"prune_unreachable" env:"GCT_PRUNE_UNREACHABLE"`
	CheckInvariants  bool `yaml:"check_invariants" env:"GCT_CHECK_INVARIANTS"`

	// Workers bounds concurrent analyses in scan; 0 uses every CPU
	Workers int `yaml:"workers" env:"GCT_WORKERS"`
	// CacheSize is the number of control trees kept for identical CFGs
	CacheSize int `yaml:"cache_size" env:"GCT_CACHE_SIZE"`

	// StorePath is the report database directory
	StorePath string `yaml:"store_path" env:"GCT_STORE_PATH"`

	OutputFormat OutputFormat `yaml:"output_format" env:"GCT_OUTPUT_FORMAT"`

	// Source scanning
	SkipTests     bool `yaml:"skip_tests" env:"GCT_SKIP_TESTS"`
	SkipGenerated bool `yaml:"skip_generated" env:"GCT_SKIP_GENERATED"`

	// Logging
	Verbose  bool `yaml:"verbose" env:"GCT_VERBOSE"`
	JSONLogs bool `yaml:"json_logs" env:"GCT_JSON_LOGS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxIterations:    0,
		PruneUnreachable: true,
		CheckInvariants:  false,
		Workers:          0,
		CacheSize:        1024,
		StorePath:        ".gct/reports",
		OutputFormat:     FormatText,
		SkipTests:        false,
		SkipGenerated:    true,
		Verbose:          false,
		JSONLogs:         false,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.gct/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gct/config.yaml"
	}
	return filepath.Join(home, ".gct", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.gct/config.yaml)
func ProjectConfigFilePath() string {
	return ".gct/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.gct/config.yaml)
// 3. Global config (~/.gct/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	ints := []struct {
		env string
		dst *int
	}{
		{"GCT_MAX_ITERATIONS", &cfg.MaxIterations},
		{"GCT_WORKERS", &cfg.Workers},
		{"GCT_CACHE_SIZE", &cfg.CacheSize},
	}
	for _, o := range ints {
		if v := os.Getenv(o.env); v != "" {
			i, ok := parseInt(v)
			if !ok {
				return fmt.Errorf("%s: invalid integer %q", o.env, v)
			}
			*o.dst = i
		}
	}

	bools := []struct {
		env string
		dst *bool
	}{
		{"GCT_PRUNE_UNREACHABLE", &cfg.PruneUnreachable},
		{"GCT_CHECK_INVARIANTS", &cfg.CheckInvariants},
		{"GCT_SKIP_TESTS", &cfg.SkipTests},
		{"GCT_SKIP_GENERATED", &cfg.SkipGenerated},
		{"GCT_VERBOSE", &cfg.Verbose},
		{"GCT_JSON_LOGS", &cfg.JSONLogs},
	}
	for _, o := range bools {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = parseBool(v)
		}
	}

	if v := os.Getenv("GCT_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("GCT_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(strings.ToLower(v))
	}
	return nil
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case FormatText, FormatJSON, FormatYAML, FormatDOT:
	default:
		return fmt.Errorf("invalid output_format: %s (must be text, json, yaml or dot)", c.OutputFormat)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative")
	}
	if c.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}
	return nil
}

// AnalysisOptions converts the analysis settings for structural.Analyze.
func (c *Config) AnalysisOptions(logger log.Logger) structural.Options {
	return structural.Options{
		MaxIterations:    c.MaxIterations,
		PruneUnreachable: c.PruneUnreachable,
		CheckInvariants:  c.CheckInvariants,
		Logger:           logger,
	}
}

// LoggerConfig returns the logger settings implied by Verbose and JSONLogs.
func (c *Config) LoggerConfig() log.LoggerConfig {
	level := log.InfoLevel
	if c.Verbose {
		level = log.DebugLevel
	}
	return log.LoggerConfig{Level: level, JSONOutput: c.JSONLogs}
}

// parseInt attempts to parse a string as int
func parseInt(s string) (int, bool) {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0, false
	}
	return i, true
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
