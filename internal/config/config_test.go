package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/l3aro/go-control-tree/internal/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"MaxIterations", cfg.MaxIterations, 0},
		{"PruneUnreachable", cfg.PruneUnreachable, true},
		{"CheckInvariants", cfg.CheckInvariants, false},
		{"Workers", cfg.Workers, 0},
		{"CacheSize", cfg.CacheSize, 1024},
		{"StorePath", cfg.StorePath, ".gct/reports"},
		{"OutputFormat", cfg.OutputFormat, FormatText},
		{"SkipGenerated", cfg.SkipGenerated, true},
		{"Verbose", cfg.Verbose, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{"valid", func(c *Config) {}, ""},
		{"dot output", func(c *Config) { c.OutputFormat = FormatDOT }, ""},
		{"invalid output", func(c *Config) { c.OutputFormat = "xml" }, "invalid output_format"},
		{"negative iterations", func(c *Config) { c.MaxIterations = -1 }, "max_iterations"},
		{"negative workers", func(c *Config) { c.Workers = -2 }, "workers"},
		{"negative cache", func(c *Config) { c.CacheSize = -1 }, "cache_size"},
		{"missing store", func(c *Config) { c.StorePath = "" }, "store_path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GCT_MAX_ITERATIONS", "500")
	t.Setenv("GCT_WORKERS", "3")
	t.Setenv("GCT_PRUNE_UNREACHABLE", "false")
	t.Setenv("GCT_CHECK_INVARIANTS", "yes")
	t.Setenv("GCT_OUTPUT_FORMAT", "JSON")
	t.Setenv("GCT_STORE_PATH", "/tmp/reports")
	t.Setenv("GCT_VERBOSE", "1")

	cfg := DefaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.MaxIterations != 500 {
		t.Errorf("MaxIterations = %d, want 500", cfg.MaxIterations)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if cfg.PruneUnreachable {
		t.Error("PruneUnreachable should be false")
	}
	if !cfg.CheckInvariants {
		t.Error("CheckInvariants should be true")
	}
	if cfg.OutputFormat != FormatJSON {
		t.Errorf("OutputFormat = %s, want json", cfg.OutputFormat)
	}
	if cfg.StorePath != "/tmp/reports" {
		t.Errorf("StorePath = %s", cfg.StorePath)
	}
	if !cfg.Verbose {
		t.Error("Verbose should be true")
	}
}

func TestEnvOverridesInvalidInt(t *testing.T) {
	t.Setenv("GCT_WORKERS", "many")

	err := applyEnvOverrides(DefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "GCT_WORKERS") {
		t.Errorf("applyEnvOverrides() error = %v, want GCT_WORKERS error", err)
	}
}

func TestLoadLayers(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(project)

	global := DefaultConfig()
	global.Workers = 2
	global.OutputFormat = FormatYAML
	if err := global.Save(filepath.Join(home, ".gct", "config.yaml")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := os.MkdirAll(".gct", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(".gct/config.yaml", []byte("output_format: dot\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GCT_CACHE_SIZE", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2 from global config", cfg.Workers)
	}
	if cfg.OutputFormat != FormatDOT {
		t.Errorf("OutputFormat = %s, want dot from project config", cfg.OutputFormat)
	}
	if cfg.CacheSize != 7 {
		t.Errorf("CacheSize = %d, want 7 from environment", cfg.CacheSize)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() on a missing file should fail")
	}

	if err := os.WriteFile(path, []byte("output_format: html\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil || !strings.Contains(err.Error(), "invalid output_format") {
		t.Errorf("LoadFromFile() error = %v, want validation error", err)
	}

	if err := os.WriteFile(path, []byte("max_iterations: 9\ncheck_invariants: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	opts := cfg.AnalysisOptions(log.Nop())
	if opts.MaxIterations != 9 || !opts.CheckInvariants || !opts.PruneUnreachable {
		t.Errorf("AnalysisOptions() = %+v", opts)
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.LoggerConfig().Level; got != log.InfoLevel {
		t.Errorf("LoggerConfig().Level = %v, want INFO", got)
	}
	cfg.Verbose = true
	cfg.JSONLogs = true
	lc := cfg.LoggerConfig()
	if lc.Level != log.DebugLevel || !lc.JSONOutput {
		t.Errorf("LoggerConfig() = %+v", lc)
	}
}
