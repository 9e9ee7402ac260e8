// Package config provides unified configuration loading for the corpus engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the corpus engine.
type Config struct {
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Classify      ClassifyConfig      `yaml:"classify"`
	Extract       ExtractConfig       `yaml:"extract"`
	Fetch         FetchConfig         `yaml:"fetch"`
	Visual        VisualConfig        `yaml:"visual"`
	Output        OutputConfig        `yaml:"output"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PipelineConfig holds worker-pool and scheduling settings.
type PipelineConfig struct {
	Workers        int           `yaml:"workers"`
	Strategy       string        `yaml:"strategy"` // fast, vlm, or hybrid
	Timeout        time.Duration `yaml:"timeout"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
	StartBarrierAt time.Time     `yaml:"start_barrier_at"` // zero disables the barrier
}

// ClassifyConfig holds keyword-density classifier thresholds. Thresholds apply
// to raw keyword scores, not normalized confidences.
type ClassifyConfig struct {
	SkipExtractionBelow  float64 `yaml:"skip_extraction_below"`
	DeepExtractionAbove  float64 `yaml:"deep_extraction_above"`
	SpecializationAbove  float64 `yaml:"specialization_above"`
}

// ExtractConfig holds entity recognition settings.
type ExtractConfig struct {
	CorpusDir           string  `yaml:"corpus_dir"`
	PatternCatalogPath  string  `yaml:"pattern_catalog_path"` // empty uses the built-in catalog
	PersonMinConfidence float64 `yaml:"person_min_confidence"`
}

// FetchConfig holds URL input-mode settings.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	UserAgent    string        `yaml:"user_agent"`
}

// VisualConfig holds visual-element queue settings.
type VisualConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Workers       int           `yaml:"workers"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DrainTimeout  time.Duration `yaml:"drain_timeout"`
	Tables        bool          `yaml:"tables"`
	Images        bool          `yaml:"images"`
}

// OutputConfig holds output layout settings.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Workers:      runtime.NumCPU(),
			Strategy:     "fast",
			Timeout:      10 * time.Minute,
			DrainTimeout: 120 * time.Second,
		},
		Classify: ClassifyConfig{
			SkipExtractionBelow: 5.0,
			DeepExtractionAbove: 60.0,
			SpecializationAbove: 40.0,
		},
		Extract: ExtractConfig{
			CorpusDir:           "corpus",
			PersonMinConfidence: 0.7,
		},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			MaxBodyBytes: 64 << 20,
			UserAgent:    "corpus-engine/1.0",
		},
		Visual: VisualConfig{
			Enabled:       true,
			Workers:       2,
			QueueCapacity: 256,
			DrainTimeout:  120 * time.Second,
			Tables:        true,
			Images:        true,
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Pipeline.Workers)
	}

	switch c.Pipeline.Strategy {
	case "fast", "vlm", "hybrid":
	default:
		return fmt.Errorf("invalid strategy: %s", c.Pipeline.Strategy)
	}

	if c.Extract.PersonMinConfidence < 0 || c.Extract.PersonMinConfidence > 1 {
		return fmt.Errorf("person_min_confidence must be in [0,1], got %f", c.Extract.PersonMinConfidence)
	}

	if c.Visual.Enabled && c.Visual.Workers < 1 {
		return fmt.Errorf("visual workers must be at least 1, got %d", c.Visual.Workers)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("CORPUS_DIR"); v != "" {
		cfg.Extract.CorpusDir = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
