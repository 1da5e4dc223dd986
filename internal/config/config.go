// Package config provides configuration loading and structs for the mzmatch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Matching   MatchingConfig   `yaml:"matching"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Model      ModelConfig      `yaml:"model"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the job database and file directories.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	UploadDir    string `yaml:"upload_dir"`
	ResultsDir   string `yaml:"results_dir"`
}

// MatchingConfig holds spectral matching settings.
type MatchingConfig struct {
	Algorithm   string  `yaml:"algorithm"`
	MZTolerance float64 `yaml:"mz_tolerance"` // Da
	RTTolerance float64 `yaml:"rt_tolerance"` // seconds
	MinScore    float64 `yaml:"min_score"`
	TopN        int     `yaml:"top_n"`
	Workers     int     `yaml:"workers"` // 0 = GOMAXPROCS
}

// ExtractionConfig holds MS2 extraction settings.
type ExtractionConfig struct {
	MZTolerance  float64 `yaml:"mz_tolerance"`
	RTTolerance  float64 `yaml:"rt_tolerance"`
	MinIntensity float64 `yaml:"min_intensity"`
}

// ModelConfig holds settings for the learned-ranking ONNX model.
type ModelConfig struct {
	Path       string `yaml:"path"`
	Dimensions int    `yaml:"dimensions"`
}

// WatchConfig holds upload directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and validates value domains. Returns an error if the file cannot
// be read or parsed, or a value is out of its valid domain.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Storage.ResultsDir = expandPath(cfg.Storage.ResultsDir, configDir)
	if cfg.Model.Path != "" {
		cfg.Model.Path = expandPath(cfg.Model.Path, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks all value domains.
func (c *Config) Validate() error {
	if err := c.Matching.Validate(); err != nil {
		return err
	}
	return c.Extraction.Validate()
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
