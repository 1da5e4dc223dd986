package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("default port should be 8080, got %d", cfg.Server.Port)
	}
	if cfg.Matching.Algorithm != "ms2query" {
		t.Errorf("default algorithm should be ms2query, got %s", cfg.Matching.Algorithm)
	}
	if cfg.Matching.MZTolerance != 0.01 {
		t.Errorf("default mz tolerance should be 0.01, got %f", cfg.Matching.MZTolerance)
	}
	if cfg.Extraction.MinIntensity != 100.0 {
		t.Errorf("default min intensity should be 100, got %f", cfg.Extraction.MinIntensity)
	}
	if cfg.Matching.TopN != 10 {
		t.Errorf("default top_n should be 10, got %d", cfg.Matching.TopN)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9090
matching:
  algorithm: cosine
  mz_tolerance: 0.05
  top_n: 5
storage:
  upload_dir: ./uploads
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port should be 9090, got %d", cfg.Server.Port)
	}
	if cfg.Matching.Algorithm != "cosine" {
		t.Errorf("algorithm should be cosine, got %s", cfg.Matching.Algorithm)
	}
	if cfg.Matching.TopN != 5 {
		t.Errorf("top_n should be 5, got %d", cfg.Matching.TopN)
	}
	// Relative ./ paths resolve against the config directory.
	if cfg.Storage.UploadDir != filepath.Join(dir, "uploads") {
		t.Errorf("upload dir not expanded: %s", cfg.Storage.UploadDir)
	}
	// Unset sections still get defaults.
	if cfg.Extraction.RTTolerance != 30.0 {
		t.Errorf("extraction rt tolerance default should apply, got %f", cfg.Extraction.RTTolerance)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestMatchingConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MatchingConfig
		wantErr bool
	}{
		{"valid", MatchingConfig{MZTolerance: 0.01, RTTolerance: 30, MinScore: 0.5, TopN: 10}, false},
		{"negative mz tolerance", MatchingConfig{MZTolerance: -0.01, RTTolerance: 30, TopN: 10}, true},
		{"mz tolerance too large", MatchingConfig{MZTolerance: 2.0, RTTolerance: 30, TopN: 10}, true},
		{"rt tolerance below range", MatchingConfig{MZTolerance: 0.01, RTTolerance: 0.5, TopN: 10}, true},
		{"min score above one", MatchingConfig{MZTolerance: 0.01, RTTolerance: 30, MinScore: 1.5, TopN: 10}, true},
		{"zero top_n", MatchingConfig{MZTolerance: 0.01, RTTolerance: 30, TopN: 0}, true},
		{"top_n too large", MatchingConfig{MZTolerance: 0.01, RTTolerance: 30, TopN: 200}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractionConfigValidate(t *testing.T) {
	bad := ExtractionConfig{MZTolerance: 0.01, RTTolerance: 30, MinIntensity: -1}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative min intensity")
	}
	ok := ExtractionConfig{MZTolerance: 0.01, RTTolerance: 30, MinIntensity: 0}
	if err := ok.Validate(); err != nil {
		t.Errorf("zero min intensity should be valid: %v", err)
	}
}
