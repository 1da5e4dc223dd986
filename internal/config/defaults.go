package config

// Default tolerance and threshold values shared by config, CLI, and API defaults.
const (
	DefaultAlgorithm    = "ms2query"
	DefaultMZTolerance  = 0.01 // Da
	DefaultRTTolerance  = 30.0 // seconds
	DefaultMinIntensity = 100.0
	DefaultMinScore     = 0.0
	DefaultTopN         = 10
)

// Algorithms lists the supported matching algorithm names.
var Algorithms = []string{"ms2query", "dot_product", "cosine", "modified_cosine"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/mzmatch/data/jobs.db"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/mzmatch/uploads"
	}
	if cfg.Storage.ResultsDir == "" {
		cfg.Storage.ResultsDir = "/usr/local/var/mzmatch/results"
	}
	if cfg.Matching.Algorithm == "" {
		cfg.Matching.Algorithm = DefaultAlgorithm
	}
	if cfg.Matching.MZTolerance == 0 {
		cfg.Matching.MZTolerance = DefaultMZTolerance
	}
	if cfg.Matching.RTTolerance == 0 {
		cfg.Matching.RTTolerance = DefaultRTTolerance
	}
	if cfg.Matching.TopN == 0 {
		cfg.Matching.TopN = DefaultTopN
	}
	if cfg.Extraction.MZTolerance == 0 {
		cfg.Extraction.MZTolerance = DefaultMZTolerance
	}
	if cfg.Extraction.RTTolerance == 0 {
		cfg.Extraction.RTTolerance = DefaultRTTolerance
	}
	if cfg.Extraction.MinIntensity == 0 {
		cfg.Extraction.MinIntensity = DefaultMinIntensity
	}
	if cfg.Model.Dimensions == 0 {
		cfg.Model.Dimensions = 512
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".mzml", ".mzxml"}
	}
}
