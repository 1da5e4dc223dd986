package config

import "fmt"

// ValidationError reports a configuration value outside its valid domain.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// Validate checks matching parameter domains. A zero TopN is rejected rather
// than defaulted so that callers outside config loading get an explicit error.
func (m *MatchingConfig) Validate() error {
	if m.MZTolerance < 0.001 || m.MZTolerance > 1.0 {
		return &ValidationError{Field: "mz_tolerance", Message: "must be between 0.001 and 1.0 Da"}
	}
	if m.RTTolerance < 1.0 || m.RTTolerance > 300.0 {
		return &ValidationError{Field: "rt_tolerance", Message: "must be between 1 and 300 seconds"}
	}
	if m.MinScore < 0.0 || m.MinScore > 1.0 {
		return &ValidationError{Field: "min_score", Message: "must be between 0 and 1"}
	}
	if m.TopN < 1 || m.TopN > 100 {
		return &ValidationError{Field: "top_n", Message: "must be between 1 and 100"}
	}
	if m.Workers < 0 {
		return &ValidationError{Field: "workers", Message: "must not be negative"}
	}
	return nil
}

// Validate checks extraction parameter domains.
func (e *ExtractionConfig) Validate() error {
	if e.MZTolerance < 0.001 || e.MZTolerance > 1.0 {
		return &ValidationError{Field: "mz_tolerance", Message: "must be between 0.001 and 1.0 Da"}
	}
	if e.RTTolerance < 1.0 || e.RTTolerance > 300.0 {
		return &ValidationError{Field: "rt_tolerance", Message: "must be between 1 and 300 seconds"}
	}
	if e.MinIntensity < 0 {
		return &ValidationError{Field: "min_intensity", Message: "must not be negative"}
	}
	return nil
}
