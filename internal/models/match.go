package models

// CandidateMetadata carries compound identifiers copied from the library entry.
type CandidateMetadata struct {
	PrecursorMZ   *float64 `json:"precursor_mz,omitempty"`
	RetentionTime *float64 `json:"retention_time,omitempty"`
	SMILES        string   `json:"smiles,omitempty"`
	InChI         string   `json:"inchi,omitempty"`
	InChIKey      string   `json:"inchikey,omitempty"`
	Analog        bool     `json:"analog,omitempty"`
}

// MatchCandidate is one scored library hit for a query spectrum.
type MatchCandidate struct {
	LibraryID    string            `json:"library_id"`
	CompoundName string            `json:"compound_name,omitempty"`
	Score        float64           `json:"score"`
	Algorithm    string            `json:"algorithm"`
	MatchedPeaks int               `json:"matched_peaks"`
	TotalPeaks   int               `json:"total_peaks"`
	Metadata     CandidateMetadata `json:"metadata"`
}

// MatchResult holds the ranked candidate list for one query spectrum.
// Error is set when the query was skipped due to a scoring failure; the
// batch continues and the failed query stays visible in the result set.
type MatchResult struct {
	QueryIndex    int              `json:"query_index"`
	FeatureName   string           `json:"feature_name"`
	PrecursorMZ   float64          `json:"precursor_mz"`
	RetentionTime float64          `json:"retention_time"`
	Matches       []MatchCandidate `json:"matches"`
	BestMatch     *MatchCandidate  `json:"best_match,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// AnnotatedFeature joins a feature with its best-supported identification.
type AnnotatedFeature struct {
	FeatureName     string           `json:"feature_name"`
	Feature         *Feature         `json:"feature,omitempty"`
	PrecursorMZ     float64          `json:"precursor_mz"`
	RetentionTime   float64          `json:"retention_time"`
	Algorithm       string           `json:"algorithm"`
	Matches         []MatchCandidate `json:"matches"`
	BestMatch       *MatchCandidate  `json:"best_match,omitempty"`
	MatchCount      int              `json:"match_count"`
	ConfidenceScore float64          `json:"confidence_score"`
	Error           string           `json:"error,omitempty"`
}

// MatchSummary holds run-level statistics over all annotated features.
type MatchSummary struct {
	TotalFeatures         int            `json:"total_features"`
	MatchedFeatures       int            `json:"matched_features"`
	MatchRate             float64        `json:"match_rate"`
	HighConfidenceMatches int            `json:"high_confidence_matches"`
	AverageConfidence     float64        `json:"average_confidence_score"`
	AlgorithmsUsed        map[string]int `json:"algorithms_used"`
	SkippedQueries        int            `json:"skipped_queries"`
}
