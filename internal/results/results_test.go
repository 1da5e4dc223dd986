package results

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/mzmatch/mzmatch/internal/feature"
	"github.com/mzmatch/mzmatch/internal/models"
)

func candidate(score float64, matched, total int) models.MatchCandidate {
	return models.MatchCandidate{
		LibraryID:    "lib1",
		CompoundName: "caffeine",
		Score:        score,
		Algorithm:    "cosine",
		MatchedPeaks: matched,
		TotalPeaks:   total,
	}
}

func TestConfidenceNoMatchIsZero(t *testing.T) {
	if got := Confidence(nil, nil); got != 0.0 {
		t.Errorf("Confidence(nil, nil) = %f, want exactly 0", got)
	}
}

func TestConfidenceSingleFullCoverage(t *testing.T) {
	best := candidate(0.9, 4, 4)
	got := Confidence([]models.MatchCandidate{best}, &best)
	// Single candidate, full coverage: score passes through unchanged.
	if math.Abs(got-0.9) > 1e-12 {
		t.Errorf("Confidence = %f, want 0.9", got)
	}
}

func TestConfidenceCoveragePenalty(t *testing.T) {
	best := candidate(0.9, 1, 4)
	got := Confidence([]models.MatchCandidate{best}, &best)
	want := 0.9 * (0.5 + 0.5*0.25)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Confidence = %f, want %f", got, want)
	}
}

func TestConfidenceBoostNeverNegative(t *testing.T) {
	// Top-3 average is below the best score, so the boost clamps to zero
	// rather than dragging the confidence down.
	best := candidate(0.9, 4, 4)
	matches := []models.MatchCandidate{best, candidate(0.3, 4, 4), candidate(0.1, 4, 4)}
	got := Confidence(matches, &best)
	if math.Abs(got-0.9) > 1e-12 {
		t.Errorf("Confidence = %f, want 0.9 (no negative boost)", got)
	}
}

func TestConfidenceClamped(t *testing.T) {
	best := candidate(1.8, 4, 4)
	got := Confidence([]models.MatchCandidate{best}, &best)
	if got != 1.0 {
		t.Errorf("Confidence = %f, want clamp to 1.0", got)
	}

	negative := candidate(-0.5, 4, 4)
	got = Confidence([]models.MatchCandidate{negative}, &negative)
	if got != 0.0 {
		t.Errorf("Confidence = %f, want clamp to 0.0", got)
	}
}

func loadTable(t *testing.T) *feature.Table {
	t.Helper()
	csvData := "name,mz,mzmin,mzmax,rt,rtmin,rtmax,npeaks,sample1\n" +
		"F1,150.0,149.99,150.01,120.0,118.0,122.0,3,5000\n" +
		"F2,200.0,199.99,200.01,240.0,238.0,242.0,2,3000\n"
	table, err := feature.LoadCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	return table
}

func TestAggregateResolvesByName(t *testing.T) {
	table := loadTable(t)
	best := candidate(0.8, 2, 2)
	matches := []models.MatchResult{{
		QueryIndex:    0,
		FeatureName:   "F1",
		PrecursorMZ:   150.005,
		RetentionTime: 121.0,
		Matches:       []models.MatchCandidate{best},
		BestMatch:     &best,
	}}

	annotated := Aggregate(table, matches, "cosine")
	if len(annotated) != 1 {
		t.Fatalf("got %d annotated, want 1", len(annotated))
	}
	a := annotated[0]
	if a.Feature == nil || a.Feature.Name != "F1" {
		t.Fatalf("feature not resolved by name: %+v", a.Feature)
	}
	if a.Algorithm != "cosine" {
		t.Errorf("algorithm = %q, want cosine", a.Algorithm)
	}
	if a.MatchCount != 1 {
		t.Errorf("match count = %d, want 1", a.MatchCount)
	}
	if math.Abs(a.ConfidenceScore-0.8) > 1e-12 {
		t.Errorf("confidence = %f, want 0.8", a.ConfidenceScore)
	}
}

func TestAggregateFallsBackToNearest(t *testing.T) {
	table := loadTable(t)
	best := candidate(0.8, 2, 2)
	matches := []models.MatchResult{{
		FeatureName:   "unknown_feature",
		PrecursorMZ:   200.005,
		RetentionTime: 241.0,
		Matches:       []models.MatchCandidate{best},
		BestMatch:     &best,
	}}

	annotated := Aggregate(table, matches, "cosine")
	a := annotated[0]
	if a.Feature == nil || a.Feature.Name != "F2" {
		t.Fatalf("fallback lookup failed, got %+v", a.Feature)
	}
}

func TestAggregateNoMatchZeroConfidence(t *testing.T) {
	table := loadTable(t)
	matches := []models.MatchResult{{
		FeatureName:   "F1",
		PrecursorMZ:   150.0,
		RetentionTime: 120.0,
	}}

	a := Aggregate(table, matches, "cosine")[0]
	if a.ConfidenceScore != 0.0 {
		t.Errorf("confidence = %f, want exactly 0 with no match", a.ConfidenceScore)
	}
	if a.BestMatch != nil {
		t.Errorf("best match = %+v, want nil", a.BestMatch)
	}
}

func TestSummarize(t *testing.T) {
	best := candidate(0.9, 4, 4)
	weak := candidate(0.4, 2, 4)
	annotated := []models.AnnotatedFeature{
		{FeatureName: "F1", Algorithm: "cosine", BestMatch: &best, ConfidenceScore: 0.9},
		{FeatureName: "F2", Algorithm: "cosine", BestMatch: &weak, ConfidenceScore: 0.3},
		{FeatureName: "F3", Algorithm: "cosine"},
		{FeatureName: "F4", Algorithm: "cosine", Error: "all pairs failed"},
	}

	s := Summarize(annotated)
	if s.TotalFeatures != 4 {
		t.Errorf("total = %d, want 4", s.TotalFeatures)
	}
	if s.MatchedFeatures != 2 {
		t.Errorf("matched = %d, want 2", s.MatchedFeatures)
	}
	if math.Abs(s.MatchRate-0.5) > 1e-12 {
		t.Errorf("match rate = %f, want 0.5", s.MatchRate)
	}
	if s.HighConfidenceMatches != 1 {
		t.Errorf("high confidence = %d, want 1", s.HighConfidenceMatches)
	}
	// Mean over nonzero confidences only: (0.9 + 0.3) / 2.
	if math.Abs(s.AverageConfidence-0.6) > 1e-12 {
		t.Errorf("average confidence = %f, want 0.6", s.AverageConfidence)
	}
	if s.AlgorithmsUsed["cosine"] != 4 {
		t.Errorf("algorithms = %v, want cosine:4", s.AlgorithmsUsed)
	}
	if s.SkippedQueries != 1 {
		t.Errorf("skipped = %d, want 1", s.SkippedQueries)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalFeatures != 0 || s.MatchRate != 0 || s.AverageConfidence != 0 {
		t.Errorf("empty summary should be all zeros: %+v", s)
	}
}

func TestExportCSV(t *testing.T) {
	table := loadTable(t)
	best := candidate(0.8, 2, 2)
	best.Metadata.SMILES = "CN1C=NC2=C1C(=O)N(C(=O)N2C)C"
	matches := []models.MatchResult{
		{FeatureName: "F1", PrecursorMZ: 150.005, RetentionTime: 121.0,
			Matches: []models.MatchCandidate{best}, BestMatch: &best},
		{FeatureName: "F2", PrecursorMZ: 200.0, RetentionTime: 240.0},
	}
	annotated := Aggregate(table, matches, "cosine")

	var buf bytes.Buffer
	if err := ExportCSV(&buf, annotated); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-reading CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "feature_name" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][5] != "caffeine" {
		t.Errorf("matched row compound = %q, want caffeine", rows[1][5])
	}
	if rows[2][5] != "" {
		t.Errorf("unmatched row should have empty compound, got %q", rows[2][5])
	}
}

func TestExportJSON(t *testing.T) {
	best := candidate(0.8, 2, 2)
	annotated := []models.AnnotatedFeature{
		{FeatureName: "F1", Algorithm: "cosine", BestMatch: &best,
			Matches: []models.MatchCandidate{best}, MatchCount: 1, ConfidenceScore: 0.8},
	}
	summary := Summarize(annotated)

	var buf bytes.Buffer
	if err := ExportJSON(&buf, annotated, summary); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	var doc struct {
		Results []models.AnnotatedFeature `json:"results"`
		Summary models.MatchSummary       `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decoding export: %v", err)
	}
	if len(doc.Results) != 1 || doc.Results[0].FeatureName != "F1" {
		t.Errorf("results = %+v", doc.Results)
	}
	if doc.Summary.MatchedFeatures != 1 {
		t.Errorf("summary = %+v", doc.Summary)
	}
}
