// Package cli provides CLI output formatting for mzmatch.
package cli

import (
	"fmt"
	"io"

	"github.com/mzmatch/mzmatch/internal/results"
	"github.com/mzmatch/mzmatch/internal/workflow"
	"github.com/mzmatch/mzmatch/pkg/utils"
)

// MatchOutputFormat is the format for match result output.
type MatchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText MatchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON MatchOutputFormat = "json"
	// OutputCSV is a flat table, one row per feature.
	OutputCSV MatchOutputFormat = "csv"
)

// ParseFormat maps a flag value to a MatchOutputFormat.
func ParseFormat(s string) (MatchOutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	case "csv":
		return OutputCSV, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, csv, or json", s)
}

// WriteMatchResults writes a completed matching run to w in the given format.
// Use OutputJSON or OutputCSV for parseable output consumable by other apps.
func WriteMatchResults(w io.Writer, out *workflow.Output, format MatchOutputFormat) error {
	switch format {
	case OutputJSON:
		return results.ExportJSON(w, out.Annotated, out.Summary)
	case OutputCSV:
		return results.ExportCSV(w, out.Annotated)
	default:
		writeMatchResultsText(w, out)
		return nil
	}
}

func writeMatchResultsText(w io.Writer, out *workflow.Output) {
	fmt.Fprintf(w, "%-14s %-10s %-10s %-30s %-8s %-10s\n",
		"FEATURE", "M/Z", "RT", "BEST MATCH", "SCORE", "CONFIDENCE")
	for _, a := range out.Annotated {
		name, score, conf := "-", "-", "-"
		if a.BestMatch != nil {
			name = a.BestMatch.CompoundName
			if name == "" {
				name = a.BestMatch.LibraryID
			}
			name = utils.Truncate(name, 30)
			score = fmt.Sprintf("%.4f", a.BestMatch.Score)
			conf = fmt.Sprintf("%.4f", a.ConfidenceScore)
		}
		fmt.Fprintf(w, "%-14s %-10.4f %-10.1f %-30s %-8s %-10s\n",
			utils.Truncate(a.FeatureName, 14), a.PrecursorMZ, a.RetentionTime, name, score, conf)
		if a.Error != "" {
			fmt.Fprintf(w, "  skipped: %s\n", a.Error)
		}
	}
	s := out.Summary
	fmt.Fprintf(w, "\n%d/%d features matched (%.1f%%), %d high confidence, algorithm %s\n",
		s.MatchedFeatures, s.TotalFeatures, s.MatchRate*100, s.HighConfidenceMatches, out.Algorithm)
	if s.SkippedQueries > 0 {
		fmt.Fprintf(w, "%d queries skipped due to scoring errors\n", s.SkippedQueries)
	}
}
