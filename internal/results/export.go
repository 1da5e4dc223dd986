package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/mzmatch/mzmatch/internal/models"
)

var csvHeader = []string{
	"feature_name",
	"precursor_mz",
	"retention_time",
	"feature_mz",
	"feature_rt",
	"compound_name",
	"match_score",
	"algorithm",
	"confidence_score",
	"matched_peaks",
	"smiles",
	"inchi",
	"inchikey",
}

// ExportCSV writes one flattened row per annotated feature. Features without
// a best match still get a row so the export covers the whole feature set.
func ExportCSV(w io.Writer, annotated []models.AnnotatedFeature) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, a := range annotated {
		row := []string{
			a.FeatureName,
			formatFloat(a.PrecursorMZ),
			formatFloat(a.RetentionTime),
			"", "", // feature_mz, feature_rt
			"", "", // compound_name, match_score
			a.Algorithm,
			formatFloat(a.ConfidenceScore),
			"",
			"", "", "",
		}
		if a.Feature != nil {
			row[3] = formatFloat(a.Feature.MZ)
			row[4] = formatFloat(a.Feature.RT)
		}
		if a.BestMatch != nil {
			row[5] = a.BestMatch.CompoundName
			row[6] = formatFloat(a.BestMatch.Score)
			row[9] = strconv.Itoa(a.BestMatch.MatchedPeaks)
			row[10] = a.BestMatch.Metadata.SMILES
			row[11] = a.BestMatch.Metadata.InChI
			row[12] = a.BestMatch.Metadata.InChIKey
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row for %s: %w", a.FeatureName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes the annotated features and their summary as one document.
func ExportJSON(w io.Writer, annotated []models.AnnotatedFeature, summary models.MatchSummary) error {
	doc := struct {
		Results []models.AnnotatedFeature `json:"results"`
		Summary models.MatchSummary       `json:"summary"`
	}{Results: annotated, Summary: summary}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
