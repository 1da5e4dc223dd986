package results

import (
	"gonum.org/v1/gonum/stat"

	"github.com/mzmatch/mzmatch/internal/models"
)

// HighConfidenceThreshold marks annotations trusted enough to report without
// manual review.
const HighConfidenceThreshold = 0.7

// Summarize computes run-level statistics over annotated features. The mean
// confidence covers only features that matched something; averaging in zeros
// from unmatched features would make the number meaningless for sparse
// libraries.
func Summarize(annotated []models.AnnotatedFeature) models.MatchSummary {
	summary := models.MatchSummary{
		TotalFeatures:  len(annotated),
		AlgorithmsUsed: make(map[string]int),
	}

	var confidences []float64
	for _, a := range annotated {
		if a.Error != "" {
			summary.SkippedQueries++
		}
		if a.BestMatch != nil {
			summary.MatchedFeatures++
		}
		if a.ConfidenceScore >= HighConfidenceThreshold {
			summary.HighConfidenceMatches++
		}
		if a.ConfidenceScore > 0 {
			confidences = append(confidences, a.ConfidenceScore)
		}
		algo := a.Algorithm
		if algo == "" {
			algo = "unknown"
		}
		summary.AlgorithmsUsed[algo]++
	}

	if summary.TotalFeatures > 0 {
		summary.MatchRate = float64(summary.MatchedFeatures) / float64(summary.TotalFeatures)
	}
	if len(confidences) > 0 {
		summary.AverageConfidence = stat.Mean(confidences, nil)
	}
	return summary
}
