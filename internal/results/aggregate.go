// Package results merges per-query match lists back onto feature table
// entries and derives confidence scores and run-level summary statistics.
package results

import (
	"github.com/mzmatch/mzmatch/internal/feature"
	"github.com/mzmatch/mzmatch/internal/models"
)

const (
	// Fallback tolerances for locating a feature by precursor m/z and RT
	// when the tagged feature name is not present in the table.
	fallbackMZTolerance = 0.01
	fallbackRTTolerance = 30.0

	confidenceBoostCap    = 0.2
	confidenceBoostWeight = 0.5
)

// Aggregate resolves each match result against the feature table and attaches
// a confidence score. The algorithm tag is the effective algorithm of the run,
// which may differ from the requested one after a fallback. Results with a
// per-query error are carried through with the error tag and a zero confidence.
func Aggregate(table *feature.Table, matches []models.MatchResult, algorithm string) []models.AnnotatedFeature {
	annotated := make([]models.AnnotatedFeature, 0, len(matches))
	for _, r := range matches {
		a := models.AnnotatedFeature{
			FeatureName:     r.FeatureName,
			Algorithm:       algorithm,
			PrecursorMZ:     r.PrecursorMZ,
			RetentionTime:   r.RetentionTime,
			Matches:         r.Matches,
			BestMatch:       r.BestMatch,
			MatchCount:      len(r.Matches),
			ConfidenceScore: Confidence(r.Matches, r.BestMatch),
			Error:           r.Error,
		}
		if table != nil {
			if f := resolveFeature(table, r); f != nil {
				a.Feature = f
			}
		}
		annotated = append(annotated, a)
	}
	return annotated
}

func resolveFeature(table *feature.Table, r models.MatchResult) *models.Feature {
	if f := table.FindByName(r.FeatureName); f != nil {
		return f
	}
	return table.FindNearest(r.PrecursorMZ, r.RetentionTime, fallbackMZTolerance, fallbackRTTolerance)
}

// Confidence folds the best score, agreement among the top candidates, and
// peak coverage into a single value in [0,1]. No best match means exactly 0.
func Confidence(matches []models.MatchCandidate, best *models.MatchCandidate) float64 {
	if best == nil {
		return 0.0
	}

	score := best.Score

	if len(matches) > 1 {
		top := matches
		if len(top) > 3 {
			top = top[:3]
		}
		var sum float64
		for _, m := range top {
			sum += m.Score
		}
		avg := sum / float64(len(top))
		boost := (avg - score) * confidenceBoostWeight
		if boost < 0 {
			boost = 0
		}
		if boost > confidenceBoostCap {
			boost = confidenceBoostCap
		}
		score += boost
	}

	ratio := 0.0
	if best.TotalPeaks > 0 {
		ratio = float64(best.MatchedPeaks) / float64(best.TotalPeaks)
	}
	score *= 0.5 + 0.5*ratio

	if score < 0 {
		return 0.0
	}
	if score > 1 {
		return 1.0
	}
	return score
}
