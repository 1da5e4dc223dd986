package feature

import (
	"math"

	"github.com/mzmatch/mzmatch/internal/models"
)

// FindNearest returns the feature closest to (mz, rt) among those inside both
// tolerance windows, or nil when no feature satisfies both bounds. Closeness
// is the combined normalized distance |dmz|/mzTol + |drt|/rtTol; the first
// encountered feature wins ties. The scan is stateless and side-effect-free,
// so it is safe to call concurrently from per-query goroutines.
func FindNearest(features []models.Feature, mz, rt, mzTolerance, rtTolerance float64) *models.Feature {
	var best *models.Feature
	bestScore := math.Inf(1)

	for i := range features {
		f := &features[i]
		dmz := math.Abs(f.MZ - mz)
		drt := math.Abs(f.RT - rt)
		if dmz > mzTolerance || drt > rtTolerance {
			continue
		}
		score := normalizedDistance(dmz, mzTolerance) + normalizedDistance(drt, rtTolerance)
		if score < bestScore {
			bestScore = score
			best = f
		}
	}
	return best
}

// normalizedDistance divides a delta by its tolerance. A zero tolerance only
// admits exact hits, which count as distance 0 rather than 0/0.
func normalizedDistance(delta, tolerance float64) float64 {
	if tolerance == 0 {
		return 0
	}
	return delta / tolerance
}

// FindNearest looks up the closest feature in the table. See the package-level
// FindNearest for semantics.
func (t *Table) FindNearest(mz, rt, mzTolerance, rtTolerance float64) *models.Feature {
	return FindNearest(t.features, mz, rt, mzTolerance, rtTolerance)
}
