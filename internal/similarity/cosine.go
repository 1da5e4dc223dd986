package similarity

import (
	"github.com/mzmatch/mzmatch/internal/models"
)

// DotProduct matches peaks by m/z proximity and scores the normalized
// intensity product of the assignment.
type DotProduct struct{}

func (DotProduct) Name() string { return AlgorithmDotProduct }

func (DotProduct) ScorePair(query models.QuerySpectrum, lib models.LibrarySpectrum, mzTolerance float64) (float64, int, error) {
	pairs := matchPeaks(query.Peaks, lib.Peaks, mzTolerance, 0, byProximity)
	return cosineScore(query.Peaks, lib.Peaks, pairs), len(pairs), nil
}

// CosineGreedy scores with the greedy cosine convention: candidate peak pairs
// within tolerance are claimed highest-intensity-product first.
type CosineGreedy struct{}

func (CosineGreedy) Name() string { return AlgorithmCosine }

func (CosineGreedy) ScorePair(query models.QuerySpectrum, lib models.LibrarySpectrum, mzTolerance float64) (float64, int, error) {
	pairs := matchPeaks(query.Peaks, lib.Peaks, mzTolerance, 0, byIntensityProduct)
	return cosineScore(query.Peaks, lib.Peaks, pairs), len(pairs), nil
}

// ModifiedCosine additionally allows peak pairs offset by the precursor mass
// difference, so fragments that retain a modified moiety still align.
type ModifiedCosine struct{}

func (ModifiedCosine) Name() string { return AlgorithmModifiedCosine }

func (ModifiedCosine) ScorePair(query models.QuerySpectrum, lib models.LibrarySpectrum, mzTolerance float64) (float64, int, error) {
	var shift float64
	if lib.PrecursorMZ != nil {
		shift = query.PrecursorMZ - *lib.PrecursorMZ
	}
	pairs := matchPeaks(query.Peaks, lib.Peaks, mzTolerance, shift, byIntensityProduct)
	return cosineScore(query.Peaks, lib.Peaks, pairs), len(pairs), nil
}
