// Package similarity provides pairwise spectral similarity scoring with
// interchangeable algorithms.
package similarity

import (
	"fmt"

	"github.com/mzmatch/mzmatch/internal/models"
)

// Supported algorithm names.
const (
	AlgorithmMS2Query       = "ms2query"
	AlgorithmDotProduct     = "dot_product"
	AlgorithmCosine         = "cosine"
	AlgorithmModifiedCosine = "modified_cosine"
)

// MatchingError reports that a similarity strategy is unavailable and no
// fallback succeeded.
type MatchingError struct {
	Algorithm string
	Err       error
}

func (e *MatchingError) Error() string {
	return fmt.Sprintf("matching algorithm %q unavailable: %v", e.Algorithm, e.Err)
}

func (e *MatchingError) Unwrap() error { return e.Err }

// Scorer scores one query spectrum against one library spectrum.
// Implementations are stateless with respect to queries and safe for
// concurrent use.
type Scorer interface {
	// Name returns the algorithm tag recorded on produced candidates.
	Name() string
	// ScorePair returns a similarity score in [0,1] and the number of query
	// peaks matched one-to-one to library peaks within mzTolerance.
	ScorePair(query models.QuerySpectrum, lib models.LibrarySpectrum, mzTolerance float64) (float64, int, error)
}

// Resolution is the outcome of resolving a requested algorithm to a usable
// scorer. When the learned-ranking model is unavailable the engine falls back
// to cosine; FellBack records that substitution so results can report the
// algorithm actually used.
type Resolution struct {
	Scorer    Scorer
	Requested string
	FellBack  bool
}

// Resolve picks the scorer for the requested algorithm. The decision is made
// once per run, before the scoring loop. modelPath and dimensions are only
// consulted for the ms2query algorithm.
func Resolve(algorithm, modelPath string, dimensions int) (*Resolution, error) {
	switch algorithm {
	case AlgorithmDotProduct:
		return &Resolution{Scorer: DotProduct{}, Requested: algorithm}, nil
	case AlgorithmCosine:
		return &Resolution{Scorer: CosineGreedy{}, Requested: algorithm}, nil
	case AlgorithmModifiedCosine:
		return &Resolution{Scorer: ModifiedCosine{}, Requested: algorithm}, nil
	case AlgorithmMS2Query:
		scorer, err := NewMS2QueryScorer(modelPath, dimensions)
		if err != nil {
			// Model or runtime unavailable: fall back to cosine transparently.
			return &Resolution{Scorer: CosineGreedy{}, Requested: algorithm, FellBack: true}, nil
		}
		return &Resolution{Scorer: scorer, Requested: algorithm}, nil
	default:
		return nil, &MatchingError{Algorithm: algorithm, Err: fmt.Errorf("unknown algorithm")}
	}
}
