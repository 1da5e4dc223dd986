//go:build !cgo
// +build !cgo

package similarity

import (
	"errors"

	"github.com/mzmatch/mzmatch/internal/models"
)

// MS2QueryScorer stub type when built without CGO (see ms2query.go for the
// real implementation).
type MS2QueryScorer struct{}

// NewMS2QueryScorer returns an error when built without CGO; Resolve falls
// back to the cosine scorer.
func NewMS2QueryScorer(_ string, _ int) (*MS2QueryScorer, error) {
	return nil, errors.New("ms2query scorer requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

func (s *MS2QueryScorer) Name() string { return AlgorithmMS2Query }

func (s *MS2QueryScorer) ScorePair(_ models.QuerySpectrum, _ models.LibrarySpectrum, _ float64) (float64, int, error) {
	return 0, 0, errors.New("ms2query scorer not available in this build")
}

// Close is a no-op on the stub.
func (s *MS2QueryScorer) Close() error { return nil }
