package similarity

import (
	"errors"
	"math"
	"testing"

	"github.com/mzmatch/mzmatch/internal/models"
)

func testQuery() models.QuerySpectrum {
	return models.QuerySpectrum{
		FeatureName:   "F1",
		PrecursorMZ:   150.0,
		RetentionTime: 120.0,
		Peaks:         []models.Peak{{MZ: 50.1, Intensity: 500}, {MZ: 60.2, Intensity: 300}},
	}
}

func TestCosineGreedyIdentical(t *testing.T) {
	q := testQuery()
	lib := models.LibrarySpectrum{ID: "L1", Peaks: q.Peaks}
	score, matched, err := CosineGreedy{}.ScorePair(q, lib, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("identical spectra should score 1.0, got %f", score)
	}
	if matched != 2 {
		t.Errorf("expected 2 matched peaks, got %d", matched)
	}
}

func TestDotProductNoOverlap(t *testing.T) {
	q := testQuery()
	lib := models.LibrarySpectrum{ID: "L1", Peaks: []models.Peak{{MZ: 400.0, Intensity: 100}}}
	score, matched, err := DotProduct{}.ScorePair(q, lib, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if score != 0 || matched != 0 {
		t.Errorf("disjoint spectra: score=%f matched=%d, want 0/0", score, matched)
	}
}

func TestModifiedCosineUsesPrecursorShift(t *testing.T) {
	q := models.QuerySpectrum{
		PrecursorMZ: 164.016, // 14.016 Da heavier than the library precursor
		Peaks:       []models.Peak{{MZ: 114.016, Intensity: 500}, {MZ: 64.016, Intensity: 300}},
	}
	libPrec := 150.0
	lib := models.LibrarySpectrum{
		ID:          "L1",
		PrecursorMZ: &libPrec,
		Peaks:       []models.Peak{{MZ: 100.0, Intensity: 500}, {MZ: 50.0, Intensity: 300}},
	}

	_, matchedPlain, err := CosineGreedy{}.ScorePair(q, lib, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if matchedPlain != 0 {
		t.Fatalf("plain cosine should find no matches, got %d", matchedPlain)
	}

	score, matched, err := ModifiedCosine{}.ScorePair(q, lib, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if matched != 2 {
		t.Errorf("modified cosine should align shifted fragments, matched=%d", matched)
	}
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("fully shifted-aligned spectra should score 1.0, got %f", score)
	}
}

func TestResolveDirectAlgorithms(t *testing.T) {
	for _, alg := range []string{AlgorithmDotProduct, AlgorithmCosine, AlgorithmModifiedCosine} {
		res, err := Resolve(alg, "", 0)
		if err != nil {
			t.Fatalf("Resolve(%s) failed: %v", alg, err)
		}
		if res.FellBack {
			t.Errorf("Resolve(%s) should not fall back", alg)
		}
		if res.Scorer.Name() != alg {
			t.Errorf("Resolve(%s) returned scorer %s", alg, res.Scorer.Name())
		}
	}
}

func TestResolveMS2QueryFallsBackToCosine(t *testing.T) {
	// No model available: the substitution is decided here, once, and the
	// effective algorithm is reported as cosine.
	res, err := Resolve(AlgorithmMS2Query, "/nonexistent/model.onnx", 512)
	if err != nil {
		t.Fatalf("Resolve should fall back, not fail: %v", err)
	}
	if !res.FellBack {
		t.Error("expected fallback to be recorded")
	}
	if res.Scorer.Name() != AlgorithmCosine {
		t.Errorf("fallback scorer should be cosine, got %s", res.Scorer.Name())
	}
	if res.Requested != AlgorithmMS2Query {
		t.Errorf("requested algorithm should be preserved, got %s", res.Requested)
	}
}

func TestResolveUnknownAlgorithm(t *testing.T) {
	_, err := Resolve("nope", "", 0)
	if err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	var me *MatchingError
	if !errors.As(err, &me) {
		t.Errorf("expected MatchingError, got %T", err)
	}
}
