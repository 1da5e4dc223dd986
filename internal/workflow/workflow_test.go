package workflow

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mzmatch/mzmatch/internal/feature"
	"github.com/mzmatch/mzmatch/internal/models"
	"github.com/mzmatch/mzmatch/internal/similarity"
)

func fp(v float64) *float64 { return &v }

func testInputs(t *testing.T) Inputs {
	t.Helper()
	csvData := "name,mz,mzmin,mzmax,rt,rtmin,rtmax,npeaks,sample1\n" +
		"F1,150.0,149.99,150.01,120.0,118.0,122.0,2,5000\n"
	table, err := feature.LoadCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}

	spectra := []models.RawSpectrum{{
		MSLevel:       2,
		PrecursorMZ:   fp(150.005),
		RetentionTime: fp(121.0),
		Peaks: []models.Peak{
			{MZ: 50.1, Intensity: 500},
			{MZ: 60.2, Intensity: 300},
		},
	}}

	library := []models.LibrarySpectrum{
		{
			ID:           "lib1",
			CompoundName: "caffeine",
			PrecursorMZ:  fp(150.0),
			Peaks: []models.Peak{
				{MZ: 50.1, Intensity: 500},
				{MZ: 60.2, Intensity: 300},
			},
		},
		{
			ID:           "lib2",
			CompoundName: "unrelated",
			PrecursorMZ:  fp(320.0),
			Peaks:        []models.Peak{{MZ: 210.0, Intensity: 900}},
		},
	}

	return Inputs{Features: table, Spectra: spectra, Library: library}
}

func TestRunEndToEnd(t *testing.T) {
	var updates []string
	out, err := Run(context.Background(), zap.NewNop(), testInputs(t), Options{
		Algorithm:   similarity.AlgorithmCosine,
		MZTolerance: 0.01,
		RTTolerance: 30,
		TopN:        5,
		Notify: func(status string, progress float64, message string) {
			updates = append(updates, status)
			if progress < 0 || progress > 1 {
				t.Errorf("progress %f out of range", progress)
			}
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Queries != 1 {
		t.Errorf("queries = %d, want 1", out.Queries)
	}
	if out.Algorithm != "cosine" || out.FellBack {
		t.Errorf("algorithm = %q fellback = %v, want cosine direct", out.Algorithm, out.FellBack)
	}
	if len(out.Annotated) != 1 {
		t.Fatalf("annotated = %d, want 1", len(out.Annotated))
	}
	a := out.Annotated[0]
	if a.FeatureName != "F1" {
		t.Errorf("feature = %q, want F1", a.FeatureName)
	}
	if a.BestMatch == nil || a.BestMatch.LibraryID != "lib1" {
		t.Fatalf("best match = %+v, want lib1", a.BestMatch)
	}
	if a.BestMatch.Score < 0.999 {
		t.Errorf("best score = %f, want ~1.0", a.BestMatch.Score)
	}
	if a.ConfidenceScore <= 0 {
		t.Errorf("confidence = %f, want > 0", a.ConfidenceScore)
	}
	if out.Summary.MatchedFeatures != 1 {
		t.Errorf("summary = %+v", out.Summary)
	}
	if len(updates) == 0 {
		t.Fatal("no progress updates received")
	}
	if updates[len(updates)-1] != models.JobCompleted {
		t.Errorf("last status = %q, want %q", updates[len(updates)-1], models.JobCompleted)
	}
}

func TestRunFallsBackWhenModelMissing(t *testing.T) {
	out, err := Run(context.Background(), zap.NewNop(), testInputs(t), Options{
		Algorithm:   similarity.AlgorithmMS2Query,
		ModelPath:   "/nonexistent/model.onnx",
		MZTolerance: 0.01,
		RTTolerance: 30,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.FellBack {
		t.Fatal("expected fallback with missing model")
	}
	if out.Requested != similarity.AlgorithmMS2Query {
		t.Errorf("requested = %q, want ms2query", out.Requested)
	}
	if out.Algorithm != similarity.AlgorithmCosine {
		t.Errorf("effective algorithm = %q, want cosine", out.Algorithm)
	}
	// The fallback decision shows up on every candidate.
	for _, a := range out.Annotated {
		for _, m := range a.Matches {
			if m.Algorithm != similarity.AlgorithmCosine {
				t.Errorf("candidate algorithm = %q, want cosine", m.Algorithm)
			}
		}
	}
}

func TestRunSurvivesPanickingNotifier(t *testing.T) {
	out, err := Run(context.Background(), nil, testInputs(t), Options{
		Algorithm:   similarity.AlgorithmCosine,
		MZTolerance: 0.01,
		RTTolerance: 30,
		Notify: func(string, float64, string) {
			panic("sink gone")
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Summary.MatchedFeatures != 1 {
		t.Errorf("run did not complete past panicking notifier: %+v", out.Summary)
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	_, err := Run(context.Background(), zap.NewNop(), testInputs(t), Options{
		Algorithm:   similarity.AlgorithmCosine,
		MZTolerance: 5.0, // above the valid domain
		RTTolerance: 30,
	})
	if err == nil {
		t.Fatal("expected validation error for out-of-domain tolerance")
	}
}

func TestRunRejectsEmptyInputs(t *testing.T) {
	in := testInputs(t)
	in.Library = nil
	if _, err := Run(context.Background(), zap.NewNop(), in, Options{
		Algorithm:   similarity.AlgorithmCosine,
		MZTolerance: 0.01,
		RTTolerance: 30,
	}); err == nil {
		t.Fatal("expected error for empty library")
	}

	in = testInputs(t)
	in.Spectra = []models.RawSpectrum{{MSLevel: 1}}
	if _, err := Run(context.Background(), zap.NewNop(), in, Options{
		Algorithm:   similarity.AlgorithmCosine,
		MZTolerance: 0.01,
		RTTolerance: 30,
	}); err == nil {
		t.Fatal("expected error when nothing correlates")
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, zap.NewNop(), testInputs(t), Options{
		Algorithm:   similarity.AlgorithmCosine,
		MZTolerance: 0.01,
		RTTolerance: 30,
	}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
