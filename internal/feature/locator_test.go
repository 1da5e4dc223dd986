package feature

import (
	"math"
	"testing"

	"github.com/mzmatch/mzmatch/internal/models"
)

func TestFindNearestBothBoundsRequired(t *testing.T) {
	features := []models.Feature{
		// Inside m/z window but far outside RT window.
		{Name: "rt_out", MZ: 150.001, RT: 500.0},
		// Inside RT window but outside m/z window.
		{Name: "mz_out", MZ: 150.5, RT: 121.0},
	}
	if got := FindNearest(features, 150.0, 120.0, 0.01, 30.0); got != nil {
		t.Errorf("no feature satisfies both bounds, got %s", got.Name)
	}
}

func TestFindNearestCombinedDistance(t *testing.T) {
	features := []models.Feature{
		// dmz/tol = 0.8, drt/tol = 0.1 -> 0.9
		{Name: "far_mz", MZ: 150.008, RT: 123.0},
		// dmz/tol = 0.1, drt/tol = 0.5 -> 0.6
		{Name: "near", MZ: 150.001, RT: 135.0},
	}
	got := FindNearest(features, 150.0, 120.0, 0.01, 30.0)
	if got == nil || got.Name != "near" {
		t.Errorf("expected combined-distance winner 'near', got %v", got)
	}
}

func TestFindNearestZeroToleranceExactMatch(t *testing.T) {
	features := []models.Feature{
		{Name: "off", MZ: 150.001, RT: 120.0},
		{Name: "exact", MZ: 150.0, RT: 120.0},
	}
	got := FindNearest(features, 150.0, 120.0, 0, 30.0)
	if got == nil || got.Name != "exact" {
		t.Errorf("zero m/z tolerance should admit the exact hit, got %v", got)
	}
	if got := FindNearest(features, 150.0, 120.0, 0, 0); got == nil || got.Name != "exact" {
		t.Errorf("zero tolerances should admit the exact hit, got %v", got)
	}
}

func TestFindNearestTieKeepsFirst(t *testing.T) {
	features := []models.Feature{
		{Name: "first", MZ: 150.002, RT: 120.0},
		{Name: "second", MZ: 149.998, RT: 120.0}, // identical |dmz| and |drt|
	}
	got := FindNearest(features, 150.0, 120.0, 0.01, 30.0)
	if got == nil || got.Name != "first" {
		t.Errorf("ties should keep the first-encountered feature, got %v", got)
	}
}

func TestFindNearestNeverViolatesBounds(t *testing.T) {
	features := []models.Feature{
		{Name: "a", MZ: 100.0, RT: 60.0},
		{Name: "b", MZ: 100.005, RT: 65.0},
		{Name: "c", MZ: 100.1, RT: 60.0},
		{Name: "d", MZ: 100.0, RT: 300.0},
	}
	queries := []struct{ mz, rt, mzTol, rtTol float64 }{
		{100.0, 60.0, 0.01, 10.0},
		{100.004, 64.0, 0.001, 1.5},
		{100.05, 62.0, 0.2, 5.0},
		{99.0, 0.0, 0.01, 10.0},
	}
	for _, q := range queries {
		got := FindNearest(features, q.mz, q.rt, q.mzTol, q.rtTol)
		if got == nil {
			continue
		}
		if math.Abs(got.MZ-q.mz) > q.mzTol || math.Abs(got.RT-q.rt) > q.rtTol {
			t.Errorf("returned feature %s violates tolerance bounds for query %+v", got.Name, q)
		}
	}
}

func TestFindNearestEmpty(t *testing.T) {
	if FindNearest(nil, 150.0, 120.0, 0.01, 30.0) != nil {
		t.Error("empty feature list should return nil")
	}
}
