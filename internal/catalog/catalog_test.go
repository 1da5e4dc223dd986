package catalog

import (
	"context"
	"testing"

	"github.com/mzmatch/mzmatch/internal/models"
)

func fp(v float64) *float64 { return &v }

func testLibrary() []models.LibrarySpectrum {
	return []models.LibrarySpectrum{
		{
			ID:           "lib1",
			CompoundName: "Caffeine",
			InChIKey:     "RYYVLZVUVIJVGH-UHFFFAOYSA-N",
			PrecursorMZ:  fp(195.0877),
			Peaks:        []models.Peak{{MZ: 138.066, Intensity: 999}},
		},
		{
			ID:           "lib2",
			CompoundName: "Theobromine",
			InChIKey:     "YAPQBXQYLJRXSA-UHFFFAOYSA-N",
			PrecursorMZ:  fp(181.0720),
			Peaks:        []models.Peak{{MZ: 163.061, Intensity: 999}},
		},
		{
			ID:    "lib3",
			Peaks: []models.Peak{{MZ: 91.054, Intensity: 500}},
		},
	}
}

func TestSearchByName(t *testing.T) {
	c, err := New(testLibrary())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	hits, err := c.Search(context.Background(), "caffeine", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].LibraryID != "lib1" || hits[0].CompoundName != "Caffeine" {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestSearchByInChIKey(t *testing.T) {
	c, err := New(testLibrary())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	hits, err := c.Search(context.Background(), "YAPQBXQYLJRXSA-UHFFFAOYSA-N", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].LibraryID != "lib2" {
		t.Fatalf("hits = %+v, want lib2 first", hits)
	}
}

func TestSearchByPrecursorMZ(t *testing.T) {
	c, err := New(testLibrary())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	hits, err := c.Search(context.Background(), "195.088", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].LibraryID != "lib1" {
		t.Fatalf("hits = %+v, want only lib1", hits)
	}
}

func TestSearchNoResults(t *testing.T) {
	c, err := New(testLibrary())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	hits, err := c.Search(context.Background(), "adenosine", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want none", hits)
	}
}

func TestGetAndLen(t *testing.T) {
	c, err := New(testLibrary())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.Len() != 3 {
		t.Errorf("len = %d, want 3", c.Len())
	}
	spec, ok := c.Get("lib3")
	if !ok || spec.ID != "lib3" {
		t.Errorf("Get(lib3) = %+v, %v", spec, ok)
	}
	if _, ok := c.Get("nope"); ok {
		t.Error("Get(nope) should miss")
	}
}
