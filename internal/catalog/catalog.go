// Package catalog provides a Bleve-backed search index over a reference
// spectral library, so compounds can be looked up by name or identifier.
package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/mzmatch/mzmatch/internal/models"
)

// Entry is one indexed library spectrum.
type Entry struct {
	CompoundName string  `json:"compound_name"`
	InChIKey     string  `json:"inchikey"`
	SMILES       string  `json:"smiles"`
	PrecursorMZ  float64 `json:"precursor_mz"`
}

// Hit is one search result.
type Hit struct {
	LibraryID    string  `json:"library_id"`
	CompoundName string  `json:"compound_name"`
	InChIKey     string  `json:"inchikey,omitempty"`
	PrecursorMZ  float64 `json:"precursor_mz,omitempty"`
	Score        float64 `json:"score"`
}

// Catalog indexes library spectra in memory for compound lookup.
type Catalog struct {
	index bleve.Index
	byID  map[string]models.LibrarySpectrum
}

// New builds an in-memory index over the given library. Spectra without a
// compound name are still indexed, addressable by their library ID.
func New(library []models.LibrarySpectrum) (*Catalog, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming. Compound names
	// are not English prose, stemming would mangle them.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("compound_name", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("inchikey", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("smiles", keywordFieldMapping)
	numericFieldMapping := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt("precursor_mz", numericFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}

	c := &Catalog{index: index, byID: make(map[string]models.LibrarySpectrum, len(library))}
	batch := index.NewBatch()
	for _, spec := range library {
		entry := Entry{
			CompoundName: spec.CompoundName,
			InChIKey:     spec.InChIKey,
			SMILES:       spec.SMILES,
		}
		if spec.PrecursorMZ != nil {
			entry.PrecursorMZ = *spec.PrecursorMZ
		}
		if err := batch.Index(spec.ID, entry); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to index %s: %w", spec.ID, err)
		}
		c.byID[spec.ID] = spec
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to commit catalog batch: %w", err)
	}
	return c, nil
}

// Search runs a match query over compound names and identifiers. A query that
// parses as a number additionally matches precursor m/z within 0.01 Da.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	q := bleve.NewBooleanQuery()
	match := bleve.NewMatchQuery(query)
	q.AddShould(match)
	term := bleve.NewTermQuery(query)
	term.SetField("inchikey")
	q.AddShould(term)
	if mz, err := strconv.ParseFloat(query, 64); err == nil {
		lo, hi := mz-0.01, mz+0.01
		rng := bleve.NewNumericRangeQuery(&lo, &hi)
		rng.SetField("precursor_mz")
		q.AddShould(rng)
	}

	search := bleve.NewSearchRequest(q)
	search.Size = limit
	results, err := c.index.SearchInContext(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		h := Hit{LibraryID: hit.ID, Score: hit.Score}
		if spec, ok := c.byID[hit.ID]; ok {
			h.CompoundName = spec.CompoundName
			h.InChIKey = spec.InChIKey
			if spec.PrecursorMZ != nil {
				h.PrecursorMZ = *spec.PrecursorMZ
			}
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// Get returns the indexed spectrum by library ID.
func (c *Catalog) Get(id string) (models.LibrarySpectrum, bool) {
	spec, ok := c.byID[id]
	return spec, ok
}

// Len returns the number of indexed spectra.
func (c *Catalog) Len() int { return len(c.byID) }

// Close releases the index.
func (c *Catalog) Close() error { return c.index.Close() }
