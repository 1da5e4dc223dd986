// Package matching runs the per-query similarity loop against a reference
// library and produces ranked candidate lists.
package matching

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mzmatch/mzmatch/internal/models"
	"github.com/mzmatch/mzmatch/internal/similarity"
)

// Options control the matching loop.
type Options struct {
	MZTolerance float64
	MinScore    float64
	TopN        int
	// Workers caps the number of concurrent query goroutines; 0 means
	// GOMAXPROCS.
	Workers int
	// Progress, when set, is called after each completed query with the
	// number of completed queries and the total. Calls may come from
	// multiple goroutines.
	Progress func(completed, total int)
}

// MatchAll scores every query against every library spectrum. Queries are
// independent, so the loop fans out across workers; each query's result lands
// at its own index and no partial-result merge is needed on cancellation.
// A query whose every pair failed to score is kept in the result set with its
// Error field set, per the skip-and-continue policy.
func MatchAll(ctx context.Context, queries []models.QuerySpectrum, library []models.LibrarySpectrum, scorer similarity.Scorer, opts Options) []models.MatchResult {
	results := make([]models.MatchResult, len(queries))
	if len(queries) == 0 {
		return results
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(queries) {
		workers = len(queries)
	}

	var completed atomic.Int64
	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = matchOne(queries[i], i, library, scorer, opts)
				if opts.Progress != nil {
					opts.Progress(int(completed.Add(1)), len(queries))
				}
			}
		}()
	}

	for i := range queries {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(queries); j++ {
				results[j] = skippedResult(queries[j], j, err)
			}
			close(indexes)
			wg.Wait()
			return results
		}
		indexes <- i
	}
	close(indexes)
	wg.Wait()
	return results
}

func matchOne(query models.QuerySpectrum, index int, library []models.LibrarySpectrum, scorer similarity.Scorer, opts Options) models.MatchResult {
	result := models.MatchResult{
		QueryIndex:    index,
		FeatureName:   query.FeatureName,
		PrecursorMZ:   query.PrecursorMZ,
		RetentionTime: query.RetentionTime,
	}

	var (
		candidates []models.MatchCandidate
		pairErrs   int
		lastErr    error
	)
	for _, lib := range library {
		score, matched, err := scorer.ScorePair(query, lib, opts.MZTolerance)
		if err != nil {
			// A failed pair is skipped, never aborting the query or the batch.
			pairErrs++
			lastErr = err
			continue
		}
		if score < opts.MinScore {
			continue
		}
		candidates = append(candidates, models.MatchCandidate{
			LibraryID:    lib.ID,
			CompoundName: lib.CompoundName,
			Score:        score,
			Algorithm:    scorer.Name(),
			MatchedPeaks: matched,
			TotalPeaks:   len(query.Peaks),
			Metadata: models.CandidateMetadata{
				PrecursorMZ:   lib.PrecursorMZ,
				RetentionTime: lib.RetentionTime,
				SMILES:        lib.SMILES,
				InChI:         lib.InChI,
				InChIKey:      lib.InChIKey,
			},
		})
	}

	if len(candidates) == 0 && pairErrs > 0 && pairErrs == len(library) {
		result.Error = fmt.Sprintf("all %d library pairs failed: %v", pairErrs, lastErr)
		return result
	}

	// Stable sort keeps insertion (library) order among equal scores.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	if opts.TopN > 0 && len(candidates) > opts.TopN {
		candidates = candidates[:opts.TopN]
	}
	result.Matches = candidates
	if len(candidates) > 0 {
		best := candidates[0]
		result.BestMatch = &best
	}
	return result
}

func skippedResult(query models.QuerySpectrum, index int, cause error) models.MatchResult {
	return models.MatchResult{
		QueryIndex:    index,
		FeatureName:   query.FeatureName,
		PrecursorMZ:   query.PrecursorMZ,
		RetentionTime: query.RetentionTime,
		Error:         fmt.Sprintf("skipped: %v", cause),
	}
}
