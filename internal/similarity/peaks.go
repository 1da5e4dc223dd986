package similarity

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/mzmatch/mzmatch/internal/models"
)

// peakPair links a query peak index to a library peak index.
type peakPair struct {
	q, l int
}

// pairSelection controls which candidate pair wins when several compete for
// the same peak.
type pairSelection int

const (
	// byProximity prefers the smallest m/z deviation.
	byProximity pairSelection = iota
	// byIntensityProduct prefers the largest intensity product, the
	// convention for greedy cosine scoring.
	byIntensityProduct
)

// matchPeaks computes a greedy at-most-one-to-one assignment of query peaks
// to library peaks. A pair is allowed when |dmz| <= tol, or additionally when
// |dmz - shift| <= tol (shift != 0 enables the modified-cosine mass-shift
// match). Candidates are ordered by intrinsic peak properties before the
// greedy pass, so the result does not depend on input peak order.
func matchPeaks(query, lib []models.Peak, tol, shift float64, sel pairSelection) []peakPair {
	type candidate struct {
		pair peakPair
		dmz  float64
		prod float64
	}
	var candidates []candidate
	for i, qp := range query {
		for j, lp := range lib {
			d := math.Abs(qp.MZ - lp.MZ)
			if shift != 0 {
				if ds := math.Abs(qp.MZ - lp.MZ - shift); ds < d {
					d = ds
				}
			}
			if d > tol {
				continue
			}
			candidates = append(candidates, candidate{
				pair: peakPair{q: i, l: j},
				dmz:  d,
				prod: qp.Intensity * lp.Intensity,
			})
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		switch sel {
		case byIntensityProduct:
			if ca.prod != cb.prod {
				return ca.prod > cb.prod
			}
		default:
			if ca.dmz != cb.dmz {
				return ca.dmz < cb.dmz
			}
		}
		// Deterministic tie-break on peak positions.
		if query[ca.pair.q].MZ != query[cb.pair.q].MZ {
			return query[ca.pair.q].MZ < query[cb.pair.q].MZ
		}
		return lib[ca.pair.l].MZ < lib[cb.pair.l].MZ
	})

	usedQ := make(map[int]bool, len(query))
	usedL := make(map[int]bool, len(lib))
	var pairs []peakPair
	for _, c := range candidates {
		if usedQ[c.pair.q] || usedL[c.pair.l] {
			continue
		}
		usedQ[c.pair.q] = true
		usedL[c.pair.l] = true
		pairs = append(pairs, c.pair)
	}
	return pairs
}

// cosineScore computes the normalized matched-intensity product over a pair
// assignment: sum of matched intensity products divided by the product of the
// full intensity vector norms. The result is in [0,1].
func cosineScore(query, lib []models.Peak, pairs []peakPair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	qNorm := floats.Norm(intensities(query), 2)
	lNorm := floats.Norm(intensities(lib), 2)
	if qNorm == 0 || lNorm == 0 {
		return 0
	}
	var dot float64
	for _, p := range pairs {
		dot += query[p.q].Intensity * lib[p.l].Intensity
	}
	score := dot / (qNorm * lNorm)
	if score > 1 {
		score = 1
	}
	return score
}

func intensities(peaks []models.Peak) []float64 {
	out := make([]float64, len(peaks))
	for i, p := range peaks {
		out[i] = p.Intensity
	}
	return out
}
