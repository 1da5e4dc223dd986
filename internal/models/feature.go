// Package models defines core data structures for features, spectra, and match results.
package models

// Feature represents one chromatographic peak group from an XCMS peak table:
// an m/z + retention-time window with per-sample intensities.
type Feature struct {
	Name        string             `json:"name"`
	MZ          float64            `json:"mz"`
	MZMin       float64            `json:"mzmin"`
	MZMax       float64            `json:"mzmax"`
	RT          float64            `json:"rt"`
	RTMin       float64            `json:"rtmin"`
	RTMax       float64            `json:"rtmax"`
	PeakCount   int                `json:"npeaks"`
	Intensities map[string]float64 `json:"intensities"`
}
