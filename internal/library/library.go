// Package library loads reference spectral libraries in MSP, MGF, JSON, and
// mzML formats.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mzmatch/mzmatch/internal/models"
	"github.com/mzmatch/mzmatch/internal/mzml"
)

// ParseError reports a reference library that could not be read, or an
// unsupported format.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse library %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to parse library: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads a spectral library file, dispatching on extension.
// Supported: .msp, .mgf, .json, .mzml, .mzxml.
func Load(path string) ([]models.LibrarySpectrum, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".msp", ".mgf", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		defer f.Close()
		var (
			spectra []models.LibrarySpectrum
			perr    error
		)
		switch ext {
		case ".msp":
			spectra, perr = LoadMSP(f)
		case ".mgf":
			spectra, perr = LoadMGF(f)
		case ".json":
			spectra, perr = LoadJSON(f)
		}
		if perr != nil {
			return nil, &ParseError{Path: path, Err: perr}
		}
		return spectra, nil
	case ".mzml", ".mzxml":
		raw, err := mzml.ReadFile(path)
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		return fromRawSpectra(raw), nil
	default:
		return nil, &ParseError{Path: path, Err: fmt.Errorf("unsupported library format %q", ext)}
	}
}

// fromRawSpectra converts instrument-file spectra into library entries.
// Spectra without peaks carry no information and are skipped.
func fromRawSpectra(raw []models.RawSpectrum) []models.LibrarySpectrum {
	var out []models.LibrarySpectrum
	for i, s := range raw {
		if len(s.Peaks) == 0 {
			continue
		}
		out = append(out, models.LibrarySpectrum{
			ID:            "scan_" + strconv.Itoa(i),
			PrecursorMZ:   s.PrecursorMZ,
			RetentionTime: s.RetentionTime,
			Peaks:         s.Peaks,
		})
	}
	return out
}

// Range is a closed numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Info summarizes a loaded library.
type Info struct {
	Count            int      `json:"count"`
	Compounds        []string `json:"compounds"`
	PrecursorMZRange *Range   `json:"precursor_mz_range,omitempty"`
}

// Summarize returns counts, the distinct compound names, and the precursor
// m/z range of a loaded library.
func Summarize(spectra []models.LibrarySpectrum) Info {
	info := Info{Count: len(spectra)}
	seen := make(map[string]bool)
	for _, s := range spectra {
		name := s.CompoundName
		if name == "" {
			name = "Unknown"
		}
		if !seen[name] {
			seen[name] = true
			info.Compounds = append(info.Compounds, name)
		}
		if s.PrecursorMZ == nil {
			continue
		}
		if info.PrecursorMZRange == nil {
			info.PrecursorMZRange = &Range{Min: *s.PrecursorMZ, Max: *s.PrecursorMZ}
			continue
		}
		if *s.PrecursorMZ < info.PrecursorMZRange.Min {
			info.PrecursorMZRange.Min = *s.PrecursorMZ
		}
		if *s.PrecursorMZ > info.PrecursorMZRange.Max {
			info.PrecursorMZRange.Max = *s.PrecursorMZ
		}
	}
	return info
}
