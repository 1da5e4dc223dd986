// Package extract correlates MS2 spectra with chromatographic features.
package extract

import (
	"fmt"

	"github.com/mzmatch/mzmatch/internal/feature"
	"github.com/mzmatch/mzmatch/internal/models"
	"github.com/mzmatch/mzmatch/internal/mzml"
)

// ExtractionError reports a raw spectrum stream that could not be read or is
// structurally invalid.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("ms2 extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Options control MS2 extraction and feature correlation.
type Options struct {
	MZTolerance  float64 // Da
	RTTolerance  float64 // seconds
	MinIntensity float64
}

// ReadSpectra reads the raw spectra from an instrument file. Failures are
// tagged as extraction errors so callers can tell an unreadable stream apart
// from a malformed peak table or library.
func ReadSpectra(path string) ([]models.RawSpectrum, error) {
	spectra, err := mzml.ReadFile(path)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}
	return spectra, nil
}

// Correlate associates MS2 spectra with the feature each most plausibly
// originated from. Per spectrum: non-MS2 scans are ignored; scans missing a
// precursor m/z or retention time are dropped; peaks below MinIntensity are
// removed and spectra left with no peaks are dropped; spectra whose precursor
// falls inside no feature's tolerance window are dropped. Spectra without a
// feature match carry no chromatographic identity and cannot be annotated,
// so their exclusion is deliberate.
func Correlate(spectra []models.RawSpectrum, table *feature.Table, opts Options) []models.QuerySpectrum {
	var queries []models.QuerySpectrum

	for _, s := range spectra {
		if s.MSLevel != 2 {
			continue
		}
		if s.PrecursorMZ == nil || s.RetentionTime == nil {
			continue
		}

		var peaks []models.Peak
		for _, p := range s.Peaks {
			if p.Intensity >= opts.MinIntensity {
				peaks = append(peaks, p)
			}
		}
		if len(peaks) == 0 {
			continue
		}

		matched := table.FindNearest(*s.PrecursorMZ, *s.RetentionTime, opts.MZTolerance, opts.RTTolerance)
		if matched == nil {
			continue
		}

		queries = append(queries, models.QuerySpectrum{
			FeatureName:   matched.Name,
			PrecursorMZ:   *s.PrecursorMZ,
			RetentionTime: *s.RetentionTime,
			Peaks:         peaks,
		})
	}
	return queries
}
