package library

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/mzmatch/mzmatch/internal/models"
)

// jsonSpectrum is the on-disk shape: parallel m/z and intensity arrays plus a
// free-form metadata object.
type jsonSpectrum struct {
	MZ          []float64              `json:"mz"`
	Intensities []float64              `json:"intensities"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// LoadJSON reads spectra from a JSON document holding either one spectrum
// object or an array of them. Entries with empty or mismatched peak arrays
// are skipped.
func LoadJSON(r io.Reader) ([]models.LibrarySpectrum, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var entries []jsonSpectrum
	if err := json.Unmarshal(data, &entries); err != nil {
		var single jsonSpectrum
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("invalid library JSON: %w", err)
		}
		entries = []jsonSpectrum{single}
	}

	var spectra []models.LibrarySpectrum
	for i, e := range entries {
		if len(e.MZ) == 0 || len(e.MZ) != len(e.Intensities) {
			continue
		}
		spec := models.LibrarySpectrum{
			ID:    fmt.Sprintf("json_%d", i),
			Peaks: make([]models.Peak, len(e.MZ)),
		}
		for j := range e.MZ {
			spec.Peaks[j] = models.Peak{MZ: e.MZ[j], Intensity: e.Intensities[j]}
		}
		applyMetadata(&spec, e.Metadata)
		spectra = append(spectra, spec)
	}
	return spectra, nil
}

func applyMetadata(spec *models.LibrarySpectrum, meta map[string]interface{}) {
	if meta == nil {
		return
	}
	if v, ok := metaString(meta, "spectrum_id"); ok {
		spec.ID = v
	}
	if v, ok := metaString(meta, "compound_name"); ok {
		spec.CompoundName = v
	} else if v, ok := metaString(meta, "name"); ok {
		spec.CompoundName = v
	}
	if v, ok := metaFloat(meta, "precursor_mz"); ok {
		spec.PrecursorMZ = &v
	}
	if v, ok := metaFloat(meta, "retention_time"); ok {
		spec.RetentionTime = &v
	}
	if v, ok := metaString(meta, "smiles"); ok {
		spec.SMILES = v
	}
	if v, ok := metaString(meta, "inchi"); ok {
		spec.InChI = v
	}
	if v, ok := metaString(meta, "inchikey"); ok {
		spec.InChIKey = v
	}
}

func metaString(meta map[string]interface{}, key string) (string, bool) {
	v, ok := meta[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func metaFloat(meta map[string]interface{}, key string) (float64, bool) {
	v, ok := meta[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
