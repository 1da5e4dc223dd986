package models

// Peak is a single m/z, intensity pair.
type Peak struct {
	MZ        float64 `json:"mz"`
	Intensity float64 `json:"intensity"`
}

// RawSpectrum is a spectrum as read from an instrument file, before any
// filtering or feature correlation. Precursor m/z and retention time are
// optional because some scans do not record them.
type RawSpectrum struct {
	MSLevel       int      `json:"ms_level"`
	PrecursorMZ   *float64 `json:"precursor_mz,omitempty"`
	RetentionTime *float64 `json:"retention_time,omitempty"` // seconds
	Peaks         []Peak   `json:"peaks"`
}

// QuerySpectrum is an MS2 spectrum that survived intensity filtering and was
// correlated to a chromatographic feature. Peaks is never empty.
type QuerySpectrum struct {
	FeatureName   string  `json:"feature_name"`
	PrecursorMZ   float64 `json:"precursor_mz"`
	RetentionTime float64 `json:"retention_time"` // seconds
	Peaks         []Peak  `json:"peaks"`
}

// LibrarySpectrum is a reference fragmentation spectrum with known compound identity.
type LibrarySpectrum struct {
	ID            string   `json:"id"`
	CompoundName  string   `json:"compound_name"`
	PrecursorMZ   *float64 `json:"precursor_mz,omitempty"`
	RetentionTime *float64 `json:"retention_time,omitempty"`
	SMILES        string   `json:"smiles,omitempty"`
	InChI         string   `json:"inchi,omitempty"`
	InChIKey      string   `json:"inchikey,omitempty"`
	Peaks         []Peak   `json:"peaks"`
}
