// Package feature provides the chromatographic feature table and the
// tolerance-windowed nearest-feature search.
package feature

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mzmatch/mzmatch/internal/models"
)

// MalformedTableError reports a peak table that could not be parsed at all.
// Missing optional columns in individual rows do not produce this error.
type MalformedTableError struct {
	Path string
	Err  error
}

func (e *MalformedTableError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("malformed peak table %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("malformed peak table: %v", e.Err)
}

func (e *MalformedTableError) Unwrap() error { return e.Err }

// reservedColumns are XCMS peak table metadata columns. Every other column is
// treated as a per-sample intensity column.
var reservedColumns = map[string]bool{
	"name":   true,
	"mz":     true,
	"mzmin":  true,
	"mzmax":  true,
	"rt":     true,
	"rtmin":  true,
	"rtmax":  true,
	"npeaks": true,
	".":      true,
}

// Table is an immutable, name-indexed collection of chromatographic features.
type Table struct {
	features []models.Feature
	byName   map[string]int
}

// New builds a table from already-parsed features.
func New(features []models.Feature) *Table {
	t := &Table{
		features: features,
		byName:   make(map[string]int, len(features)),
	}
	for i, f := range features {
		if _, ok := t.byName[f.Name]; !ok {
			t.byName[f.Name] = i
		}
	}
	return t
}

// Load reads a peak table file, dispatching on file extension.
// CSV is the native XCMS export; XLSX covers spreadsheet re-exports.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".tsv":
		f, err := os.Open(path)
		if err != nil {
			return nil, &MalformedTableError{Path: path, Err: err}
		}
		defer f.Close()
		t, err := LoadCSV(f)
		if err != nil {
			return nil, &MalformedTableError{Path: path, Err: err}
		}
		return t, nil
	case ".xlsx":
		t, err := LoadXLSX(path)
		if err != nil {
			return nil, &MalformedTableError{Path: path, Err: err}
		}
		return t, nil
	default:
		return nil, &MalformedTableError{Path: path, Err: fmt.Errorf("unsupported peak table format %q", filepath.Ext(path))}
	}
}

// LoadCSV parses an XCMS peak table from CSV. Rows with missing or
// unparsable optional fields keep defaults (0 for numbers, empty string for
// name); only a structurally unreadable file fails.
func LoadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty peak table")
	}
	return fromRecords(records)
}

// LoadXLSX parses an XCMS peak table from the first sheet of an xlsx file.
func LoadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty peak table")
	}
	return fromRecords(rows)
}

func fromRecords(records [][]string) (*Table, error) {
	header := records[0]
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	features := make([]models.Feature, 0, len(records)-1)
	for _, row := range records[1:] {
		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		f := models.Feature{
			Name:        get("name"),
			MZ:          parseFloat(get("mz")),
			MZMin:       parseFloat(get("mzmin")),
			MZMax:       parseFloat(get("mzmax")),
			RT:          parseFloat(get("rt")),
			RTMin:       parseFloat(get("rtmin")),
			RTMax:       parseFloat(get("rtmax")),
			PeakCount:   parseInt(get("npeaks")),
			Intensities: make(map[string]float64),
		}
		for name, idx := range cols {
			if reservedColumns[name] || idx >= len(row) {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
			if err != nil {
				continue
			}
			f.Intensities[header[idx]] = v
		}
		features = append(features, f)
	}
	return New(features), nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	return v
}

func parseInt(s string) int {
	v, err := strconv.ParseFloat(s, 64) // npeaks is sometimes written as "3.0"
	if err != nil {
		return 0
	}
	return int(v)
}

// Features returns the underlying feature slice. Callers must not mutate it.
func (t *Table) Features() []models.Feature { return t.features }

// Len returns the number of features.
func (t *Table) Len() int { return len(t.features) }

// FindByName returns the feature with the given name, or nil.
func (t *Table) FindByName(name string) *models.Feature {
	idx, ok := t.byName[name]
	if !ok {
		return nil
	}
	return &t.features[idx]
}

// Range is an optional closed interval; nil bounds are unbounded.
type Range struct {
	Min *float64
	Max *float64
}

func (r Range) contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Filter returns a new table with features inside the given m/z and RT ranges.
func (t *Table) Filter(mz, rt Range) *Table {
	var kept []models.Feature
	for _, f := range t.features {
		if mz.contains(f.MZ) && rt.contains(f.RT) {
			kept = append(kept, f)
		}
	}
	return New(kept)
}
