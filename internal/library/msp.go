package library

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mzmatch/mzmatch/internal/models"
)

// MSPReader provides streaming access to NIST MSP format libraries.
type MSPReader struct {
	scanner     *bufio.Scanner
	lineNum     int
	count       int
	pending     string
	hasPending  bool
	currentSpec *models.LibrarySpectrum
	err         error
}

// NewMSPReader creates a streaming MSP reader.
func NewMSPReader(r io.Reader) *MSPReader {
	return &MSPReader{scanner: bufio.NewScanner(r)}
}

// Next advances to the next spectrum. Returns false when no more spectra or on error.
func (r *MSPReader) Next() bool {
	r.currentSpec = nil
	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum.
func (r *MSPReader) Spectrum() *models.LibrarySpectrum { return r.currentSpec }

// Err returns any error encountered during reading.
func (r *MSPReader) Err() error { return r.err }

// nextLine returns the pushed-back line if one is pending, otherwise the
// next line from the scanner.
func (r *MSPReader) nextLine() (string, bool) {
	if r.hasPending {
		r.hasPending = false
		return r.pending, true
	}
	if r.scanner.Scan() {
		r.lineNum++
		return r.scanner.Text(), true
	}
	return "", false
}

func (r *MSPReader) pushBack(line string) {
	r.pending = line
	r.hasPending = true
}

func (r *MSPReader) readSpectrum() (*models.LibrarySpectrum, error) {
	spec := &models.LibrarySpectrum{}

	var numPeaks int
	inPeaks := false

	for {
		raw, ok := r.nextLine()
		if !ok {
			break
		}
		line := strings.TrimSpace(raw)

		// Skip empty lines between entries.
		if line == "" && spec.CompoundName == "" && len(spec.Peaks) == 0 {
			continue
		}

		if inPeaks {
			if line == "" {
				return r.finish(spec), nil
			}
			peak, err := parsePeakLine(line)
			if err != nil {
				// A short peak block may run straight into the next
				// entry's header line; hand it back for the next spectrum.
				if strings.Contains(line, ":") {
					r.pushBack(line)
					return r.finish(spec), nil
				}
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			spec.Peaks = append(spec.Peaks, peak)
			if len(spec.Peaks) >= numPeaks {
				return r.finish(spec), nil
			}
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "name", "compound_name":
			spec.CompoundName = value
		case "precursormz", "precursor_mz", "precursor m/z":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				spec.PrecursorMZ = &v
			}
		case "retentiontime", "retention_time", "rt":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				spec.RetentionTime = &v
			}
		case "smiles":
			spec.SMILES = value
		case "inchi":
			spec.InChI = value
		case "inchikey":
			spec.InChIKey = value
		case "db#", "id", "spectrum_id", "spectrumid":
			spec.ID = value
		case "num peaks", "num_peaks", "numpeaks":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
			}
			numPeaks = n
			inPeaks = true
			if numPeaks == 0 {
				return r.finish(spec), nil
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	// A partially read spectrum at EOF is still returned.
	if spec.CompoundName != "" || len(spec.Peaks) > 0 {
		return r.finish(spec), nil
	}
	return nil, io.EOF
}

func (r *MSPReader) finish(spec *models.LibrarySpectrum) *models.LibrarySpectrum {
	r.count++
	if spec.ID == "" {
		spec.ID = fmt.Sprintf("msp_%d", r.count-1)
	}
	return spec
}

// parsePeakLine parses "mz intensity" separated by whitespace, tab, or semicolon.
func parsePeakLine(line string) (models.Peak, error) {
	fields := strings.FieldsFunc(line, func(c rune) bool {
		return c == ' ' || c == '\t' || c == ';'
	})
	if len(fields) < 2 {
		return models.Peak{}, fmt.Errorf("invalid peak line %q", line)
	}
	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return models.Peak{}, fmt.Errorf("invalid peak m/z %q", fields[0])
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return models.Peak{}, fmt.Errorf("invalid peak intensity %q", fields[1])
	}
	return models.Peak{MZ: mz, Intensity: intensity}, nil
}

// LoadMSP reads all spectra from an MSP document.
func LoadMSP(r io.Reader) ([]models.LibrarySpectrum, error) {
	reader := NewMSPReader(r)
	var spectra []models.LibrarySpectrum
	for reader.Next() {
		spectra = append(spectra, *reader.Spectrum())
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return spectra, nil
}
