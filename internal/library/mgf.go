package library

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mzmatch/mzmatch/internal/models"
)

// LoadMGF reads all spectra from a Mascot Generic Format document.
// Entries are delimited by BEGIN IONS / END IONS blocks.
func LoadMGF(r io.Reader) ([]models.LibrarySpectrum, error) {
	scanner := bufio.NewScanner(r)
	var (
		spectra []models.LibrarySpectrum
		current *models.LibrarySpectrum
		lineNum int
	)

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case line == "BEGIN IONS":
			current = &models.LibrarySpectrum{}
			continue
		case line == "END IONS":
			if current == nil {
				return nil, fmt.Errorf("line %d: END IONS without BEGIN IONS", lineNum)
			}
			if current.ID == "" {
				current.ID = fmt.Sprintf("mgf_%d", len(spectra))
			}
			spectra = append(spectra, *current)
			current = nil
			continue
		case current == nil:
			// Header lines outside entries are ignored.
			continue
		}

		if key, value, ok := strings.Cut(line, "="); ok {
			value = strings.TrimSpace(value)
			switch strings.ToUpper(strings.TrimSpace(key)) {
			case "PEPMASS":
				// PEPMASS may carry "mz intensity"; only the m/z is used.
				mzField := strings.Fields(value)
				if len(mzField) > 0 {
					if v, err := strconv.ParseFloat(mzField[0], 64); err == nil {
						current.PrecursorMZ = &v
					}
				}
			case "RTINSECONDS":
				if v, err := strconv.ParseFloat(value, 64); err == nil {
					current.RetentionTime = &v
				}
			case "TITLE", "NAME", "COMPOUND_NAME":
				if current.CompoundName == "" {
					current.CompoundName = value
				}
			case "SMILES":
				current.SMILES = value
			case "INCHI":
				current.InChI = value
			case "INCHIKEY":
				current.InChIKey = value
			case "SPECTRUMID", "SPECTRUM_ID":
				current.ID = value
			}
			continue
		}

		peak, err := parsePeakLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		current.Peaks = append(current.Peaks, peak)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		return nil, fmt.Errorf("unterminated BEGIN IONS block")
	}
	return spectra, nil
}
