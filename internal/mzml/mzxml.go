package mzml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mzmatch/mzmatch/internal/models"
)

type mzXMLScan struct {
	MSLevel       int    `xml:"msLevel,attr"`
	RetentionTime string `xml:"retentionTime,attr"`
	PrecursorMZ   []struct {
		Value string `xml:",chardata"`
	} `xml:"precursorMz"`
	Peaks struct {
		Precision       int    `xml:"precision,attr"`
		CompressionType string `xml:"compressionType,attr"`
		Value           string `xml:",chardata"`
	} `xml:"peaks"`
	// Fragmentation scans are nested inside their parent survey scan.
	Children []mzXMLScan `xml:"scan"`
}

type mzXMLContent struct {
	MSRun struct {
		Scans []mzXMLScan `xml:"scan"`
	} `xml:"msRun"`
}

func (c *mzXMLContent) spectra() ([]models.RawSpectrum, error) {
	var out []models.RawSpectrum
	var walk func(scans []mzXMLScan) error
	walk = func(scans []mzXMLScan) error {
		for i := range scans {
			s, err := scans[i].convert()
			if err != nil {
				return fmt.Errorf("scan %d: %w", len(out), err)
			}
			out = append(out, s)
			if err := walk(scans[i].Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(c.MSRun.Scans); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *mzXMLScan) convert() (models.RawSpectrum, error) {
	raw := models.RawSpectrum{MSLevel: s.MSLevel}
	if raw.MSLevel == 0 {
		raw.MSLevel = 1
	}

	if rt, ok := parseXMLDuration(s.RetentionTime); ok {
		raw.RetentionTime = &rt
	}

	if len(s.PrecursorMZ) > 0 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s.PrecursorMZ[0].Value), 64); err == nil {
			mz := v
			raw.PrecursorMZ = &mz
		}
	}

	data := strings.TrimSpace(s.Peaks.Value)
	if data == "" {
		return raw, nil
	}
	// mzXML peaks are interleaved (m/z, intensity) pairs in network byte order.
	values, err := decodeBase64Floats(data, strings.EqualFold(s.Peaks.CompressionType, "zlib"), s.Peaks.Precision == 64, true)
	if err != nil {
		return raw, err
	}
	if len(values)%2 != 0 {
		return raw, fmt.Errorf("odd number of peak values (%d)", len(values))
	}
	raw.Peaks = make([]models.Peak, len(values)/2)
	for i := range raw.Peaks {
		raw.Peaks[i] = models.Peak{MZ: values[2*i], Intensity: values[2*i+1]}
	}
	return raw, nil
}

// parseXMLDuration parses the xsd:duration retention times used by mzXML,
// e.g. "PT120.5S" or "PT2.5M". Returns seconds.
func parseXMLDuration(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "PT") || len(s) < 4 {
		return 0, false
	}
	body := s[2:]
	unit := body[len(body)-1]
	v, err := strconv.ParseFloat(body[:len(body)-1], 64)
	if err != nil {
		return 0, false
	}
	switch unit {
	case 'S':
		return v, true
	case 'M':
		return v * 60, true
	default:
		return 0, false
	}
}
