package mzml

import (
	"fmt"
	"strconv"

	"github.com/mzmatch/mzmatch/internal/models"
)

// CV accessions used in mzML documents.
//
// MS:1000511 ms level
// MS:1000016 scan start time
// MS:1000744 selected ion m/z
// MS:1000514 m/z array
// MS:1000515 intensity array
// MS:1000521 32-bit float
// MS:1000523 64-bit float
// MS:1000574 zlib compression
// UO:0000010 second
// UO:0000031 minute
const (
	cvMSLevel        = "MS:1000511"
	cvScanStartTime  = "MS:1000016"
	cvSelectedIonMZ  = "MS:1000744"
	cvMZArray        = "MS:1000514"
	cvIntensityArray = "MS:1000515"
	cvFloat32        = "MS:1000521"
	cvFloat64        = "MS:1000523"
	cvZlib           = "MS:1000574"
	cvUnitSecond     = "UO:0000010"
	cvUnitMinute     = "UO:0000031"
)

type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}

type binaryDataArray struct {
	CvParams []cvParam `xml:"cvParam"`
	Binary   string    `xml:"binary"`
}

type mzMLSpectrum struct {
	CvParams []cvParam `xml:"cvParam"`
	ScanList struct {
		Scans []struct {
			CvParams []cvParam `xml:"cvParam"`
		} `xml:"scan"`
	} `xml:"scanList"`
	PrecursorList struct {
		Precursors []struct {
			SelectedIonList struct {
				Ions []struct {
					CvParams []cvParam `xml:"cvParam"`
				} `xml:"selectedIon"`
			} `xml:"selectedIonList"`
		} `xml:"precursor"`
	} `xml:"precursorList"`
	BinaryArrayList struct {
		Arrays []binaryDataArray `xml:"binaryDataArray"`
	} `xml:"binaryDataArrayList"`
}

type mzMLContent struct {
	Run struct {
		SpectrumList struct {
			Spectra []mzMLSpectrum `xml:"spectrum"`
		} `xml:"spectrumList"`
	} `xml:"run"`
}

func (c *mzMLContent) spectra() ([]models.RawSpectrum, error) {
	out := make([]models.RawSpectrum, 0, len(c.Run.SpectrumList.Spectra))
	for i := range c.Run.SpectrumList.Spectra {
		s, err := c.Run.SpectrumList.Spectra[i].convert()
		if err != nil {
			return nil, fmt.Errorf("spectrum %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (s *mzMLSpectrum) convert() (models.RawSpectrum, error) {
	raw := models.RawSpectrum{MSLevel: 1}

	for _, cv := range s.CvParams {
		if cv.Accession == cvMSLevel {
			if lvl, err := strconv.Atoi(cv.Value); err == nil {
				raw.MSLevel = lvl
			}
		}
	}

	for _, scan := range s.ScanList.Scans {
		for _, cv := range scan.CvParams {
			if cv.Accession != cvScanStartTime {
				continue
			}
			v, err := strconv.ParseFloat(cv.Value, 64)
			if err != nil {
				continue
			}
			// Scan start time is conventionally in minutes unless the unit
			// says seconds; retention times are carried in seconds.
			if cv.UnitAccession != cvUnitSecond {
				v *= 60
			}
			rt := v
			raw.RetentionTime = &rt
		}
	}

	for _, prec := range s.PrecursorList.Precursors {
		for _, ion := range prec.SelectedIonList.Ions {
			for _, cv := range ion.CvParams {
				if cv.Accession != cvSelectedIonMZ {
					continue
				}
				if v, err := strconv.ParseFloat(cv.Value, 64); err == nil {
					mz := v
					raw.PrecursorMZ = &mz
				}
			}
		}
	}

	var mzValues, intensityValues []float64
	for _, arr := range s.BinaryArrayList.Arrays {
		var compressed, bits64, isMZ, isIntensity bool
		for _, cv := range arr.CvParams {
			switch cv.Accession {
			case cvZlib:
				compressed = true
			case cvFloat64:
				bits64 = true
			case cvMZArray:
				isMZ = true
			case cvIntensityArray:
				isIntensity = true
			}
		}
		if !isMZ && !isIntensity {
			continue
		}
		values, err := decodeBase64Floats(arr.Binary, compressed, bits64, false)
		if err != nil {
			return raw, err
		}
		if isMZ {
			mzValues = values
		} else {
			intensityValues = values
		}
	}

	if len(mzValues) != len(intensityValues) {
		return raw, fmt.Errorf("m/z and intensity arrays differ in length (%d vs %d)", len(mzValues), len(intensityValues))
	}
	raw.Peaks = make([]models.Peak, len(mzValues))
	for i := range mzValues {
		raw.Peaks[i] = models.Peak{MZ: mzValues[i], Intensity: intensityValues[i]}
	}
	return raw, nil
}
