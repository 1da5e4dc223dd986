// Package mzml reads MS spectra from mzML and mzXML instrument files.
package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/net/html/charset"

	"github.com/mzmatch/mzmatch/internal/models"
)

// Read reads all spectra from an mzML or mzXML document, dispatching on the
// root element. The whole document is decoded up front; the returned slice is
// a finite snapshot that callers can iterate any number of times.
func Read(r io.Reader) ([]models.RawSpectrum, error) {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel

	for {
		t, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("no mzML or mzXML content found")
			}
			return nil, err
		}
		se, ok := t.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "indexedmzML":
			// The spectrum list lives under the inner mzML element.
			continue
		case "mzML":
			var content mzMLContent
			if err := d.DecodeElement(&content, &se); err != nil {
				return nil, err
			}
			return content.spectra()
		case "mzXML":
			var content mzXMLContent
			if err := d.DecodeElement(&content, &se); err != nil {
				return nil, err
			}
			return content.spectra()
		default:
			return nil, fmt.Errorf("unsupported root element %q", se.Name.Local)
		}
	}
}

// ReadFile reads all spectra from the file at path.
func ReadFile(path string) ([]models.RawSpectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// decodeBase64Floats decodes a base64 payload into a float slice.
// bigEndian selects mzXML network byte order; mzML arrays are little-endian.
func decodeBase64Floats(data string, compressed, bits64, bigEndian bool) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 peak data: %w", err)
	}
	if compressed {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid zlib peak data: %w", err)
		}
		raw, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("decompressing peak data: %w", err)
		}
	}

	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}

	width := 4
	if bits64 {
		width = 8
	}
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("peak data length %d not a multiple of %d", len(raw), width)
	}
	out := make([]float64, len(raw)/width)
	for i := range out {
		chunk := raw[i*width : (i+1)*width]
		if bits64 {
			out[i] = math.Float64frombits(order.Uint64(chunk))
		} else {
			out[i] = float64(math.Float32frombits(order.Uint32(chunk)))
		}
	}
	return out, nil
}
