package xcms

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateParamsFillsDefaults(t *testing.T) {
	var p Params
	if err := ValidateParams(&p); err != nil {
		t.Fatalf("ValidateParams: %v", err)
	}
	if p.PPM != 10 || p.DetectionMethod != "centWave" || p.RTCorrection != "obiwarp" {
		t.Errorf("defaults not applied: %+v", p)
	}
	if p.PeakWidth != [2]float64{5, 30} || p.Prefilter != [2]float64{3, 100} {
		t.Errorf("pair defaults not applied: %+v", p)
	}
}

func TestValidateParamsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative ppm", func(p *Params) { p.PPM = -1 }},
		{"inverted peakwidth", func(p *Params) { p.PeakWidth = [2]float64{30, 5} }},
		{"minfrac above one", func(p *Params) { p.MinFrac = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := ValidateParams(&p)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var perr *ProcessingError
			if !errors.As(err, &perr) || perr.Stage != "params" {
				t.Errorf("error = %v, want params-stage ProcessingError", err)
			}
		})
	}
}

func TestLoadParams(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xcms.yaml")
	yaml := "ppm: 25\npeakwidth: [10, 60]\npeak_grouping_method: nearest\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadParams(path)
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if p.PPM != 25 {
		t.Errorf("ppm = %g, want 25", p.PPM)
	}
	if p.PeakWidth != [2]float64{10, 60} {
		t.Errorf("peakwidth = %v, want [10 60]", p.PeakWidth)
	}
	if p.GroupingMethod != "nearest" {
		t.Errorf("grouping = %q, want nearest", p.GroupingMethod)
	}
	// Untouched keys keep their defaults.
	if p.SNThresh != 6 {
		t.Errorf("snthresh = %g, want default 6", p.SNThresh)
	}
}

func TestLoadParamsMissingFile(t *testing.T) {
	p, err := LoadParams("/nonexistent/xcms.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	// Still usable defaults on error.
	if p.PPM != 10 {
		t.Errorf("fallback ppm = %g, want 10", p.PPM)
	}
}

func TestRenderScript(t *testing.T) {
	params := DefaultParams()
	script, err := renderScript([]string{"sample1.mzXML", "sample2.mzXML"}, "out", params)
	if err != nil {
		t.Fatalf("renderScript: %v", err)
	}

	for _, want := range []string{
		"library(xcms)",
		`method = "centWave"`,
		"ppm = 10",
		"peakwidth = c(5, 30)",
		"prefilter = c(3, 100)",
		`method = "obiwarp"`,
		"fillPeaks(xset)",
		"PeakTable_verbose.csv",
		"sample.info.csv",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q", want)
		}
	}
	if !strings.Contains(script, "sample1.mzXML") || !strings.Contains(script, "sample2.mzXML") {
		t.Error("script missing input files")
	}
}

func TestProcessRejectsEmptyInput(t *testing.T) {
	_, err := Process(context.Background(), nil, nil, t.TempDir(), DefaultParams())
	var perr *ProcessingError
	if !errors.As(err, &perr) || perr.Stage != "setup" {
		t.Fatalf("error = %v, want setup-stage ProcessingError", err)
	}
}
