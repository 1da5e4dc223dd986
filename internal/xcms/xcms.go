// Package xcms drives R's XCMS package as an external process to turn raw
// instrument files into a grouped, RT-corrected peak table.
package xcms

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// PeakTableFile and SampleInfoFile are the names XCMS output is written under
// inside the run's output directory.
const (
	PeakTableFile  = "PeakTable_verbose.csv"
	SampleInfoFile = "sample.info.csv"
)

// ProcessingError is returned when an XCMS run fails at the process level.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("xcms %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Result describes a completed XCMS run.
type Result struct {
	PeakTablePath  string `json:"peak_table"`
	SampleInfoPath string `json:"sample_info,omitempty"`
	OutputDir      string `json:"output_dir"`
}

// Available reports whether Rscript with the XCMS package can be invoked.
// The probe is cheap enough to run per request but callers usually check once
// at startup.
func Available(ctx context.Context) bool {
	probe, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(probe, "Rscript", "--version").Run(); err != nil {
		return false
	}
	lib, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return exec.CommandContext(lib, "Rscript", "-e", "library(xcms)").Run() == nil
}

// Process runs peak detection, grouping, RT correction, and peak filling over
// the given instrument files, writing the peak table into outputDir.
func Process(ctx context.Context, logger *zap.Logger, files []string, outputDir string, params Params) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(files) == 0 {
		return nil, &ProcessingError{Stage: "setup", Err: fmt.Errorf("no input files")}
	}
	if err := ValidateParams(&params); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, &ProcessingError{Stage: "setup", Err: err}
	}

	script, err := renderScript(files, outputDir, params)
	if err != nil {
		return nil, &ProcessingError{Stage: "script", Err: err}
	}
	scriptFile, err := os.CreateTemp("", "xcms-*.R")
	if err != nil {
		return nil, &ProcessingError{Stage: "script", Err: err}
	}
	defer os.Remove(scriptFile.Name())
	if _, err := scriptFile.WriteString(script); err != nil {
		scriptFile.Close()
		return nil, &ProcessingError{Stage: "script", Err: err}
	}
	scriptFile.Close()

	logger.Info("starting XCMS processing",
		zap.Int("files", len(files)),
		zap.String("output_dir", outputDir))

	cmd := exec.CommandContext(ctx, "Rscript", scriptFile.Name())
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &ProcessingError{
			Stage: "run",
			Err:   fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))),
		}
	}

	peakTable := filepath.Join(outputDir, PeakTableFile)
	if _, err := os.Stat(peakTable); err != nil {
		return nil, &ProcessingError{Stage: "output", Err: fmt.Errorf("peak table not generated: %w", err)}
	}
	result := &Result{PeakTablePath: peakTable, OutputDir: outputDir}
	sampleInfo := filepath.Join(outputDir, SampleInfoFile)
	if _, err := os.Stat(sampleInfo); err == nil {
		result.SampleInfoPath = sampleInfo
	}
	logger.Info("XCMS processing complete", zap.String("peak_table", peakTable))
	return result, nil
}

// LoadParams reads XCMS parameters from a YAML file, filling gaps with
// defaults.
func LoadParams(path string) (Params, error) {
	params := DefaultParams()
	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("reading xcms params: %w", err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return DefaultParams(), fmt.Errorf("parsing xcms params: %w", err)
	}
	return params, nil
}
