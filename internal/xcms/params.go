package xcms

import "fmt"

// Params mirror the XCMS workflow knobs: centWave peak detection, density
// grouping, and obiwarp RT correction.
type Params struct {
	PPM             float64    `yaml:"ppm"`
	PeakWidth       [2]float64 `yaml:"peakwidth"`
	SNThresh        float64    `yaml:"snthresh"`
	MZDiff          float64    `yaml:"mzdiff"`
	Prefilter       [2]float64 `yaml:"prefilter"`
	MinFrac         float64    `yaml:"minfrac"`
	MinSamp         int        `yaml:"minsamp"`
	BW              float64    `yaml:"bw"`
	MZWid           float64    `yaml:"mzwid"`
	DetectionMethod string     `yaml:"peak_detection_method"`
	GroupingMethod  string     `yaml:"peak_grouping_method"`
	RTCorrection    string     `yaml:"rt_correction_method"`
}

// DefaultParams returns the standard metabolomics profile.
func DefaultParams() Params {
	return Params{
		PPM:             10,
		PeakWidth:       [2]float64{5, 30},
		SNThresh:        6,
		MZDiff:          0.01,
		Prefilter:       [2]float64{3, 100},
		MinFrac:         0.5,
		MinSamp:         0,
		BW:              5,
		MZWid:           0.006,
		DetectionMethod: "centWave",
		GroupingMethod:  "density",
		RTCorrection:    "obiwarp",
	}
}

// ValidateParams normalizes zero values to defaults and rejects values the R
// workflow would choke on.
func ValidateParams(p *Params) error {
	defaults := DefaultParams()
	if p.PPM == 0 {
		p.PPM = defaults.PPM
	}
	if p.PeakWidth == [2]float64{} {
		p.PeakWidth = defaults.PeakWidth
	}
	if p.SNThresh == 0 {
		p.SNThresh = defaults.SNThresh
	}
	if p.MZDiff == 0 {
		p.MZDiff = defaults.MZDiff
	}
	if p.Prefilter == [2]float64{} {
		p.Prefilter = defaults.Prefilter
	}
	if p.MinFrac == 0 {
		p.MinFrac = defaults.MinFrac
	}
	if p.BW == 0 {
		p.BW = defaults.BW
	}
	if p.MZWid == 0 {
		p.MZWid = defaults.MZWid
	}
	if p.DetectionMethod == "" {
		p.DetectionMethod = defaults.DetectionMethod
	}
	if p.GroupingMethod == "" {
		p.GroupingMethod = defaults.GroupingMethod
	}
	if p.RTCorrection == "" {
		p.RTCorrection = defaults.RTCorrection
	}

	if p.PPM < 0 {
		return &ProcessingError{Stage: "params", Err: fmt.Errorf("ppm must be positive, got %g", p.PPM)}
	}
	if p.PeakWidth[0] <= 0 || p.PeakWidth[1] <= p.PeakWidth[0] {
		return &ProcessingError{Stage: "params", Err: fmt.Errorf("peakwidth must be an increasing positive pair, got %v", p.PeakWidth)}
	}
	if p.MinFrac < 0 || p.MinFrac > 1 {
		return &ProcessingError{Stage: "params", Err: fmt.Errorf("minfrac must be in [0,1], got %g", p.MinFrac)}
	}
	return nil
}
