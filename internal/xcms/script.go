package xcms

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

var scriptTemplate = template.Must(template.New("xcms").Funcs(template.FuncMap{
	"rstrings": func(paths []string) string {
		quoted := make([]string, len(paths))
		for i, p := range paths {
			quoted[i] = fmt.Sprintf("%q", p)
		}
		return "c(" + strings.Join(quoted, ", ") + ")"
	},
}).Parse(`library(xcms)
library(CAMERA)

mzxml_files <- {{rstrings .Files}}
output_dir <- "{{.OutputDir}}"

dir.create(output_dir, showWarnings = FALSE, recursive = TRUE)

xset <- xcmsSet(
    files = mzxml_files,
    method = "{{.Params.DetectionMethod}}",
    ppm = {{.Params.PPM}},
    peakwidth = c({{index .Params.PeakWidth 0}}, {{index .Params.PeakWidth 1}}),
    snthresh = {{.Params.SNThresh}},
    mzdiff = {{.Params.MZDiff}},
    prefilter = c({{index .Params.Prefilter 0}}, {{index .Params.Prefilter 1}})
)

xset <- group(
    xset,
    method = "{{.Params.GroupingMethod}}",
    bw = {{.Params.BW}},
    mzwid = {{.Params.MZWid}},
    minfrac = {{.Params.MinFrac}},
    minsamp = {{.Params.MinSamp}}
)

xset <- retcor(
    xset,
    method = "{{.Params.RTCorrection}}"
)

xset <- group(
    xset,
    method = "{{.Params.GroupingMethod}}",
    bw = {{.Params.BW}},
    mzwid = {{.Params.MZWid}},
    minfrac = {{.Params.MinFrac}},
    minsamp = {{.Params.MinSamp}}
)

xset <- fillPeaks(xset)

peak_table <- peakTable(xset)
write.csv(peak_table, file = file.path(output_dir, "PeakTable_verbose.csv"), row.names = FALSE)

sample_names <- basename(mzxml_files)
sample_info <- data.frame(
    sample.name = sample_names,
    group = rep(".", length(sample_names)),
    stringsAsFactors = FALSE
)
write.csv(sample_info, file = file.path(output_dir, "sample.info.csv"), row.names = FALSE)

cat("XCMS processing completed successfully\n")
`))

func renderScript(files []string, outputDir string, params Params) (string, error) {
	abs := make([]string, len(files))
	for i, f := range files {
		p, err := filepath.Abs(f)
		if err != nil {
			return "", err
		}
		abs[i] = p
	}
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	err = scriptTemplate.Execute(&sb, struct {
		Files     []string
		OutputDir string
		Params    Params
	}{Files: abs, OutputDir: absOut, Params: params})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
