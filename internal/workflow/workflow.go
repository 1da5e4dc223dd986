// Package workflow wires the matching pipeline end to end: correlate raw MS2
// spectra with the feature table, resolve the scoring algorithm, run the
// matching loop, and aggregate results.
package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mzmatch/mzmatch/internal/config"
	"github.com/mzmatch/mzmatch/internal/extract"
	"github.com/mzmatch/mzmatch/internal/feature"
	"github.com/mzmatch/mzmatch/internal/matching"
	"github.com/mzmatch/mzmatch/internal/models"
	"github.com/mzmatch/mzmatch/internal/results"
	"github.com/mzmatch/mzmatch/internal/similarity"
)

// Notifier receives best-effort progress updates. It may be nil; the pipeline
// never depends on one being attached.
type Notifier func(status string, progress float64, message string)

// Inputs are the three data sets a matching run consumes.
type Inputs struct {
	Features *feature.Table
	Spectra  []models.RawSpectrum
	Library  []models.LibrarySpectrum
}

// Options control a matching run. Zero values fall back to the configured
// defaults before validation.
type Options struct {
	Algorithm          string
	MZTolerance        float64
	RTTolerance        float64
	ExtractMZTolerance float64
	ExtractRTTolerance float64
	MinIntensity       float64
	MinScore           float64
	TopN               int
	Workers            int
	ModelPath          string
	ModelDimensions    int
	Notify             Notifier
}

// Output is everything a completed run produces.
type Output struct {
	Annotated []models.AnnotatedFeature
	Summary   models.MatchSummary
	// Algorithm is the effective algorithm after any fallback.
	Algorithm string
	// Requested is the algorithm asked for; differs from Algorithm when the
	// learned model was unavailable.
	Requested string
	FellBack  bool
	Queries   int
}

// Run executes the full pipeline. Per-query failures are recorded in the
// result set; only run-level failures (bad options, no usable algorithm,
// cancellation) return an error.
func Run(ctx context.Context, logger *zap.Logger, in Inputs, opts Options) (*Output, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	applyOptionDefaults(&opts)
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if in.Features == nil || in.Features.Len() == 0 {
		return nil, fmt.Errorf("empty feature table")
	}
	if len(in.Library) == 0 {
		return nil, fmt.Errorf("empty reference library")
	}

	notify := func(status string, progress float64, message string) {
		if opts.Notify == nil {
			return
		}
		defer func() {
			// A broken notification sink must not take down the run.
			if r := recover(); r != nil {
				logger.Warn("progress notifier panicked", zap.Any("cause", r))
			}
		}()
		opts.Notify(status, progress, message)
	}

	notify(models.JobProcessing, 0.05, "correlating MS2 spectra with features")
	queries := extract.Correlate(in.Spectra, in.Features, extract.Options{
		MZTolerance:  opts.ExtractMZTolerance,
		RTTolerance:  opts.ExtractRTTolerance,
		MinIntensity: opts.MinIntensity,
	})
	logger.Info("correlated spectra",
		zap.Int("raw_spectra", len(in.Spectra)),
		zap.Int("queries", len(queries)))
	if len(queries) == 0 {
		return nil, fmt.Errorf("no MS2 spectra correlated with any feature")
	}

	resolution, err := similarity.Resolve(opts.Algorithm, opts.ModelPath, opts.ModelDimensions)
	if err != nil {
		return nil, err
	}
	if closer, ok := resolution.Scorer.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	if resolution.FellBack {
		logger.Warn("requested algorithm unavailable, falling back",
			zap.String("requested", resolution.Requested),
			zap.String("effective", resolution.Scorer.Name()))
	}

	notify(models.JobProcessing, 0.15,
		fmt.Sprintf("matching %d spectra with %s", len(queries), resolution.Scorer.Name()))
	matched := matching.MatchAll(ctx, queries, in.Library, resolution.Scorer, matching.Options{
		MZTolerance: opts.MZTolerance,
		MinScore:    opts.MinScore,
		TopN:        opts.TopN,
		Workers:     opts.Workers,
		Progress: func(completed, total int) {
			// Matching spans the 15%..90% band of the run.
			frac := 0.15 + 0.75*float64(completed)/float64(total)
			notify(models.JobProcessing, frac,
				fmt.Sprintf("matched %d/%d spectra", completed, total))
		},
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	notify(models.JobProcessing, 0.95, "aggregating results")
	annotated := results.Aggregate(in.Features, matched, resolution.Scorer.Name())
	summary := results.Summarize(annotated)
	logger.Info("matching run complete",
		zap.Int("features", summary.TotalFeatures),
		zap.Int("matched", summary.MatchedFeatures),
		zap.Float64("match_rate", summary.MatchRate))

	notify(models.JobCompleted, 1.0, "matching complete")
	return &Output{
		Annotated: annotated,
		Summary:   summary,
		Algorithm: resolution.Scorer.Name(),
		Requested: resolution.Requested,
		FellBack:  resolution.FellBack,
		Queries:   len(queries),
	}, nil
}

func applyOptionDefaults(opts *Options) {
	if opts.Algorithm == "" {
		opts.Algorithm = config.DefaultAlgorithm
	}
	if opts.MZTolerance == 0 {
		opts.MZTolerance = config.DefaultMZTolerance
	}
	if opts.RTTolerance == 0 {
		opts.RTTolerance = config.DefaultRTTolerance
	}
	if opts.ExtractMZTolerance == 0 {
		opts.ExtractMZTolerance = opts.MZTolerance
	}
	if opts.ExtractRTTolerance == 0 {
		opts.ExtractRTTolerance = opts.RTTolerance
	}
	if opts.TopN == 0 {
		opts.TopN = config.DefaultTopN
	}
}

func validateOptions(opts Options) error {
	mc := config.MatchingConfig{
		Algorithm:   opts.Algorithm,
		MZTolerance: opts.MZTolerance,
		RTTolerance: opts.RTTolerance,
		MinScore:    opts.MinScore,
		TopN:        opts.TopN,
		Workers:     opts.Workers,
	}
	return mc.Validate()
}
