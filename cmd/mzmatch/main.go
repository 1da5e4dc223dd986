// Package main is the mzmatch CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/mzmatch/mzmatch/internal/catalog"
	"github.com/mzmatch/mzmatch/internal/cli"
	"github.com/mzmatch/mzmatch/internal/config"
	"github.com/mzmatch/mzmatch/internal/extract"
	"github.com/mzmatch/mzmatch/internal/feature"
	"github.com/mzmatch/mzmatch/internal/library"
	"github.com/mzmatch/mzmatch/internal/server"
	"github.com/mzmatch/mzmatch/internal/storage"
	"github.com/mzmatch/mzmatch/internal/watcher"
	"github.com/mzmatch/mzmatch/internal/workflow"
	"github.com/mzmatch/mzmatch/internal/xcms"
	"github.com/mzmatch/mzmatch/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mzmatch/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "mzmatch server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadConfigOrDefaults is loadConfig for local (non-server) commands: a missing
// config file is not an error, built-in defaults apply instead.
func loadConfigOrDefaults(path string) *config.Config {
	cfg, _, err := loadConfig(path)
	if err != nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	return cfg
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "match":
		runMatch()
	case "extract":
		runExtract()
	case "library":
		runLibrary()
	case "xcms":
		runXCMS()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("mzmatch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (uploads, matching progress, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to initialize job store", zap.Error(err))
	}
	defer store.Close()

	watchDirs := cfg.Watch.Directories
	if len(watchDirs) == 0 {
		watchDirs = []string{cfg.Storage.UploadDir}
	}
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.New(
		watchDirs,
		cfg.Watch.Extensions,
		func(path string) {
			logger.Info("raw data file ready", zap.String("path", path))
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExisting()

	srv := server.NewServer(cfg, store, server.NewHub(logger), watchSvc, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runMatch() {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	featuresPath := fs.String("features", "", "XCMS peak table (CSV or XLSX)")
	mzxmlPath := fs.String("mzxml", "", "raw data file (mzXML/mzML)")
	libraryPath := fs.String("library", "", "spectral library (MSP or MGF)")
	algorithm := fs.String("algorithm", "", "matching algorithm: ms2query, cosine, modified_cosine, or dot_product (default from config)")
	mzTolerance := fs.Float64("mz-tolerance", 0, "precursor m/z tolerance in Da (default from config)")
	rtTolerance := fs.Float64("rt-tolerance", 0, "retention time tolerance in seconds (default from config)")
	minScore := fs.Float64("min-score", 0, "minimum candidate score to keep")
	topN := fs.Int("top-n", 0, "maximum candidates per query (default from config)")
	outputFormat := fs.String("output", "text", "output format: text, csv, or json")
	outPath := fs.String("out", "", "write output to file instead of stdout")
	progress := fs.Bool("progress", false, "print matching progress to stderr")
	_ = fs.Parse(os.Args[2:])

	if *featuresPath == "" || *mzxmlPath == "" || *libraryPath == "" {
		fmt.Println("Usage: mzmatch match --features <peaks.csv> --mzxml <file.mzXML> --library <lib.msp> [flags]")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg := loadConfigOrDefaults(*configPath)
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	table, err := feature.Load(*featuresPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load peak table: %v\n", err)
		os.Exit(1)
	}
	spectra, err := extract.ReadSpectra(*mzxmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read raw data: %v\n", err)
		os.Exit(1)
	}
	lib, err := library.Load(*libraryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load library: %v\n", err)
		os.Exit(1)
	}

	opts := workflow.Options{
		Algorithm:       orString(*algorithm, cfg.Matching.Algorithm),
		MZTolerance:     orFloat(*mzTolerance, cfg.Matching.MZTolerance),
		RTTolerance:     orFloat(*rtTolerance, cfg.Matching.RTTolerance),
		MinIntensity:    cfg.Extraction.MinIntensity,
		MinScore:        orFloat(*minScore, cfg.Matching.MinScore),
		TopN:            orInt(*topN, cfg.Matching.TopN),
		Workers:         cfg.Matching.Workers,
		ModelPath:       cfg.Model.Path,
		ModelDimensions: cfg.Model.Dimensions,
	}
	if *progress {
		opts.Notify = func(status string, p float64, message string) {
			fmt.Fprintf(os.Stderr, "[%3.0f%%] %s: %s\n", p*100, status, message)
		}
	}

	out, err := workflow.Run(context.Background(), logger, workflow.Inputs{
		Features: table,
		Spectra:  spectra,
		Library:  lib,
	}, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Matching failed: %v\n", err)
		os.Exit(1)
	}
	if out.FellBack {
		fmt.Fprintf(os.Stderr, "Note: %s model unavailable, fell back to %s\n", out.Requested, out.Algorithm)
	}

	w := io.Writer(os.Stdout)
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := cli.WriteMatchResults(w, out, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	featuresPath := fs.String("features", "", "XCMS peak table (CSV or XLSX)")
	mzxmlPath := fs.String("mzxml", "", "raw data file (mzXML/mzML)")
	mzTolerance := fs.Float64("mz-tolerance", 0, "precursor m/z tolerance in Da (default from config)")
	rtTolerance := fs.Float64("rt-tolerance", 0, "retention time tolerance in seconds (default from config)")
	minIntensity := fs.Float64("min-intensity", 0, "minimum fragment intensity (default from config)")
	_ = fs.Parse(os.Args[2:])

	if *featuresPath == "" || *mzxmlPath == "" {
		fmt.Println("Usage: mzmatch extract --features <peaks.csv> --mzxml <file.mzXML> [flags]")
		os.Exit(1)
	}

	cfg := loadConfigOrDefaults(*configPath)

	table, err := feature.Load(*featuresPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load peak table: %v\n", err)
		os.Exit(1)
	}
	spectra, err := extract.ReadSpectra(*mzxmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read raw data: %v\n", err)
		os.Exit(1)
	}

	queries := extract.Correlate(spectra, table, extract.Options{
		MZTolerance:  orFloat(*mzTolerance, cfg.Extraction.MZTolerance),
		RTTolerance:  orFloat(*rtTolerance, cfg.Extraction.RTTolerance),
		MinIntensity: orFloat(*minIntensity, cfg.Extraction.MinIntensity),
	})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]interface{}{
		"spectra_count": len(queries),
		"spectra":       queries,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runLibrary() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: mzmatch library <info|search> [flags] <library-file> [query]")
		fmt.Println("  mzmatch library info <lib.msp>             Show library statistics")
		fmt.Println("  mzmatch library search <lib.msp> <query>   Search compounds by name, InChIKey, or m/z")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("library", flag.ExitOnError)
	limit := fs.Int("limit", 10, "number of search results")
	_ = fs.Parse(os.Args[3:])

	switch sub {
	case "info":
		if fs.NArg() < 1 {
			fmt.Println("Usage: mzmatch library info <lib.msp>")
			os.Exit(1)
		}
		lib, err := library.Load(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load library: %v\n", err)
			os.Exit(1)
		}
		info := library.Summarize(lib)
		fmt.Printf("spectra:    %d\n", info.Count)
		fmt.Printf("compounds:  %d\n", len(info.Compounds))
		if info.PrecursorMZRange != nil {
			fmt.Printf("m/z range:  %.4f - %.4f\n", info.PrecursorMZRange.Min, info.PrecursorMZRange.Max)
		}
	case "search":
		if fs.NArg() < 2 {
			fmt.Println("Usage: mzmatch library search <lib.msp> <query>")
			os.Exit(1)
		}
		lib, err := library.Load(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load library: %v\n", err)
			os.Exit(1)
		}
		query := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		cat, err := catalog.New(lib)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build catalog: %v\n", err)
			os.Exit(1)
		}
		defer cat.Close()
		hits, err := cat.Search(context.Background(), query, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if len(hits) == 0 {
			fmt.Println("No matches")
			return
		}
		for _, h := range hits {
			fmt.Printf("%-40s  m/z %-10.4f  %s\n", utils.Truncate(h.CompoundName, 40), h.PrecursorMZ, h.InChIKey)
		}
	default:
		fmt.Printf("Unknown library subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runXCMS() {
	fs := flag.NewFlagSet("xcms", flag.ExitOnError)
	paramsPath := fs.String("params", "", "XCMS parameters YAML file (defaults used when omitted)")
	outDir := fs.String("out", "xcms_output", "output directory for the peak table")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mzmatch xcms [flags] <file.mzXML> [more files...]")
		os.Exit(1)
	}

	ctx := context.Background()
	if !xcms.Available(ctx) {
		fmt.Fprintln(os.Stderr, "Rscript with the xcms package is required but not available")
		os.Exit(1)
	}

	params := xcms.DefaultParams()
	if *paramsPath != "" {
		var err error
		params, err = xcms.LoadParams(*paramsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load parameters: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := utils.NewLogger(false)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	res, err := xcms.Process(ctx, logger, fs.Args(), *outDir, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "XCMS processing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Peak table written: %s\n", res.PeakTablePath)
	fmt.Printf("Sample info:        %s\n", res.SampleInfoPath)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	status := map[string]interface{}{}
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	} else {
		cfg := loadConfigOrDefaults(*configPath)
		store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open job store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		jobCount, err := store.CountJobs(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count jobs failed: %v\n", err)
			os.Exit(1)
		}
		status["jobs"] = jobCount
		status["xcms_available"] = xcms.Available(context.Background())
		status["default_algorithm"] = cfg.Matching.Algorithm
		status["database_path"] = cfg.Storage.DatabasePath
		if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.UploadDir, cfg.Storage.ResultsDir); err == nil {
			status["disk_usage_bytes"] = diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		for _, k := range sortedKeys(status) {
			fmt.Printf("%-20s %v\n", k+":", status[k])
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (map[string]interface{}, error) {
	u, err := url.JoinPath(serverURL, "/api/status")
	if err != nil {
		return nil, err
	}
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return s, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func printUsage() {
	fmt.Println(`mzmatch - MS2 spectral matching for untargeted metabolomics

Usage:
  mzmatch server [flags]           Start the HTTP server
  mzmatch match [flags]            Run feature-to-library matching locally
  mzmatch extract [flags]          Extract feature-correlated MS2 spectra
  mzmatch library <info|search>    Inspect or search a spectral library
  mzmatch xcms [flags] <files...>  Run XCMS peak picking via Rscript
  mzmatch status [flags]           Show server/storage status
  mzmatch version                  Show version
  mzmatch help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mzmatch/config.yaml)
  --debug            Enable debug logging (uploads, matching progress, etc.)

Match Flags:
  --features string      XCMS peak table (CSV or XLSX, required)
  --mzxml string         Raw data file (mzXML/mzML, required)
  --library string       Spectral library (MSP or MGF, required)
  --algorithm string     ms2query, cosine, modified_cosine, or dot_product
  --mz-tolerance float   Precursor m/z tolerance in Da
  --rt-tolerance float   Retention time tolerance in seconds
  --min-score float      Minimum candidate score to keep
  --top-n int            Maximum candidates per query
  --output string        text, csv, or json (default: text)
  --out string           Write output to file instead of stdout
  --progress             Print matching progress to stderr

Extract Flags:
  --features string       XCMS peak table (required)
  --mzxml string          Raw data file (required)
  --mz-tolerance float    Precursor m/z tolerance in Da
  --rt-tolerance float    Retention time tolerance in seconds
  --min-intensity float   Minimum fragment intensity

XCMS Flags:
  --params string    Parameters YAML file (defaults used when omitted)
  --out string       Output directory (default: xcms_output)

Examples:
  mzmatch server
  mzmatch match --features peaks.csv --mzxml run01.mzXML --library gnps.msp
  mzmatch match --features peaks.csv --mzxml run01.mzXML --library gnps.msp --output csv --out results.csv
  mzmatch extract --features peaks.csv --mzxml run01.mzXML
  mzmatch library info gnps.msp
  mzmatch library search gnps.msp caffeine
  mzmatch xcms --out xcms_output run01.mzXML run02.mzXML
  mzmatch status --output json`)
}
