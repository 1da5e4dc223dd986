package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mzmatch/mzmatch/internal/catalog"
	"github.com/mzmatch/mzmatch/internal/extract"
	"github.com/mzmatch/mzmatch/internal/feature"
	"github.com/mzmatch/mzmatch/internal/library"
	"github.com/mzmatch/mzmatch/internal/models"
	"github.com/mzmatch/mzmatch/internal/storage"
	"github.com/mzmatch/mzmatch/internal/workflow"
	"github.com/mzmatch/mzmatch/internal/xcms"
)

const maxUploadBytes = 2 << 30 // 2 GiB, instrument files are large

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "mzmatch MS2 spectral matching API",
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// uploadPath maps an uploaded or referenced file name into the upload
// directory. Base strips any directory components a client might smuggle in.
func (s *Server) uploadPath(name string) string {
	return filepath.Join(s.cfg.Storage.UploadDir, filepath.Base(name))
}

func (s *Server) saveUpload(r *http.Request, prefix string) (string, string, int64, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", 0, fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	if err := os.MkdirAll(s.cfg.Storage.UploadDir, 0755); err != nil {
		return "", "", 0, err
	}
	name := prefix + filepath.Base(header.Filename)
	path := filepath.Join(s.cfg.Storage.UploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", "", 0, err
	}
	defer dst.Close()
	size, err := io.Copy(dst, file)
	if err != nil {
		os.Remove(path)
		return "", "", 0, err
	}
	return name, path, size, nil
}

// uploadHandler saves a multipart upload under the given name prefix.
func (s *Server) uploadHandler(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, path, size, err := s.saveUpload(r, prefix)
		if err != nil {
			s.logger.Error("upload failed", zap.Error(err))
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Info("file uploaded", zap.String("name", name), zap.Int64("size", size))
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"filename": name,
			"path":     path,
			"size":     size,
		})
	}
}

func (s *Server) handleUploadLibrary(w http.ResponseWriter, r *http.Request) {
	name, path, size, err := s.saveUpload(r, "library_")
	if err != nil {
		s.logger.Error("library upload failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := map[string]interface{}{
		"filename": name,
		"path":     path,
		"size":     size,
	}
	// Parse immediately so a bad library is flagged at upload time, not at
	// match time. The file is kept either way.
	spectra, err := library.Load(path)
	if err != nil {
		resp["valid"] = false
		resp["error"] = err.Error()
	} else {
		resp["valid"] = true
		resp["spectra_count"] = len(spectra)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleXCMSPeaks(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("xcms_file")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "xcms_file is required")
		return
	}
	path := s.uploadPath(name)
	if _, err := os.Stat(path); err != nil {
		s.respondError(w, http.StatusNotFound, "XCMS file not found")
		return
	}
	table, err := feature.Load(path)
	if err != nil {
		s.logger.Error("failed to load peak table", zap.String("path", path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"peaks": table.Features()})
}

type xcmsProcessRequest struct {
	Files  []string    `json:"files"`
	Params xcms.Params `json:"params"`
}

func (s *Server) handleXCMSProcess(w http.ResponseWriter, r *http.Request) {
	if !xcms.Available(r.Context()) {
		s.respondError(w, http.StatusNotImplemented, "R with the XCMS package is not installed")
		return
	}
	var req xcmsProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	files := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		path := s.uploadPath(f)
		if _, err := os.Stat(path); err != nil {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("file not found: %s", f))
			return
		}
		files = append(files, path)
	}

	outputDir := filepath.Join(s.cfg.Storage.ResultsDir, "xcms_"+uuid.NewString())
	result, err := xcms.Process(r.Context(), s.logger, files, outputDir, req.Params)
	if err != nil {
		s.logger.Error("XCMS processing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type extractRequest struct {
	MZXMLFile string `json:"mzxml_file"`
	XCMSFile  string `json:"xcms_file"`
	Config    struct {
		MZTolerance  float64 `json:"mz_tolerance"`
		RTTolerance  float64 `json:"rt_tolerance"`
		MinIntensity float64 `json:"min_intensity"`
	} `json:"config"`
}

func (s *Server) handleExtractMS2(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mzxmlPath := s.uploadPath(req.MZXMLFile)
	xcmsPath := s.uploadPath(req.XCMSFile)
	if _, err := os.Stat(mzxmlPath); err != nil {
		s.respondError(w, http.StatusNotFound, "mzXML file not found")
		return
	}
	if _, err := os.Stat(xcmsPath); err != nil {
		s.respondError(w, http.StatusNotFound, "XCMS file not found")
		return
	}

	spectra, err := extract.ReadSpectra(mzxmlPath)
	if err != nil {
		s.logger.Error("failed to read instrument file", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	table, err := feature.Load(xcmsPath)
	if err != nil {
		s.logger.Error("failed to load peak table", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts := extract.Options{
		MZTolerance:  req.Config.MZTolerance,
		RTTolerance:  req.Config.RTTolerance,
		MinIntensity: req.Config.MinIntensity,
	}
	if opts.MZTolerance == 0 {
		opts.MZTolerance = s.cfg.Extraction.MZTolerance
	}
	if opts.RTTolerance == 0 {
		opts.RTTolerance = s.cfg.Extraction.RTTolerance
	}
	queries := extract.Correlate(spectra, table, opts)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"spectra_count": len(queries),
		"spectra":       queries,
	})
}

type matchRequest struct {
	MZXMLFile   string `json:"mzxml_file"`
	XCMSFile    string `json:"xcms_file"`
	LibraryFile string `json:"library_file"`
	Algorithm   string `json:"algorithm"`
	Config      struct {
		MZTolerance  float64 `json:"mz_tolerance"`
		RTTolerance  float64 `json:"rt_tolerance"`
		MinIntensity float64 `json:"min_intensity"`
		MinScore     float64 `json:"min_score"`
		TopN         int     `json:"top_n"`
	} `json:"config"`
}

func (s *Server) handleMatchSpectra(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mzxmlPath := s.uploadPath(req.MZXMLFile)
	xcmsPath := s.uploadPath(req.XCMSFile)
	libraryPath := s.uploadPath(req.LibraryFile)
	for _, check := range []struct{ path, what string }{
		{mzxmlPath, "mzXML file"},
		{xcmsPath, "XCMS file"},
		{libraryPath, "Library file"},
	} {
		if _, err := os.Stat(check.path); err != nil {
			s.respondError(w, http.StatusNotFound, check.what+" not found")
			return
		}
	}

	spectra, err := extract.ReadSpectra(mzxmlPath)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	table, err := feature.Load(xcmsPath)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	lib, err := library.Load(libraryPath)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jobID := uuid.NewString()
	job := &models.Job{ID: jobID, Status: models.JobProcessing, Message: "starting"}
	if err := s.store.CreateJob(r.Context(), job); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	algorithm := req.Algorithm
	if algorithm == "" {
		algorithm = s.cfg.Matching.Algorithm
	}
	opts := workflow.Options{
		Algorithm:          algorithm,
		MZTolerance:        orDefault(req.Config.MZTolerance, s.cfg.Matching.MZTolerance),
		RTTolerance:        orDefault(req.Config.RTTolerance, s.cfg.Matching.RTTolerance),
		ExtractMZTolerance: s.cfg.Extraction.MZTolerance,
		ExtractRTTolerance: s.cfg.Extraction.RTTolerance,
		MinIntensity:       orDefault(req.Config.MinIntensity, s.cfg.Extraction.MinIntensity),
		MinScore:           req.Config.MinScore,
		TopN:               req.Config.TopN,
		Workers:            s.cfg.Matching.Workers,
		ModelPath:          s.cfg.Model.Path,
		ModelDimensions:    s.cfg.Model.Dimensions,
		Notify: func(status string, progress float64, message string) {
			s.hub.Broadcast(models.ProgressUpdate{
				JobID:    jobID,
				Status:   status,
				Progress: progress,
				Message:  message,
			})
			_ = s.store.UpdateJob(r.Context(), jobID, status, progress, message)
		},
	}

	out, err := workflow.Run(r.Context(), s.logger, workflow.Inputs{
		Features: table,
		Spectra:  spectra,
		Library:  lib,
	}, opts)
	if err != nil {
		s.logger.Error("matching run failed", zap.String("job_id", jobID), zap.Error(err))
		_ = s.store.UpdateJob(r.Context(), jobID, models.JobError, 1, err.Error())
		s.hub.Broadcast(models.ProgressUpdate{JobID: jobID, Status: models.JobError, Progress: 1, Message: err.Error()})
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"job_id": jobID,
		"matching": map[string]interface{}{
			"algorithm": out.Algorithm,
			"requested": out.Requested,
			"fell_back": out.FellBack,
			"results":   out.Annotated,
			"summary":   out.Summary,
		},
		"extraction": map[string]interface{}{
			"spectra_count": out.Queries,
		},
	}
	if payload, err := json.Marshal(resp); err == nil {
		if err := s.store.SaveResult(r.Context(), jobID, payload); err != nil {
			s.logger.Warn("failed to persist result", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLibraryInfo(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("library_file")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "library_file is required")
		return
	}
	path := s.uploadPath(name)
	if _, err := os.Stat(path); err != nil {
		s.respondError(w, http.StatusNotFound, "Library file not found")
		return
	}
	spectra, err := library.Load(path)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, library.Summarize(spectra))
}

func (s *Server) handleLibrarySearch(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("library_file")
	query := r.URL.Query().Get("q")
	if name == "" || query == "" {
		s.respondError(w, http.StatusBadRequest, "library_file and q are required")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	path := s.uploadPath(name)
	if _, err := os.Stat(path); err != nil {
		s.respondError(w, http.StatusNotFound, "Library file not found")
		return
	}
	spectra, err := library.Load(path)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cat, err := catalog.New(spectra)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer cat.Close()

	hits, err := cat.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("library search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"hits": hits})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), 0, 50)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	payload, err := s.store.GetResult(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "result not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobCount, err := s.store.CountJobs(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"jobs":              jobCount,
		"progress_clients":  s.hub.ClientCount(),
		"xcms_available":    xcms.Available(r.Context()),
		"default_algorithm": s.cfg.Matching.Algorithm,
	}
	if s.watch != nil {
		resp["watched_directories"] = s.watch.Directories()
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.cfg.Storage.DatabasePath,
		s.cfg.Storage.UploadDir,
		s.cfg.Storage.ResultsDir,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
