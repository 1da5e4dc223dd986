// Package server provides the HTTP API for mzmatch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mzmatch/mzmatch/internal/config"
	"github.com/mzmatch/mzmatch/internal/storage"
	"github.com/mzmatch/mzmatch/internal/watcher"
)

// Version is the API version reported at the root endpoint.
const Version = "1.0.0"

// Server is the HTTP server for the mzmatch API.
type Server struct {
	cfg    *config.Config
	store  storage.Store
	hub    *Hub
	watch  *watcher.Watcher
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil
// when directory watching is disabled.
func NewServer(cfg *config.Config, store storage.Store, hub *Hub, watch *watcher.Watcher, logger *zap.Logger) *Server {
	if hub == nil {
		hub = NewHub(logger)
	}
	return &Server{
		cfg:    cfg,
		store:  store,
		hub:    hub,
		watch:  watch,
		logger: logger,
	}
}

// Hub returns the progress hub so background jobs can broadcast.
func (s *Server) Hub() *Hub { return s.hub }

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Post("/api/upload/xcms", s.uploadHandler("xcms_"))
	r.Post("/api/upload/mzxml", s.uploadHandler("mzxml_"))
	r.Post("/api/upload/library", s.handleUploadLibrary)

	r.Get("/api/xcms/peaks", s.handleXCMSPeaks)
	r.Post("/api/xcms/process", s.handleXCMSProcess)
	r.Post("/api/extract/ms2", s.handleExtractMS2)
	r.Post("/api/match/spectra", s.handleMatchSpectra)

	r.Get("/api/library/info", s.handleLibraryInfo)
	r.Get("/api/library/search", s.handleLibrarySearch)

	r.Get("/api/jobs", s.handleListJobs)
	r.Get("/api/jobs/{id}", s.handleGetJob)
	r.Get("/api/results/{id}", s.handleGetResult)
	r.Get("/api/status", s.handleStatus)

	r.Get("/ws/progress", s.handleProgressWS)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
