// Package server exposes the application over HTTP. Handlers are thin: they
// decode requests, call a service, and map the error taxonomy onto statuses.
package server

import (
	"log/slog"
	"net/http"

	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
	"github.com/hericlibong/Infograph2Data/internal/export"
	"github.com/hericlibong/Infograph2Data/internal/extract"
	"github.com/hericlibong/Infograph2Data/internal/repository"
	"github.com/hericlibong/Infograph2Data/internal/review"
	"github.com/hericlibong/Infograph2Data/internal/vision"
)

// Version is reported by the health endpoint.
const Version = "0.3.0"

// Pages is the slice of the PDF provider the HTTP layer uses directly.
type Pages interface {
	Pages(path string) ([]entity.PageInfo, error)
	PageCount(path string) (int, error)
	Render(path string, page int, scale float64, format string) ([]byte, string, error)
}

// Server wires the services into an http.Handler.
type Server struct {
	cfg      common.ServerConfig
	files    *repository.FileStore
	jobs     repository.JobRepository
	datasets repository.DatasetRepository
	pages    Pages
	extract  *extract.Service
	review   *review.Service
	vision   *vision.Service
	export   *export.Service
	logger   *slog.Logger
}

func New(
	cfg common.ServerConfig,
	files *repository.FileStore,
	jobs repository.JobRepository,
	datasets repository.DatasetRepository,
	pages Pages,
	extractSvc *extract.Service,
	reviewSvc *review.Service,
	visionSvc *vision.Service,
	exportSvc *export.Service,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		files:    files,
		jobs:     jobs,
		datasets: datasets,
		pages:    pages,
		extract:  extractSvc,
		review:   reviewSvc,
		vision:   visionSvc,
		export:   exportSvc,
		logger:   logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /files", s.handleUpload)
	mux.HandleFunc("GET /files", s.handleListFiles)
	mux.HandleFunc("GET /files/{id}", s.handleGetFile)
	mux.HandleFunc("DELETE /files/{id}", s.handleDeleteFile)
	mux.HandleFunc("GET /files/{id}/pages", s.handlePages)
	mux.HandleFunc("GET /files/{id}/pages/{page}/preview", s.handlePreview)

	mux.HandleFunc("POST /extract", s.handleExtract)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)

	mux.HandleFunc("GET /datasets", s.handleListDatasets)
	mux.HandleFunc("GET /datasets/{id}", s.handleGetDataset)
	mux.HandleFunc("PUT /datasets/{id}", s.handleUpdateDataset)

	mux.HandleFunc("GET /export/{id}", s.handleExport)

	mux.HandleFunc("POST /extract/identify", s.handleIdentify)
	mux.HandleFunc("GET /extract/identify/{id}", s.handleGetIdentification)
	mux.HandleFunc("POST /extract/run", s.handleVisionRun)

	return s.logRequests(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		s.logger.Debug("http.request", "method", r.Method, "path", r.URL.Path)
	})
}
