package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hericlibong/Infograph2Data/constants"
	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
	"github.com/hericlibong/Infograph2Data/internal/extract"
)

type pagesResponse struct {
	FileID     string            `json:"file_id"`
	Filename   string            `json:"filename"`
	TotalPages int               `json:"total_pages"`
	Pages      []entity.PageInfo `json:"pages"`
}

// handlePages reports per-page dimensions and text-layer presence for a
// stored PDF.
func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	meta, err := s.files.Metadata(id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if meta.MIMEType != constants.MIMEPDF {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "File is not a PDF"))
		return
	}

	path, err := s.files.Path(id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	pages, err := s.pages.Pages(path)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pagesResponse{
		FileID:     meta.ID,
		Filename:   meta.Filename,
		TotalPages: len(pages),
		Pages:      pages,
	})
}

// handlePreview renders one PDF page as an image. scale and format come from
// query parameters; the response body is the raw image.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "page must be an integer"))
		return
	}

	meta, err := s.files.Metadata(id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if meta.MIMEType != constants.MIMEPDF {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "File is not a PDF"))
		return
	}

	scale := 1.5
	if raw := r.URL.Query().Get("scale"); raw != "" {
		scale, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, s.logger, common.NewError(common.KindInvalidInput, "scale must be a number"))
			return
		}
	}
	if scale < 0.5 || scale > 4.0 {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "scale must be between 0.5 and 4.0"))
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "png"
	}

	path, err := s.files.Path(id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	img, contentType, err := s.pages.Render(path, page, scale, format)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

type extractRequest struct {
	FileID   string    `json:"file_id"`
	Page     int       `json:"page"`
	BBox     []float64 `json:"bbox,omitempty"`
	Strategy string    `json:"strategy,omitempty"`
}

type extractResponse struct {
	JobID     string              `json:"job_id"`
	DatasetID string              `json:"dataset_id,omitempty"`
	Status    constants.JobStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}

// handleExtract validates the request against the stored file, then runs a
// synchronous extraction. The response reports the job's terminal state.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "request body must be valid JSON"))
		return
	}
	if req.FileID == "" {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "file_id is required"))
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}

	strategy := constants.StrategyAuto
	if req.Strategy != "" {
		parsed, ok := constants.ParseStrategy(req.Strategy)
		if !ok {
			writeError(w, s.logger, common.Errorf(common.KindInvalidInput, "unknown strategy: %s", req.Strategy))
			return
		}
		strategy = parsed
	}
	if len(req.BBox) != 0 && len(req.BBox) != 4 {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "bbox must have exactly four values"))
		return
	}

	meta, err := s.files.Metadata(req.FileID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if meta.Pages != nil && (req.Page < 1 || req.Page > *meta.Pages) {
		writeError(w, s.logger, common.Errorf(common.KindInvalidInput, "page %d out of range (1-%d)", req.Page, *meta.Pages))
		return
	}

	path, err := s.files.Path(req.FileID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	job, _, err := s.extract.Run(r.Context(), extract.Request{
		FilePath: path,
		FileID:   req.FileID,
		Page:     req.Page,
		BBox:     req.BBox,
		Strategy: strategy,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, extractResponse{
		JobID:     job.ID,
		DatasetID: job.DatasetID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
