package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
)

type identifyRequest struct {
	FileID string `json:"file_id"`
	Page   *int   `json:"page,omitempty"`
}

// handleIdentify runs phase one of the vision flow: render the page, ask the
// model what data-bearing elements it sees, and store the result for a later
// confirmed extraction.
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "request body must be valid JSON"))
		return
	}
	if req.FileID == "" {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "file_id is required"))
		return
	}

	ident, err := s.vision.Identify(r.Context(), req.FileID, req.Page)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

func (s *Server) handleGetIdentification(w http.ResponseWriter, r *http.Request) {
	ident, err := s.vision.Identification(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

type visionRunRequest struct {
	IdentificationID string                   `json:"identification_id"`
	Items            []entity.ItemSelection   `json:"items"`
	Options          entity.ExtractionOptions `json:"options"`
}

type visionRunResponse struct {
	JobID            string            `json:"job_id"`
	IdentificationID string            `json:"identification_id"`
	Datasets         []*entity.Dataset `json:"datasets"`
	Status           string            `json:"status"`
	DurationMS       int64             `json:"duration_ms"`
}

// handleVisionRun runs phase two: extract the confirmed items into datasets.
// The run is synchronous, so the response always reports a completed status.
func (s *Server) handleVisionRun(w http.ResponseWriter, r *http.Request) {
	var req visionRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "request body must be valid JSON"))
		return
	}
	if req.IdentificationID == "" {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "identification_id is required"))
		return
	}
	if len(req.Items) == 0 {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "at least one item must be selected"))
		return
	}

	start := time.Now()
	datasets, err := s.vision.Run(r.Context(), req.IdentificationID, req.Items, req.Options)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, visionRunResponse{
		JobID:            common.ShortID("job"),
		IdentificationID: req.IdentificationID,
		Datasets:         datasets,
		Status:           "completed",
		DurationMS:       time.Since(start).Milliseconds(),
	})
}
