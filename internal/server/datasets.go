package server

import (
	"encoding/json"
	"net/http"

	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
)

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.datasets.List(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	summaries := make([]entity.DatasetSummary, 0, len(datasets))
	for _, ds := range datasets {
		summaries = append(summaries, ds.Summary())
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": summaries})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.datasets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// handleUpdateDataset applies a partial columns/rows replacement and returns
// the updated dataset.
func (s *Server) handleUpdateDataset(w http.ResponseWriter, r *http.Request) {
	var upd entity.DatasetUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "request body must be valid JSON"))
		return
	}

	ds, err := s.review.Update(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}
