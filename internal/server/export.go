package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hericlibong/Infograph2Data/internal/export"
)

// handleExport streams the export package for one dataset as a ZIP download.
// Formats and the source filter are query parameters.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var formats []string
	if raw := r.URL.Query().Get("formats"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				formats = append(formats, f)
			}
		}
	}

	zipBytes, err := s.export.BuildZIP(r.Context(), export.Request{
		DatasetID:    id,
		Formats:      formats,
		SourceFilter: r.URL.Query().Get("source_filter"),
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".zip"))
	w.Header().Set("Content-Length", strconv.Itoa(len(zipBytes)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(zipBytes)
}
