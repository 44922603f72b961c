package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hericlibong/Infograph2Data/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Internal errors are
// surfaced generically; everything else carries its message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := common.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case common.KindInvalidInput:
		status = http.StatusBadRequest
	case common.KindNotFound:
		status = http.StatusNotFound
	case common.KindExpired:
		status = http.StatusGone
	case common.KindUnsupported:
		status = http.StatusNotImplemented
	case common.KindRemote:
		status = http.StatusGatewayTimeout
	}

	message := err.Error()
	if kind == common.KindInternal {
		logger.Error("http.internal_error", "error", err)
		message = "internal error"
	}
	writeJSON(w, status, errorBody{Error: message, Kind: kind.String()})
}
