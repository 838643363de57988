// Package respond writes the JSON envelopes shared by every HTTP handler:
// {"success":true,"data":...} on success and {"error":"..."} on failure.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/wolfman30/clinic-session-sync/internal/apperr"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

type successBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successBody{Success: true, Data: data})
}

// Error maps err onto its status and caller-facing message. Server-side
// failures are logged since their message is hidden from the caller.
func Error(w http.ResponseWriter, logger *logging.Logger, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: apperr.Message(err)})
}

// Message writes a failure envelope with a fixed message.
func Message(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
