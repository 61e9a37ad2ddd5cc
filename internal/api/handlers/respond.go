// Package handlers provides HTTP handlers for the CAD engine API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/meshforge/cad-engine/internal/domain"
)

// writeJSON renders a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError renders the error envelope every endpoint shares.
func writeError(w http.ResponseWriter, status int, kind, message, detail string) {
	resp := map[string]string{
		"error":   kind,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// statusForKind maps a conversion error kind to its HTTP status. Rejected
// uploads are the client's fault, kernel refusals mean the file itself is
// unprocessable, and anything past a successful mesh is on the server.
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrKindInvalidFileType, domain.ErrKindFileSizeExceeded:
		return http.StatusBadRequest
	case domain.ErrKindStepRead, domain.ErrKindMeshing:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeConversionError maps a pipeline failure onto the wire.
func writeConversionError(w http.ResponseWriter, err error) {
	kind, ok := domain.CauseKind(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "conversion failed", err.Error())
		return
	}
	writeError(w, statusForKind(kind), string(kind), "conversion failed", err.Error())
}
