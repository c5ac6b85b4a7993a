package web

import (
	"encoding/json"
	"net/http"

	"ventgate/internal/core"
)

type errorBody struct {
	Error     core.ErrorKind `json:"error"`
	Message   string         `json:"message"`
	RequestID string         `json:"requestId"`
	Details   map[string]any `json:"details,omitempty"`
}

// writeError отвечает статусом по умолчанию для вида ошибки.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ce := core.AsError(err)
	writeErrorStatus(w, r, ce.Kind.HTTPStatus(), ce)
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	ce := core.AsError(err)
	writeJSON(w, r, statusCode, errorBody{
		Error:     ce.Kind,
		Message:   ce.Message,
		RequestID: requestIDFromContext(r.Context()),
		Details:   ce.Details,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if id := requestIDFromContext(r.Context()); id != "" {
		w.Header().Set("X-Request-ID", id)
	}
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
