package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/grakai/pitchside/internal/model"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

// writeErrFor writes a job error with its kind.
func writeErrFor(w http.ResponseWriter, err error) {
	writeJSON(w, statusCode(err), map[string]any{
		"error": err.Error(),
		"kind":  model.ErrorKind(err),
	})
}

func statusCode(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, model.ErrAlreadyProcessing):
		return http.StatusConflict
	case errors.Is(err, errUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrNotValid):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
