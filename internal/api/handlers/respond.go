package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/davemk99/embedx/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps service-layer sentinels to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrUnsupportedContentType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrInsufficientContent):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, core.ErrAccessDenied):
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
