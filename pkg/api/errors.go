package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/filestore"
	"github.com/marmos91/dittostore/pkg/multitenant"
)

var (
	errBadUpload      = errors.New("invalid upload")
	errUploadTooLarge = errors.New("upload too large")
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusCode maps store errors to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, filestore.ErrNotFound),
		errors.Is(err, multitenant.ErrTenantNotFound),
		errors.Is(err, ErrNoStore):
		return http.StatusNotFound
	case errors.Is(err, filestore.ErrInvalidArgument),
		errors.Is(err, filestore.ErrFileAccess),
		errors.Is(err, multitenant.ErrInvalidTenant),
		errors.Is(err, errBadUpload):
		return http.StatusBadRequest
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, filestore.ErrConsistency),
		errors.Is(err, multitenant.ErrTenantExists):
		return http.StatusConflict
	case errors.Is(err, filestore.ErrClosed),
		errors.Is(err, multitenant.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
	} else {
		logger.Debug("Request rejected (%d): %v", status, err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response: %v", err)
	}
}
