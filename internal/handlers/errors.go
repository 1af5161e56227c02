package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/diewo77/bilan-portal/internal/httpx"
	"github.com/diewo77/bilan-portal/internal/services"
)

const (
	codeInvalidJSON      = "invalid_json"
	codeValidationFailed = "validation_failed"
	codeInternal         = "internal_error"
)

// writeServiceError maps service errors onto the JSON error envelope.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.JSONError(w, http.StatusBadRequest, codeValidationFailed, verr.Violations)
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, services.ErrNotFound.Error(), nil)
	case errors.Is(err, services.ErrStorage):
		// already logged by the service with its sqlstate
		httpx.JSONError(w, http.StatusInternalServerError, services.ErrStorage.Error(), nil)
	default:
		log.Error("request failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, codeInternal, nil)
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	httpx.JSONError(w, http.StatusBadRequest, codeInvalidJSON, err.Error())
}
