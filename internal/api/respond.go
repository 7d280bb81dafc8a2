package api

import (
	"encoding/json"
	"net/http"

	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warnf("Failed to encode response: %v", err)
	}
}

// writeError maps domain sentinel errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, errors.ErrNotFound), errors.Is(err, errors.ErrJobNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, errors.ErrReadOnly):
		status, code = http.StatusForbidden, "read_only"
	case errors.Is(err, errors.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errors.ErrAlreadyExists):
		status, code = http.StatusConflict, "already_exists"
	case errors.Is(err, errors.ErrRateLimitExceeded):
		status, code = http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, errors.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "unavailable"
	}

	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}
