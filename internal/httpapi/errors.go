package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"buddyd/internal/settings"
	"buddyd/internal/supervisor"
	"buddyd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case supervisor.IsUnknownSlot(err):
		return http.StatusNotFound
	case supervisor.IsInvalidRequest(err), settings.IsUnknownKey(err):
		return http.StatusBadRequest
	case supervisor.IsConfiguration(err):
		return http.StatusUnprocessableEntity
	case supervisor.IsSpawn(err):
		return http.StatusBadGateway
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger().Error().Err(err).Msg("encode response")
	}
}
