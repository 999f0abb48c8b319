package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isdelr/ender-local/internal/instance"
	"github.com/isdelr/ender-local/internal/services"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrServerNotFound), errors.Is(err, services.ErrBackupNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrServerBusy):
		return http.StatusConflict
	case errors.Is(err, instance.ErrDecode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs unexpected failures and replies with err's message.
func writeError(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
	}
	http.Error(w, msg+": "+err.Error(), status)
}
