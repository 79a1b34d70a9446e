package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/heartline/internal/session"
	"github.com/jwebster45206/heartline/pkg/engine"
	"github.com/jwebster45206/heartline/pkg/interpreter"
	"github.com/jwebster45206/heartline/pkg/progression"
	"github.com/jwebster45206/heartline/pkg/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps engine and session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interpreter.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, interpreter.ErrInvalidChoice),
		errors.Is(err, engine.ErrInvalidSlot),
		errors.Is(err, progression.ErrInvalidTick):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNoStorage):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}
