package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/heartline/internal/session"
	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/engine"
)

type CreateSessionRequest struct {
	Profile    string `json:"profile,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
}

type CreateSessionResponse struct {
	SessionID uuid.UUID   `json:"session_id"`
	Step      engine.Step `json:"step"`
}

type ChoiceRequest struct {
	Index int `json:"index"`
}

type TickRequest struct {
	Hours float64 `json:"hours"`
}

type SaveRequest struct {
	Slot int    `json:"slot"`
	Name string `json:"name,omitempty"`
}

type LoadRequest struct {
	Slot int `json:"slot"`
}

// StepResponse is a step plus a warning when the story recovered from a
// content error.
type StepResponse struct {
	engine.Step
	Warning string `json:"warning,omitempty"`
}

type SessionHandler struct {
	manager *session.Manager
	stream  http.Handler
	logger  *slog.Logger
}

// NewSessionHandler creates the session handler. stream serves
// /v1/sessions/{id}/ws and may be nil.
func NewSessionHandler(manager *session.Manager, stream http.Handler, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		stream:  stream,
		logger:  logger,
	}
}

// ServeHTTP handles session requests
// Routes:
// POST   /v1/sessions               - Start a new game
// GET    /v1/sessions               - List live session IDs
// GET    /v1/sessions/{id}          - Session view
// DELETE /v1/sessions/{id}          - End a session
// POST   /v1/sessions/{id}/advance  - Advance past the current line
// POST   /v1/sessions/{id}/choice   - Select a choice
// POST   /v1/sessions/{id}/tick     - Advance playtime
// POST   /v1/sessions/{id}/save     - Save to a slot
// POST   /v1/sessions/{id}/load     - Load a slot
// GET    /v1/sessions/{id}/saves    - List saves
// GET    /v1/sessions/{id}/events   - Drain queued story events
// GET    /v1/sessions/{id}/ws       - WebSocket presenter stream
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}

	if len(parts) == 2 && parts[1] == "ws" && h.stream != nil {
		h.stream.ServeHTTP(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if len(parts) == 0 {
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			writeJSON(w, h.logger, http.StatusOK, map[string][]uuid.UUID{"sessions": h.manager.IDs()})
		default:
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST, GET")
		}
		return
	}
	if len(parts) > 2 {
		writeError(w, h.logger, http.StatusNotFound, "Unknown session route")
		return
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.respond(w, func() (any, error) { return h.manager.View(id) })
	case action == "" && r.Method == http.MethodDelete:
		if err := h.manager.Remove(id); err != nil {
			h.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case action == "saves" && r.Method == http.MethodGet:
		h.respond(w, func() (any, error) {
			saves, err := h.manager.ListSaves(r.Context(), id)
			return map[string]any{"saves": saves}, err
		})
	case action == "events" && r.Method == http.MethodGet:
		h.respond(w, func() (any, error) {
			events, err := h.manager.Events(r.Context(), id)
			return map[string]any{"events": events}, err
		})
	case r.Method != http.MethodPost:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	case action == "advance":
		step, err := h.manager.Advance(r.Context(), id)
		h.respondStep(w, id, step, err)
	case action == "choice":
		var req ChoiceRequest
		if !h.decode(w, r, &req) {
			return
		}
		step, err := h.manager.SelectChoice(r.Context(), id, req.Index)
		h.respondStep(w, id, step, err)
	case action == "tick":
		var req TickRequest
		if !h.decode(w, r, &req) {
			return
		}
		h.respond(w, func() (any, error) { return h.manager.Tick(r.Context(), id, req.Hours) })
	case action == "save":
		var req SaveRequest
		if !h.decode(w, r, &req) {
			return
		}
		h.respond(w, func() (any, error) { return h.manager.Save(r.Context(), id, req.Slot, req.Name) })
	case action == "load":
		var req LoadRequest
		if !h.decode(w, r, &req) {
			return
		}
		h.respond(w, func() (any, error) { return h.manager.Load(r.Context(), id, req.Slot) })
	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown session route")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	s, step, err := h.manager.Create(r.Context(), req.Profile, req.PlayerName)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, CreateSessionResponse{SessionID: s.ID, Step: step})
}

func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Warn("Invalid request body", "path", r.URL.Path, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

func (h *SessionHandler) respond(w http.ResponseWriter, fn func() (any, error)) {
	v, err := fn()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, v)
}

// respondStep reports content errors as a warning on a successful step.
func (h *SessionHandler) respondStep(w http.ResponseWriter, id uuid.UUID, step engine.Step, err error) {
	if err != nil && !dialogue.IsMalformed(err) {
		h.fail(w, err)
		return
	}
	resp := StepResponse{Step: step}
	if err != nil {
		h.logger.Warn("Recovered from malformed scenario", "session_id", id, "error", err)
		resp.Warning = err.Error()
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *SessionHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Session request failed", "error", err)
	} else {
		h.logger.Debug("Session request rejected", "status", status, "error", err)
	}
	writeError(w, h.logger, status, err.Error())
}
