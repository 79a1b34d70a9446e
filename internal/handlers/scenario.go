package handlers

import (
	"log/slog"
	"net/http"
)

type ScenarioHandler struct {
	scenarios func() []string
	logger    *slog.Logger
}

func NewScenarioHandler(scenarios func() []string, logger *slog.Logger) *ScenarioHandler {
	return &ScenarioHandler{
		scenarios: scenarios,
		logger:    logger,
	}
}

// ServeHTTP lists the registered scenario IDs
// GET /v1/scenarios
func (h *ScenarioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string][]string{"scenarios": h.scenarios()})
}
