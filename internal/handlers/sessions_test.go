package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/heartline/internal/session"
	"github.com/jwebster45206/heartline/pkg/content"
	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/storage"
)

func newTestMux(t *testing.T) (*http.ServeMux, *session.Manager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	pack, err := content.NewLoader(logger).LoadDir("../../data")
	require.NoError(t, err)
	graphs := dialogue.NewStore(logger)
	require.NoError(t, pack.Store(graphs))

	manager := session.NewManager(pack, graphs, storage.NewMemoryStorage(), session.Options{
		PlayerName:   "Haruto",
		MaxSaveSlots: 10,
	}, logger)

	sessions := NewSessionHandler(manager, NewStreamHandler(manager, logger), logger)
	mux := http.NewServeMux()
	mux.Handle("/v1/sessions", sessions)
	mux.Handle("/v1/sessions/", sessions)
	mux.Handle("/v1/scenarios", NewScenarioHandler(manager.Scenarios, logger))
	return mux, manager
}

func do(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func createSession(t *testing.T, mux http.Handler) string {
	t.Helper()
	rr := do(t, mux, http.MethodPost, "/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "prologue", resp.Step.Started)
	return "/v1/sessions/" + resp.SessionID.String()
}

func TestSessionHandler_Play(t *testing.T) {
	mux, _ := newTestMux(t)
	base := createSession(t, mux)

	rr := do(t, mux, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decodeBody(t, rr)
	assert.Equal(t, "prologue", view["line"].(map[string]any)["scenario"])

	for range 3 {
		rr = do(t, mux, http.MethodPost, base+"/advance", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	step := decodeBody(t, rr)
	assert.Equal(t, "awaiting_choice", step["line"].(map[string]any)["state"])

	rr = do(t, mux, http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, mux, http.MethodPost, base+"/choice", ChoiceRequest{Index: 9})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, http.MethodPost, base+"/choice", ChoiceRequest{Index: 1})
	require.Equal(t, http.StatusOK, rr.Code)
	step = decodeBody(t, rr)
	deltas := step["deltas"].([]any)
	require.Len(t, deltas, 1)
	assert.Equal(t, "yukino", deltas[0].(map[string]any)["character"])
}

func TestSessionHandler_TickSaveLoad(t *testing.T) {
	mux, _ := newTestMux(t)
	base := createSession(t, mux)

	rr := do(t, mux, http.MethodPost, base+"/tick", TickRequest{Hours: -1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, http.MethodPost, base+"/tick", TickRequest{Hours: 2})
	require.Equal(t, http.StatusOK, rr.Code)
	fired := decodeBody(t, rr)["fired"].([]any)
	require.Len(t, fired, 1)
	assert.Equal(t, "first_lunch", fired[0].(map[string]any)["event_id"])

	rr = do(t, mux, http.MethodPost, base+"/save", SaveRequest{Slot: 3, Name: "Lunch"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, mux, http.MethodPost, base+"/save", SaveRequest{Slot: 99})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, http.MethodPost, base+"/load", LoadRequest{Slot: 5})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, mux, http.MethodPost, base+"/load", LoadRequest{Slot: 3})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(2), decodeBody(t, rr)["total_playtime"])

	rr = do(t, mux, http.MethodGet, base+"/saves", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	saves := decodeBody(t, rr)["saves"].([]any)
	require.Len(t, saves, 1)
	assert.Equal(t, "Lunch", saves[0].(map[string]any)["name"])

	rr = do(t, mux, http.MethodPost, base+"/load", "not an object")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSessionHandler_Routing(t *testing.T) {
	mux, manager := newTestMux(t)
	base := createSession(t, mux)
	missing := "/v1/sessions/" + uuid.New().String()

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{name: "list", method: http.MethodGet, path: "/v1/sessions", want: http.StatusOK},
		{name: "bad method on collection", method: http.MethodPut, path: "/v1/sessions", want: http.StatusMethodNotAllowed},
		{name: "bad id", method: http.MethodGet, path: "/v1/sessions/not-a-uuid", want: http.StatusBadRequest},
		{name: "unknown session", method: http.MethodGet, path: missing, want: http.StatusNotFound},
		{name: "unknown session advance", method: http.MethodPost, path: missing + "/advance", want: http.StatusNotFound},
		{name: "unknown action", method: http.MethodPost, path: base + "/dance", want: http.StatusNotFound},
		{name: "get on action", method: http.MethodGet, path: base + "/advance", want: http.StatusMethodNotAllowed},
		{name: "too deep", method: http.MethodGet, path: base + "/saves/1", want: http.StatusNotFound},
		{name: "events", method: http.MethodGet, path: base + "/events", want: http.StatusOK},
		{name: "scenarios", method: http.MethodGet, path: "/v1/scenarios", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, mux, tt.method, tt.path, nil)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}

	rr := do(t, mux, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, manager.IDs())
	rr = do(t, mux, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
