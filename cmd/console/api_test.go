package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/heartline/internal/handlers"
	"github.com/jwebster45206/heartline/internal/session"
	"github.com/jwebster45206/heartline/pkg/content"
	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/interpreter"
	"github.com/jwebster45206/heartline/pkg/storage"
)

func newTestAPI(t *testing.T) *APIClient {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	pack, err := content.NewLoader(logger).LoadDir("../../data")
	require.NoError(t, err)
	graphs := dialogue.NewStore(logger)
	require.NoError(t, pack.Store(graphs))

	manager := session.NewManager(pack, graphs, storage.NewMemoryStorage(), session.Options{MaxSaveSlots: 10}, logger)
	sessions := handlers.NewSessionHandler(manager, nil, logger)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(nil, func() int { return len(manager.IDs()) }, logger))
	mux.Handle("/v1/scenarios", handlers.NewScenarioHandler(manager.Scenarios, logger))
	mux.Handle("/v1/sessions", sessions)
	mux.Handle("/v1/sessions/", sessions)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewAPIClient(srv.Client(), srv.URL+"/")
}

func TestAPIClient_Session(t *testing.T) {
	api := newTestAPI(t)
	require.True(t, api.testConnection())

	scenarios, err := api.listScenarios()
	require.NoError(t, err)
	assert.NotEmpty(t, scenarios)

	first, err := api.createSession("tester", "Haruto")
	require.NoError(t, err)
	assert.NotEmpty(t, first.Line.Text)

	line := first.Line
	for i := 0; i < 50 && line.State != interpreter.AwaitingChoice; i++ {
		step, err := api.advance()
		require.NoError(t, err)
		line = step.Line
	}
	require.Equal(t, interpreter.AwaitingChoice, line.State, "opening scene should reach a choice")

	step, err := api.choose(0)
	require.NoError(t, err)
	assert.NotEqual(t, interpreter.AwaitingChoice, step.Line.State)

	_, err = api.choose(0)
	assert.Error(t, err, "choosing outside a choice is rejected")

	meta, err := api.save(storage.QuicksaveSlot, "Quick Save")
	require.NoError(t, err)
	assert.Equal(t, storage.QuicksaveSlot, meta.Slot)

	saves, err := api.listSaves()
	require.NoError(t, err)
	require.Len(t, saves, 1)

	_, err = api.tick(1)
	require.NoError(t, err)

	view, err := api.load(storage.QuicksaveSlot)
	require.NoError(t, err)
	assert.Equal(t, step.Line.Node, view.Line.Node)

	view, err = api.getView()
	require.NoError(t, err)
	assert.Equal(t, "tester", view.Profile)

	require.NoError(t, api.endSession())
	_, err = api.getView()
	assert.Error(t, err)
}

func TestAPIClient_ErrorMessage(t *testing.T) {
	api := newTestAPI(t)
	_, err := api.load(storage.QuicksaveSlot)
	require.Error(t, err, "no session is bound yet")
}

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		": keepalive",
		"",
		"event: connected",
		`data: {"message":"Connected to event stream"}`,
		"",
		"event: game.saved",
		`data: {"slot":0,"name":"Autosave"}`,
		"",
	}, "\n")

	ch := make(chan SSEEvent, 4)
	require.NoError(t, readSSE(context.Background(), strings.NewReader(stream), ch))
	close(ch)

	var got []SSEEvent
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "connected", got[0].Type)
	assert.Equal(t, "game.saved", got[1].Type)
	assert.Equal(t, "Autosaved.", formatNotification(got[1]))
	assert.Empty(t, formatNotification(got[0]))
}

func TestReadSSE_EventAtEndOfStream(t *testing.T) {
	stream := "event: story.ending\ndata: {\"ending\":\"misaki_good\"}"

	ch := make(chan SSEEvent, 1)
	require.NoError(t, readSSE(context.Background(), strings.NewReader(stream), ch))
	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, "story.ending", ev.Type)
	assert.Equal(t, "misaki_good", ev.Data["ending"])
}
