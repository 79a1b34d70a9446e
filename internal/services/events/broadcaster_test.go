package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/heartline/pkg/progression"
	"github.com/jwebster45206/heartline/pkg/relationship"
	"github.com/jwebster45206/heartline/pkg/storage"
)

func setupBroadcaster(t *testing.T) (*Broadcaster, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBroadcaster(rdb, logger), rdb
}

func subscribe(t *testing.T, rdb *redis.Client, sessionID uuid.UUID) *redis.PubSub {
	t.Helper()
	ctx := context.Background()
	sub := rdb.Subscribe(ctx, Channel(sessionID))
	t.Cleanup(func() { _ = sub.Close() })
	// Wait for the subscription to be confirmed before publishing
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	return sub
}

func receive(t *testing.T, sub *redis.PubSub) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	return ev
}

func TestBroadcaster_PublishTick(t *testing.T) {
	b, rdb := setupBroadcaster(t)
	sessionID := uuid.New()
	sub := subscribe(t, rdb, sessionID)

	result := progression.TickResult{
		Fired:            []progression.EventFired{{EventID: "summer_festival", Chapter: 2, Character: "misaki"}},
		ChapterCompleted: []int{2},
		Ending:           "misaki_true",
	}
	require.NoError(t, b.PublishTick(context.Background(), sessionID, result))

	ev := receive(t, sub)
	assert.Equal(t, EventTypeStoryEvent, ev.Type)
	assert.Equal(t, sessionID.String(), ev.SessionID)
	assert.Equal(t, "summer_festival", ev.Data["event_id"])

	ev = receive(t, sub)
	assert.Equal(t, EventTypeChapterCompleted, ev.Type)
	assert.Equal(t, float64(2), ev.Data["chapter"])

	ev = receive(t, sub)
	assert.Equal(t, EventTypeEnding, ev.Type)
	assert.Equal(t, "misaki_true", ev.Data["ending"])
}

func TestBroadcaster_PublishCrossedAndSaved(t *testing.T) {
	b, rdb := setupBroadcaster(t)
	sessionID := uuid.New()
	sub := subscribe(t, rdb, sessionID)
	ctx := context.Background()

	deltas := []relationship.LedgerEvent{
		{Character: "yukino", Score: 8},
		{Character: "misaki", Score: 31, Crossed: []relationship.ThresholdCrossed{
			{Character: "misaki", Threshold: relationship.Threshold{ID: "close_friend", Score: 30}},
		}},
	}
	require.NoError(t, b.PublishCrossed(ctx, sessionID, deltas))
	require.NoError(t, b.PublishSaved(ctx, sessionID, storage.SaveMeta{Slot: 3, Name: "Before the festival", Day: 4}))

	ev := receive(t, sub)
	assert.Equal(t, EventTypeThreshold, ev.Type)
	assert.Equal(t, "close_friend", ev.Data["threshold"])
	assert.Equal(t, float64(31), ev.Data["score"])

	ev = receive(t, sub)
	assert.Equal(t, EventTypeSaved, ev.Type)
	assert.Equal(t, float64(3), ev.Data["slot"])
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("6f1c1f2e-8a43-4c35-9d8b-52b8f3f4a001")
	if got := Channel(id); got != "session-events:6f1c1f2e-8a43-4c35-9d8b-52b8f3f4a001" {
		t.Errorf("Channel() = %q", got)
	}
}
