package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/heartline/pkg/progression"
)

// EventQueue keeps the story events fired in each session until a client
// collects them.
type EventQueue struct {
	client *Client
	logger *slog.Logger
}

// NewEventQueue creates a new story event queue service
func NewEventQueue(client *Client, logger *slog.Logger) *EventQueue {
	return &EventQueue{
		client: client,
		logger: logger,
	}
}

func queueKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("story-events:%s", sessionID.String())
}

// Enqueue appends fired events to the end of the session's queue
func (q *EventQueue) Enqueue(ctx context.Context, sessionID uuid.UUID, events ...progression.EventFired) error {
	if len(events) == 0 {
		return nil
	}
	key := queueKey(sessionID)

	values := make([]any, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal story event: %w", err)
		}
		values = append(values, data)
	}

	if err := q.client.rdb.RPush(ctx, key, values...).Err(); err != nil {
		q.logger.Error("Failed to enqueue story events",
			"error", err,
			"session_id", sessionID,
			"key", key)
		return fmt.Errorf("failed to enqueue story events: %w", err)
	}

	q.logger.Debug("Enqueued story events", "session_id", sessionID, "count", len(events))
	return nil
}

// Dequeue removes and returns every queued event for a session. Read and
// delete run in one transaction so no event is returned twice.
func (q *EventQueue) Dequeue(ctx context.Context, sessionID uuid.UUID) ([]progression.EventFired, error) {
	key := queueKey(sessionID)

	var lrange *redis.StringSliceCmd
	_, err := q.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		q.logger.Error("Failed to dequeue story events",
			"error", err,
			"session_id", sessionID,
			"key", key)
		return nil, fmt.Errorf("failed to dequeue story events: %w", err)
	}

	events := q.decode(sessionID, lrange.Val())
	if len(events) > 0 {
		q.logger.Debug("Dequeued story events", "session_id", sessionID, "count", len(events))
	}
	return events, nil
}

// Peek returns up to limit queued events without removing them. A limit of
// zero or less returns all of them.
func (q *EventQueue) Peek(ctx context.Context, sessionID uuid.UUID, limit int) ([]progression.EventFired, error) {
	key := queueKey(sessionID)

	end := int64(limit - 1)
	if limit <= 0 {
		end = -1 // Get all
	}

	raw, err := q.client.rdb.LRange(ctx, key, 0, end).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		q.logger.Error("Failed to peek story events",
			"error", err,
			"session_id", sessionID,
			"key", key)
		return nil, fmt.Errorf("failed to peek story events: %w", err)
	}

	return q.decode(sessionID, raw), nil
}

// Clear removes all story events for a session
func (q *EventQueue) Clear(ctx context.Context, sessionID uuid.UUID) error {
	key := queueKey(sessionID)

	if err := q.client.rdb.Del(ctx, key).Err(); err != nil {
		q.logger.Error("Failed to clear story event queue",
			"error", err,
			"session_id", sessionID,
			"key", key)
		return fmt.Errorf("failed to clear story event queue: %w", err)
	}

	q.logger.Debug("Cleared story event queue", "session_id", sessionID)
	return nil
}

// Depth returns the number of story events queued for a session
func (q *EventQueue) Depth(ctx context.Context, sessionID uuid.UUID) (int, error) {
	key := queueKey(sessionID)

	count, err := q.client.rdb.LLen(ctx, key).Result()
	if err != nil {
		q.logger.Error("Failed to get story event queue depth",
			"error", err,
			"session_id", sessionID,
			"key", key)
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}

	return int(count), nil
}

func (q *EventQueue) decode(sessionID uuid.UUID, raw []string) []progression.EventFired {
	events := make([]progression.EventFired, 0, len(raw))
	for _, r := range raw {
		var ev progression.EventFired
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			q.logger.Warn("Dropping unreadable story event", "session_id", sessionID, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// FormatEvents renders events as one notification line each.
func FormatEvents(events []progression.EventFired) string {
	var b strings.Builder
	for i, ev := range events {
		if i > 0 {
			b.WriteString("\n")
		}
		name := ev.Name
		if name == "" {
			name = ev.EventID
		}
		fmt.Fprintf(&b, "STORY EVENT: %s (chapter %d)", name, ev.Chapter)
		if ev.Character != "" {
			fmt.Fprintf(&b, " with %s", ev.Character)
		}
	}
	return b.String()
}
