package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/heartline/pkg/progression"
	"github.com/jwebster45206/heartline/pkg/relationship"
	"github.com/jwebster45206/heartline/pkg/storage"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeStoryEvent       EventType = "story.event_fired"
	EventTypeChapterCompleted EventType = "story.chapter_completed"
	EventTypeEnding           EventType = "story.ending"
	EventTypeThreshold        EventType = "relationship.threshold_crossed"
	EventTypeSaved            EventType = "game.saved"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Broadcaster publishes session notifications to Redis Pub/Sub
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Channel returns the Pub/Sub channel for a session
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("session-events:%s", sessionID.String())
}

// PublishEventFired publishes one story.event_fired event
func (b *Broadcaster) PublishEventFired(ctx context.Context, sessionID uuid.UUID, fired progression.EventFired) error {
	return b.publish(ctx, sessionID, Event{
		Type: EventTypeStoryEvent,
		Data: map[string]any{
			"event_id":  fired.EventID,
			"name":      fired.Name,
			"chapter":   fired.Chapter,
			"character": fired.Character,
			"scenario":  fired.Scenario,
			"started":   fired.Started,
		},
	})
}

// PublishTick publishes everything a tick produced, in order: fired events,
// completed chapters, then the ending.
func (b *Broadcaster) PublishTick(ctx context.Context, sessionID uuid.UUID, result progression.TickResult) error {
	for _, fired := range result.Fired {
		if err := b.PublishEventFired(ctx, sessionID, fired); err != nil {
			return err
		}
	}
	for _, chapter := range result.ChapterCompleted {
		err := b.publish(ctx, sessionID, Event{
			Type: EventTypeChapterCompleted,
			Data: map[string]any{"chapter": chapter},
		})
		if err != nil {
			return err
		}
	}
	if result.Ending != "" {
		return b.PublishEnding(ctx, sessionID, result.Ending)
	}
	return nil
}

// PublishEnding publishes a story.ending event
func (b *Broadcaster) PublishEnding(ctx context.Context, sessionID uuid.UUID, ending string) error {
	return b.publish(ctx, sessionID, Event{
		Type: EventTypeEnding,
		Data: map[string]any{"ending": ending},
	})
}

// PublishCrossed publishes one relationship.threshold_crossed event per crossing
func (b *Broadcaster) PublishCrossed(ctx context.Context, sessionID uuid.UUID, deltas []relationship.LedgerEvent) error {
	for _, d := range deltas {
		for _, c := range d.Crossed {
			err := b.publish(ctx, sessionID, Event{
				Type: EventTypeThreshold,
				Data: map[string]any{
					"character": c.Character,
					"threshold": c.Threshold.ID,
					"score":     d.Score,
				},
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// PublishSaved publishes a game.saved event
func (b *Broadcaster) PublishSaved(ctx context.Context, sessionID uuid.UUID, meta storage.SaveMeta) error {
	return b.publish(ctx, sessionID, Event{
		Type: EventTypeSaved,
		Data: map[string]any{
			"slot": meta.Slot,
			"name": meta.Name,
			"day":  meta.Day,
		},
	})
}

// publish publishes an event to the session-specific channel
func (b *Broadcaster) publish(ctx context.Context, sessionID uuid.UUID, event Event) error {
	channel := Channel(sessionID)
	event.SessionID = sessionID.String()

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)

	return nil
}
