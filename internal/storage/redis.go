package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/heartline/pkg/storage"
)

// RedisStorage implements the Storage interface using Redis. Each slot blob
// lives under its own key and the slot metadata in one hash per profile.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance. redisURL may be a
// redis:// URL or a bare host:port address.
func NewRedisStorage(redisURL string, logger *slog.Logger) (*RedisStorage, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = parsed
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisStorage{
		client: redis.NewClient(opts),
		logger: logger,
	}, nil
}

// Client returns the underlying Redis client for services sharing the connection
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func snapshotKey(profile string, slot int) string {
	return "save:" + profile + ":" + strconv.Itoa(slot)
}

func indexKey(profile string) string {
	return "saves:" + profile
}

// Snapshot operations

func (r *RedisStorage) SaveSnapshot(ctx context.Context, profile string, meta storage.SaveMeta, blob []byte) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal save metadata: %w", err)
	}

	// Blob and index entry are written in one MULTI/EXEC
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, snapshotKey(profile, meta.Slot), blob, 0)
		pipe.HSet(ctx, indexKey(profile), strconv.Itoa(meta.Slot), metaJSON)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save snapshot", "profile", profile, "slot", meta.Slot, "error", err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	r.logger.Debug("Saved snapshot", "profile", profile, "slot", meta.Slot, "bytes", len(blob))
	return nil
}

func (r *RedisStorage) LoadSnapshot(ctx context.Context, profile string, slot int) ([]byte, error) {
	data, err := r.client.Get(ctx, snapshotKey(profile, slot)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s slot %d", storage.ErrNotFound, profile, slot)
		}
		r.logger.Error("Failed to load snapshot", "profile", profile, "slot", slot, "error", err)
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return data, nil
}

func (r *RedisStorage) ListSaves(ctx context.Context, profile string) ([]storage.SaveMeta, error) {
	entries, err := r.client.HGetAll(ctx, indexKey(profile)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}

	metas := make([]storage.SaveMeta, 0, len(entries))
	for field, raw := range entries {
		var meta storage.SaveMeta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			r.logger.Warn("Skipping unreadable save metadata", "profile", profile, "slot", field, "error", err)
			continue
		}
		metas = append(metas, meta)
	}
	slices.SortFunc(metas, func(a, b storage.SaveMeta) int { return a.Slot - b.Slot })
	return metas, nil
}

func (r *RedisStorage) DeleteSnapshot(ctx context.Context, profile string, slot int) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, snapshotKey(profile, slot))
		pipe.HDel(ctx, indexKey(profile), strconv.Itoa(slot))
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to delete snapshot", "profile", profile, "slot", slot, "error", err)
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
