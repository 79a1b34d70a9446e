package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/heartline/internal/config"
	"github.com/jwebster45206/heartline/pkg/storage"
)

// Open creates the save storage selected by cfg.StoreBackend and waits for
// it to answer. For the Redis backend the shared client is returned too so
// queue and pub/sub services can reuse the connection; it is nil otherwise.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, *redis.Client, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rs, err := NewRedisStorage(cfg.RedisURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := rs.WaitForConnection(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, err
		}
		return rs, rs.Client(), nil

	case config.BackendSQLite:
		ss, err := NewSQLiteStorage(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return ss, nil, nil

	case config.BackendMemory:
		logger.Warn("Using in-memory save storage; saves are lost on restart")
		return storage.NewMemoryStorage(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StoreBackend)
	}
}
