package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/jwebster45206/heartline/pkg/storage"
)

// SQLiteStorage implements Storage on an embedded SQLite database, for
// single-player installs without Redis.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex // guards entropy
	entropy *rand.Rand
}

// Ensure SQLiteStorage implements Storage interface
var _ storage.Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at the given path.
func NewSQLiteStorage(dbPath string, logger *slog.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStorage{
		db:      db,
		logger:  logger,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStorage) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		id        TEXT PRIMARY KEY,
		profile   TEXT NOT NULL,
		slot      INTEGER NOT NULL,
		name      TEXT NOT NULL DEFAULT '',
		day       INTEGER NOT NULL DEFAULT 0,
		chapter   INTEGER NOT NULL DEFAULT 0,
		saved_at  TEXT NOT NULL,
		snapshot  BLOB NOT NULL,
		UNIQUE (profile, slot)
	);
	CREATE INDEX IF NOT EXISTS idx_saves_profile ON saves(profile, slot);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, profile string, meta storage.SaveMeta, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saves (id, profile, slot, name, day, chapter, saved_at, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (profile, slot) DO UPDATE SET
			id = excluded.id,
			name = excluded.name,
			day = excluded.day,
			chapter = excluded.chapter,
			saved_at = excluded.saved_at,
			snapshot = excluded.snapshot`,
		s.newID(), profile, meta.Slot, meta.Name, meta.Day, meta.Chapter,
		meta.SavedAt.UTC().Format(time.RFC3339Nano), blob)
	if err != nil {
		s.logger.Error("Failed to save snapshot", "profile", profile, "slot", meta.Slot, "error", err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadSnapshot(ctx context.Context, profile string, slot int) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM saves WHERE profile = ? AND slot = ?`, profile, slot).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s slot %d", storage.ErrNotFound, profile, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return blob, nil
}

func (s *SQLiteStorage) ListSaves(ctx context.Context, profile string) ([]storage.SaveMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slot, name, day, chapter, saved_at FROM saves WHERE profile = ? ORDER BY slot`, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}
	defer rows.Close()

	var metas []storage.SaveMeta
	for rows.Next() {
		var (
			meta    storage.SaveMeta
			savedAt string
		)
		if err := rows.Scan(&meta.Slot, &meta.Name, &meta.Day, &meta.Chapter, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan save: %w", err)
		}
		meta.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

func (s *SQLiteStorage) DeleteSnapshot(ctx context.Context, profile string, slot int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE profile = ? AND slot = ?`, profile, slot)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
