package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/heartline/pkg/storage"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "saves", "heartline.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage_SaveLoadList(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	savedAt := time.Date(2026, 5, 2, 18, 30, 0, 0, time.UTC)
	require.NoError(t, s.SaveSnapshot(ctx, "default", storage.SaveMeta{Slot: 2, Name: "rooftop", Day: 5, Chapter: 1, SavedAt: savedAt}, []byte("one")))
	require.NoError(t, s.SaveSnapshot(ctx, "default", storage.SaveMeta{Slot: storage.QuicksaveSlot, Name: "quick"}, []byte("quick")))
	require.NoError(t, s.SaveSnapshot(ctx, "default", storage.SaveMeta{Slot: 2, Name: "rooftop again", Day: 6}, []byte("two")))

	blob, err := s.LoadSnapshot(ctx, "default", 2)
	require.NoError(t, err)
	assert.Equal(t, "two", string(blob), "saving to an occupied slot overwrites it")

	saves, err := s.ListSaves(ctx, "default")
	require.NoError(t, err)
	require.Len(t, saves, 2)
	assert.Equal(t, 1, saves[0].Slot)
	assert.Equal(t, "rooftop again", saves[1].Name)
	assert.Equal(t, 6, saves[1].Day)
}

func TestSQLiteStorage_NotFoundAndDelete(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.LoadSnapshot(ctx, "default", 9)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, s.SaveSnapshot(ctx, "default", storage.SaveMeta{Slot: 9}, []byte("x")))
	require.NoError(t, s.DeleteSnapshot(ctx, "default", 9))
	_, err = s.LoadSnapshot(ctx, "default", 9)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartline.db")
	ctx := context.Background()

	s, err := NewSQLiteStorage(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(ctx, "default", storage.SaveMeta{Slot: 0, Name: "autosave"}, []byte("state")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStorage(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	blob, err := reopened.LoadSnapshot(ctx, "default", 0)
	require.NoError(t, err)
	assert.Equal(t, "state", string(blob))
}
