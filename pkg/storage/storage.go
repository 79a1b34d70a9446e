package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no snapshot exists in the requested slot.
var ErrNotFound = errors.New("snapshot not found")

const (
	AutosaveSlot  = 0
	QuicksaveSlot = 1
)

// SaveMeta describes one save slot. The snapshot blob itself is opaque to
// the store.
type SaveMeta struct {
	Slot    int       `json:"slot"`
	Name    string    `json:"name,omitempty"`
	Day     int       `json:"day"`
	Chapter int       `json:"chapter"`
	SavedAt time.Time `json:"saved_at"`
}

// Storage defines the persistence operations used by the engine and the API.
// Snapshots are namespaced by profile, so several players can share a store.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// SaveSnapshot writes the blob and its metadata together. A failed save
	// leaves the previous contents of the slot in place.
	SaveSnapshot(ctx context.Context, profile string, meta SaveMeta, blob []byte) error
	// LoadSnapshot returns ErrNotFound for an empty slot.
	LoadSnapshot(ctx context.Context, profile string, slot int) ([]byte, error)
	// ListSaves returns the occupied slots in slot order.
	ListSaves(ctx context.Context, profile string) ([]SaveMeta, error)
	DeleteSnapshot(ctx context.Context, profile string, slot int) error
}
