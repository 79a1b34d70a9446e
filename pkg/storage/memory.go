package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

type memorySave struct {
	meta SaveMeta
	blob []byte
}

// MemoryStorage is an in-memory implementation of Storage. It backs the
// "memory" store backend and tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	saves     map[string]map[int]memorySave
	pingError error
	saveError error
}

// Ensure MemoryStorage implements Storage interface
var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		saves: make(map[string]map[int]memorySave),
	}
}

// SetPingSuccess configures the store to succeed on ping
func (m *MemoryStorage) SetPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = nil
}

// SetPingError configures the store to fail on ping with the given error
func (m *MemoryStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the store to fail every save with the given error
func (m *MemoryStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// Ping returns the configured ping error
func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close is a no-op
func (m *MemoryStorage) Close() error {
	return nil
}

// SaveSnapshot stores a copy of the blob
func (m *MemoryStorage) SaveSnapshot(ctx context.Context, profile string, meta SaveMeta, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	if m.saves[profile] == nil {
		m.saves[profile] = make(map[int]memorySave)
	}
	m.saves[profile][meta.Slot] = memorySave{meta: meta, blob: slices.Clone(blob)}
	return nil
}

// LoadSnapshot returns a copy of the stored blob
func (m *MemoryStorage) LoadSnapshot(ctx context.Context, profile string, slot int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	save, ok := m.saves[profile][slot]
	if !ok {
		return nil, fmt.Errorf("%w: %s slot %d", ErrNotFound, profile, slot)
	}
	return slices.Clone(save.blob), nil
}

// ListSaves returns slot metadata in slot order
func (m *MemoryStorage) ListSaves(ctx context.Context, profile string) ([]SaveMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metas := make([]SaveMeta, 0, len(m.saves[profile]))
	for _, save := range m.saves[profile] {
		metas = append(metas, save.meta)
	}
	slices.SortFunc(metas, func(a, b SaveMeta) int { return cmp.Compare(a.Slot, b.Slot) })
	return metas, nil
}

// DeleteSnapshot removes a slot
func (m *MemoryStorage) DeleteSnapshot(ctx context.Context, profile string, slot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saves[profile], slot)
	return nil
}
