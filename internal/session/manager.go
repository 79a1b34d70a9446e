package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/heartline/internal/logger"
	"github.com/jwebster45206/heartline/pkg/content"
	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/engine"
	"github.com/jwebster45206/heartline/pkg/interpreter"
	"github.com/jwebster45206/heartline/pkg/progression"
	"github.com/jwebster45206/heartline/pkg/relationship"
	"github.com/jwebster45206/heartline/pkg/storage"
)

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

const presenterBuffer = 128

// EventQueue stores fired story events until the client collects them.
type EventQueue interface {
	Enqueue(ctx context.Context, sessionID uuid.UUID, events ...progression.EventFired) error
	Dequeue(ctx context.Context, sessionID uuid.UUID) ([]progression.EventFired, error)
}

// Notifier publishes live session notifications.
type Notifier interface {
	PublishTick(ctx context.Context, sessionID uuid.UUID, result progression.TickResult) error
	PublishCrossed(ctx context.Context, sessionID uuid.UUID, deltas []relationship.LedgerEvent) error
	PublishSaved(ctx context.Context, sessionID uuid.UUID, meta storage.SaveMeta) error
}

// Session is one running playthrough. All engine access goes through the
// session mutex.
type Session struct {
	ID        uuid.UUID
	Presenter *interpreter.BufferedPresenter

	mu         sync.Mutex
	engine     *engine.Engine
	dirty      bool
	lastActive time.Time
}

// Options configures sessions created by a Manager.
type Options struct {
	PlayerName           string
	MaxDailyInteractions int
	MaxSaveSlots         int
}

// Manager owns every live session.
type Manager struct {
	pack     *content.Pack
	graphs   *dialogue.Store
	store    storage.Storage
	opts     Options
	queue    EventQueue
	notifier Notifier
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates a session manager. store may be nil, which disables
// saving.
func NewManager(pack *content.Pack, graphs *dialogue.Store, store storage.Storage, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pack:     pack,
		graphs:   graphs,
		store:    store,
		opts:     opts,
		logger:   logger,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// WithEventQueue sets the story event queue
// Returns the Manager for method chaining
func (m *Manager) WithEventQueue(q EventQueue) *Manager {
	m.queue = q
	return m
}

// WithNotifier sets the live notification publisher
// Returns the Manager for method chaining
func (m *Manager) WithNotifier(n Notifier) *Manager {
	m.notifier = n
	return m
}

// Scenarios returns the registered scenario IDs.
func (m *Manager) Scenarios() []string {
	return m.graphs.IDs()
}

// Create starts a new game in a new session. profile selects the save
// namespace; empty uses the default profile.
func (m *Manager) Create(ctx context.Context, profile, playerName string) (*Session, engine.Step, error) {
	if playerName == "" {
		playerName = m.opts.PlayerName
	}
	presenter := interpreter.NewBufferedPresenter(presenterBuffer)
	e := engine.New(m.pack, m.graphs, engine.Options{
		Profile:              profile,
		PlayerName:           playerName,
		MaxDailyInteractions: m.opts.MaxDailyInteractions,
		MaxSaveSlots:         m.opts.MaxSaveSlots,
		Presenter:            presenter,
		Storage:              m.store,
	}, m.logger)

	step, err := e.NewGame()
	if err != nil {
		return nil, engine.Step{}, err
	}

	s := &Session{
		ID:         e.ID(),
		Presenter:  presenter,
		engine:     e,
		dirty:      true,
		lastActive: time.Now(),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logger.WithSession(m.logger, s.ID).Info("Session created", "profile", e.Profile())
	m.forward(ctx, s.ID, step, progression.TickResult{Fired: step.Events})
	return s, step, nil
}

// Get returns a live session.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove ends a session. Unsaved progress is lost.
func (m *Manager) Remove(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.logger.Info("Session removed", "session_id", id)
	return nil
}

// IDs returns every live session ID.
func (m *Manager) IDs() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids
}

// with runs fn with the session locked and marks the session active.
func (m *Manager) with(id uuid.UUID, fn func(s *Session) error) error {
	return m.inspect(id, func(s *Session) error {
		s.lastActive = time.Now()
		return fn(s)
	})
}

// inspect runs fn with the session locked.
func (m *Manager) inspect(id uuid.UUID, fn func(s *Session) error) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

// View returns the session read model.
func (m *Manager) View(id uuid.UUID) (engine.View, error) {
	var v engine.View
	err := m.with(id, func(s *Session) error {
		v = s.engine.View()
		return nil
	})
	return v, err
}

// Advance moves the session past its current line.
func (m *Manager) Advance(ctx context.Context, id uuid.UUID) (engine.Step, error) {
	var step engine.Step
	err := m.with(id, func(s *Session) error {
		var err error
		step, err = s.engine.Advance()
		if err != nil && errors.Is(err, interpreter.ErrInvalidState) {
			return err
		}
		s.dirty = true
		return err
	})
	m.forward(ctx, id, step, progression.TickResult{})
	return step, err
}

// SelectChoice picks a visible choice in the session.
func (m *Manager) SelectChoice(ctx context.Context, id uuid.UUID, index int) (engine.Step, error) {
	var step engine.Step
	err := m.with(id, func(s *Session) error {
		var err error
		step, err = s.engine.SelectChoice(index)
		if err != nil && (errors.Is(err, interpreter.ErrInvalidState) || errors.Is(err, interpreter.ErrInvalidChoice)) {
			return err
		}
		s.dirty = true
		return err
	})
	m.forward(ctx, id, step, progression.TickResult{})
	return step, err
}

// Tick advances the session's playtime.
func (m *Manager) Tick(ctx context.Context, id uuid.UUID, hours float64) (progression.TickResult, error) {
	var result progression.TickResult
	err := m.with(id, func(s *Session) error {
		var err error
		result, err = s.engine.Tick(hours)
		if err != nil {
			return err
		}
		s.dirty = true
		return nil
	})
	if err == nil {
		m.forward(ctx, id, engine.Step{}, result)
	}
	return result, err
}

// Save writes the session to a slot.
func (m *Manager) Save(ctx context.Context, id uuid.UUID, slot int, name string) (storage.SaveMeta, error) {
	var meta storage.SaveMeta
	err := m.with(id, func(s *Session) error {
		var err error
		meta, err = s.engine.Save(ctx, slot, name)
		return err
	})
	if err == nil && m.notifier != nil {
		if err := m.notifier.PublishSaved(ctx, id, meta); err != nil {
			m.logger.Warn("Failed to publish save notification", "session_id", id, "error", err)
		}
	}
	return meta, err
}

// Load restores a slot into the session.
func (m *Manager) Load(ctx context.Context, id uuid.UUID, slot int) (engine.View, error) {
	var v engine.View
	err := m.with(id, func(s *Session) error {
		if err := s.engine.Load(ctx, slot); err != nil {
			return err
		}
		v = s.engine.View()
		return nil
	})
	return v, err
}

// ListSaves returns the occupied slots of the session's profile.
func (m *Manager) ListSaves(ctx context.Context, id uuid.UUID) ([]storage.SaveMeta, error) {
	var saves []storage.SaveMeta
	err := m.with(id, func(s *Session) error {
		var err error
		saves, err = s.engine.ListSaves(ctx)
		return err
	})
	return saves, err
}

// Events drains the session's queued story events. Without a queue it
// returns nothing.
func (m *Manager) Events(ctx context.Context, id uuid.UUID) ([]progression.EventFired, error) {
	if _, err := m.Get(id); err != nil {
		return nil, err
	}
	if m.queue == nil {
		return nil, nil
	}
	return m.queue.Dequeue(ctx, id)
}

// AutosaveAll writes the autosave slot of every session changed since its
// last autosave and returns how many were saved.
func (m *Manager) AutosaveAll(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	var saved int
	var errs []error
	for _, id := range m.IDs() {
		err := m.inspect(id, func(s *Session) error {
			if !s.dirty {
				return nil
			}
			if err := s.engine.Autosave(ctx); err != nil {
				return err
			}
			s.dirty = false
			saved++
			return nil
		})
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			logger.WithError(logger.WithSession(m.logger, id), err).Error("Autosave failed")
			errs = append(errs, err)
		}
	}
	return saved, errors.Join(errs...)
}

// forward sends fired events to the queue and notifications to the
// notifier. Failures are logged; the game has already moved on.
func (m *Manager) forward(ctx context.Context, id uuid.UUID, step engine.Step, result progression.TickResult) {
	if m.queue != nil && len(result.Fired) > 0 {
		if err := m.queue.Enqueue(ctx, id, result.Fired...); err != nil {
			m.logger.Warn("Failed to queue story events", "session_id", id, "error", err)
		}
	}
	if m.notifier == nil {
		return
	}
	if len(step.Deltas) > 0 {
		if err := m.notifier.PublishCrossed(ctx, id, step.Deltas); err != nil {
			m.logger.Warn("Failed to publish threshold notifications", "session_id", id, "error", err)
		}
	}
	if len(result.Fired) > 0 || len(result.ChapterCompleted) > 0 || result.Ending != "" {
		if err := m.notifier.PublishTick(ctx, id, result); err != nil {
			m.logger.Warn("Failed to publish tick notifications", "session_id", id, "error", err)
		}
	}
}

// Prune removes sessions idle for longer than maxIdle. Dirty sessions are
// autosaved first; a session whose autosave fails is kept.
func (m *Manager) Prune(ctx context.Context, maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	var removed int
	for _, id := range m.IDs() {
		idle := false
		err := m.inspect(id, func(s *Session) error {
			if s.lastActive.After(cutoff) {
				return nil
			}
			if s.dirty && m.store != nil {
				if err := s.engine.Autosave(ctx); err != nil {
					return err
				}
			}
			idle = true
			return nil
		})
		if err != nil {
			m.logger.Warn("Keeping idle session after failed autosave", "session_id", id, "error", err)
			continue
		}
		if idle && m.Remove(id) == nil {
			removed++
		}
	}
	return removed
}
