package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jwebster45206/heartline/pkg/content"
	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/interpreter"
	"github.com/jwebster45206/heartline/pkg/progression"
	"github.com/jwebster45206/heartline/pkg/relationship"
	"github.com/jwebster45206/heartline/pkg/state"
	"github.com/jwebster45206/heartline/pkg/storage"
	"github.com/jwebster45206/heartline/pkg/textfilter"
)

const (
	DefaultProfile      = "default"
	DefaultMaxSaveSlots = 20
)

var (
	ErrNoStorage   = errors.New("no storage configured")
	ErrInvalidSlot = errors.New("invalid save slot")
)

// Options configures an Engine.
type Options struct {
	Profile              string // Save namespace, defaults to "default"
	PlayerName           string
	MaxDailyInteractions int
	MaxSaveSlots         int
	Presenter            interpreter.Presenter
	Storage              storage.Storage
}

// Step is the outcome of one player action.
type Step struct {
	Line    interpreter.Line           `json:"line"`
	Deltas  []relationship.LedgerEvent `json:"deltas,omitempty"`
	Events  []progression.EventFired   `json:"events,omitempty"`  // Story events fired by the action
	Started string                     `json:"started,omitempty"` // Scenario started after the previous one ended
	Ending  string                     `json:"ending,omitempty"`
}

// Engine composes the narrative components for one playthrough. It is not
// safe for concurrent use; callers serialize access.
type Engine struct {
	id     uuid.UUID
	pack   *content.Pack
	graphs *dialogue.Store
	opts   Options
	logger *slog.Logger

	templater *textfilter.Templater
	ledger    *relationship.Ledger
	flags     *state.FlagSet
	interp    *interpreter.Interpreter
	sched     *progression.Scheduler

	choicesMade int
}

// New creates an engine over a loaded content pack. graphs must hold the
// pack's scenarios. Call NewGame or Restore before playing.
func New(pack *content.Pack, graphs *dialogue.Store, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Profile == "" {
		opts.Profile = DefaultProfile
	}
	if opts.MaxSaveSlots <= 0 {
		opts.MaxSaveSlots = DefaultMaxSaveSlots
	}
	if opts.Presenter == nil {
		opts.Presenter = interpreter.NopPresenter{}
	}

	e := &Engine{
		id:        uuid.New(),
		pack:      pack,
		graphs:    graphs,
		opts:      opts,
		logger:    logger,
		templater: textfilter.NewTemplater(opts.PlayerName, pack.CharacterNames()),
	}
	e.ledger, e.flags, e.interp, e.sched = e.build()
	return e
}

// build creates a fresh set of components wired to each other.
func (e *Engine) build() (*relationship.Ledger, *state.FlagSet, *interpreter.Interpreter, *progression.Scheduler) {
	ledger := relationship.NewLedger(e.pack.LedgerConfig(e.opts.MaxDailyInteractions), e.logger)
	for _, id := range e.pack.CharacterIDs() {
		ledger.Register(id)
	}
	flags := state.NewFlagSet()
	interp := interpreter.New(e.graphs, ledger, flags, e.logger).
		WithPresenter(e.opts.Presenter).
		WithRenderer(e.templater)
	sched := progression.NewScheduler(e.pack.ProgressionConfig(), ledger, flags, interp, e.logger)
	return ledger, flags, interp, sched
}

// ID returns the playthrough ID.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// Profile returns the save namespace.
func (e *Engine) Profile() string {
	return e.opts.Profile
}

// Ledger returns the relationship ledger for read access.
func (e *Engine) Ledger() *relationship.Ledger {
	return e.ledger
}

// Flags returns the playthrough flags.
func (e *Engine) Flags() *state.FlagSet {
	return e.flags
}

// Scheduler returns the progression scheduler.
func (e *Engine) Scheduler() *progression.Scheduler {
	return e.sched
}

// NewGame resets all state and starts the opening scenario.
func (e *Engine) NewGame() (Step, error) {
	e.id = uuid.New()
	e.choicesMade = 0
	e.ledger, e.flags, e.interp, e.sched = e.build()

	e.logger.Info("Starting new game", "game_id", e.id, "profile", e.opts.Profile)

	step := Step{Started: e.pack.OpeningScenario}
	if err := e.interp.Start(e.pack.OpeningScenario); err != nil {
		return Step{}, fmt.Errorf("failed to start opening scenario: %w", err)
	}
	// Events due at the very start are queued behind the opening
	result, err := e.sched.Tick(0)
	if err != nil {
		return Step{}, err
	}
	step.Events = result.Fired
	step.Line = e.interp.Current()
	return step, nil
}

// Current returns the line being shown.
func (e *Engine) Current() interpreter.Line {
	return e.interp.Current()
}

// Advance moves past the current line. When the scenario ends the next one
// is chosen and started.
func (e *Engine) Advance() (Step, error) {
	if err := e.interp.Advance(); err != nil {
		if errors.Is(err, interpreter.ErrInvalidState) {
			return Step{}, err
		}
		// Malformed graph: report it but keep the story going
		step := e.continueStory()
		return step, err
	}
	return e.continueStory(), nil
}

// SelectChoice picks one of the visible choices.
func (e *Engine) SelectChoice(index int) (Step, error) {
	deltas, err := e.interp.SelectChoice(index)
	if err != nil && (errors.Is(err, interpreter.ErrInvalidState) || errors.Is(err, interpreter.ErrInvalidChoice)) {
		return Step{}, err
	}
	if err == nil {
		e.choicesMade++
	}

	for _, d := range deltas {
		if d.ReachedMax {
			e.logger.Info("Maximum affection reached", "character", d.Character)
		}
		e.sched.NotifyCrossed(d.Crossed)
	}

	step := e.continueStory()
	step.Deltas = deltas
	return step, err
}

// Tick advances simulated playtime by the given hours.
func (e *Engine) Tick(hours float64) (progression.TickResult, error) {
	result, err := e.sched.Tick(hours)
	if err != nil {
		return result, err
	}
	if !e.interp.Busy() {
		e.continueStory()
	}
	return result, nil
}

// continueStory starts the next scenario once the current one is exhausted.
func (e *Engine) continueStory() Step {
	step := Step{Ending: e.sched.Ending()}
	if e.interp.State() == interpreter.Exhausted {
		next := e.sched.NextScenario()
		if next != "" {
			if err := e.interp.Start(next); err != nil {
				e.logger.Warn("Failed to start next scenario", "scenario", next, "error", err)
			} else {
				step.Started = next
			}
		}
	}
	step.Line = e.interp.Current()
	return step
}
