package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jwebster45206/heartline/pkg/interpreter"
	"github.com/jwebster45206/heartline/pkg/relationship"
	"github.com/jwebster45206/heartline/pkg/state"
	"github.com/jwebster45206/heartline/pkg/storage"
)

// Snapshot captures the complete playthrough state as an opaque blob.
func (e *Engine) Snapshot() ([]byte, error) {
	return e.gameState().Marshal()
}

func (e *Engine) gameState() *state.GameState {
	return &state.GameState{
		Version:       state.SnapshotVersion,
		ID:            e.id,
		Profile:       e.opts.Profile,
		PlayerName:    e.templater.Player(),
		SavedAt:       time.Now().UTC(),
		Relationships: e.ledger.Export(),
		Flags:         e.flags.Export(),
		Progress:      e.sched.Progress(),
		Cursor:        e.interp.Cursor(),
		ChoicesMade:   e.choicesMade,
	}
}

// Restore replaces the playthrough with a snapshot. The snapshot is decoded
// and applied to fresh components; the running state is only swapped once
// every part has been validated.
func (e *Engine) Restore(blob []byte) error {
	gs, err := state.Unmarshal(blob)
	if err != nil {
		return err
	}

	ledger, flags, interp, sched := e.build()
	if err := ledger.Restore(gs.Relationships); err != nil {
		return fmt.Errorf("failed to restore relationships: %w", err)
	}
	for _, id := range e.pack.CharacterIDs() {
		ledger.Register(id)
	}
	flags.Restore(gs.Flags)
	if err := sched.Restore(gs.Progress); err != nil {
		return fmt.Errorf("failed to restore progress: %w", err)
	}
	// Last step: a successful cursor restore re-presents the current line
	if err := interp.Restore(gs.Cursor); err != nil {
		return fmt.Errorf("failed to restore cursor: %w", err)
	}

	e.id = gs.ID
	e.choicesMade = gs.ChoicesMade
	if gs.PlayerName != "" {
		e.templater.WithPlayer(gs.PlayerName)
	}
	e.ledger, e.flags, e.interp, e.sched = ledger, flags, interp, sched

	e.logger.Info("Restored game", "game_id", e.id, "scenario", gs.Cursor.Scenario, "node", gs.Cursor.Node)
	return nil
}

func (e *Engine) checkSlot(slot int) error {
	if slot < 0 || slot >= e.opts.MaxSaveSlots {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidSlot, slot, e.opts.MaxSaveSlots)
	}
	return nil
}

// Save writes a snapshot to a slot. The snapshot is built completely before
// anything is written.
func (e *Engine) Save(ctx context.Context, slot int, name string) (storage.SaveMeta, error) {
	if e.opts.Storage == nil {
		return storage.SaveMeta{}, ErrNoStorage
	}
	if err := e.checkSlot(slot); err != nil {
		return storage.SaveMeta{}, err
	}

	gs := e.gameState()
	blob, err := gs.Marshal()
	if err != nil {
		return storage.SaveMeta{}, err
	}

	meta := storage.SaveMeta{
		Slot:    slot,
		Name:    name,
		Day:     gs.Progress.Calendar.Day,
		Chapter: gs.Progress.Chapter,
		SavedAt: gs.SavedAt,
	}
	if err := e.opts.Storage.SaveSnapshot(ctx, e.opts.Profile, meta, blob); err != nil {
		return storage.SaveMeta{}, err
	}

	e.logger.Info("Game saved", "game_id", e.id, "slot", slot, "name", name)
	return meta, nil
}

// Load restores a snapshot from a slot. A failed load leaves the current
// game untouched.
func (e *Engine) Load(ctx context.Context, slot int) error {
	if e.opts.Storage == nil {
		return ErrNoStorage
	}
	if err := e.checkSlot(slot); err != nil {
		return err
	}
	blob, err := e.opts.Storage.LoadSnapshot(ctx, e.opts.Profile, slot)
	if err != nil {
		return err
	}
	return e.Restore(blob)
}

// ListSaves returns the occupied save slots.
func (e *Engine) ListSaves(ctx context.Context) ([]storage.SaveMeta, error) {
	if e.opts.Storage == nil {
		return nil, ErrNoStorage
	}
	return e.opts.Storage.ListSaves(ctx, e.opts.Profile)
}

// Autosave writes the autosave slot.
func (e *Engine) Autosave(ctx context.Context) error {
	_, err := e.Save(ctx, storage.AutosaveSlot, "Autosave")
	return err
}

// QuickSave writes the quick save slot.
func (e *Engine) QuickSave(ctx context.Context) error {
	_, err := e.Save(ctx, storage.QuicksaveSlot, "Quick Save")
	return err
}

// QuickLoad restores the quick save slot.
func (e *Engine) QuickLoad(ctx context.Context) error {
	return e.Load(ctx, storage.QuicksaveSlot)
}

// CharacterView is a read model of one relationship.
type CharacterView struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Score   int                 `json:"score"`
	Level   int                 `json:"level"`
	Status  relationship.Status `json:"status"`
	CanTalk bool                `json:"can_talk"`
}

// View is a read model of the whole playthrough.
type View struct {
	ID            string           `json:"id"`
	Profile       string           `json:"profile"`
	Line          interpreter.Line `json:"line"`
	Calendar      state.Calendar   `json:"calendar"`
	Chapter       int              `json:"chapter"`
	ChapterTitle  string           `json:"chapter_title,omitempty"`
	TotalPlaytime float64          `json:"total_playtime"`
	Characters    []CharacterView  `json:"characters"`
	Flags         []string         `json:"flags,omitempty"`
	Ending        string           `json:"ending,omitempty"`
	ChoicesMade   int              `json:"choices_made"`
}

// View builds the read model.
func (e *Engine) View() View {
	p := e.sched.Progress()
	v := View{
		ID:            e.id.String(),
		Profile:       e.opts.Profile,
		Line:          e.interp.Current(),
		Calendar:      p.Calendar,
		Chapter:       p.Chapter,
		TotalPlaytime: p.TotalPlaytime,
		Flags:         e.flags.Names(),
		Ending:        p.Ending,
		ChoicesMade:   e.choicesMade,
	}
	if ch, ok := e.sched.Chapter(); ok {
		v.ChapterTitle = ch.Title
	}
	for _, id := range e.ledger.Characters() {
		score := e.ledger.ScoreOrZero(id)
		level, _ := e.ledger.Level(id)
		v.Characters = append(v.Characters, CharacterView{
			ID:      id,
			Name:    e.templater.Name(id),
			Score:   score,
			Level:   level,
			Status:  relationship.StatusFor(score),
			CanTalk: e.ledger.CanInteract(id),
		})
	}
	return v
}
