package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/heartline/pkg/relationship"
)

// SnapshotVersion is bumped whenever the GameState layout changes.
const SnapshotVersion = 1

// ErrUnsupportedSnapshot is returned for snapshots written by a newer engine.
var ErrUnsupportedSnapshot = errors.New("unsupported snapshot version")

// Cursor is the dialogue interpreter's position.
type Cursor struct {
	State    string `json:"state"`              // idle, presenting, awaiting_choice, exhausted
	Scenario string `json:"scenario,omitempty"` // Active scenario ID
	Node     int    `json:"node"`               // Current node index
}

// Progress is the progression scheduler's state.
type Progress struct {
	Chapter         int             `json:"chapter"`
	ChapterProgress float64         `json:"chapter_progress"` // Hours into the current chapter
	TotalPlaytime   float64         `json:"total_playtime"`   // Hours
	Calendar        Calendar        `json:"calendar"`
	Occurred        map[string]bool `json:"occurred,omitempty"`  // Story event IDs that have fired
	Completed       []int           `json:"completed,omitempty"` // Completed chapter numbers
	Pending         []string        `json:"pending,omitempty"`   // Scenarios queued to start
	Ending          string          `json:"ending,omitempty"`    // Achieved ending, once decided
}

// GameState is the complete, serializable state of one playthrough.
type GameState struct {
	Version       int                            `json:"version"`
	ID            uuid.UUID                      `json:"id"`      // Unique ID per playthrough
	Profile       string                         `json:"profile"` // Save namespace
	PlayerName    string                         `json:"player_name,omitempty"`
	SavedAt       time.Time                      `json:"saved_at"`
	Relationships map[string]relationship.Record `json:"relationships"`
	Flags         map[string]bool                `json:"flags,omitempty"`
	Progress      Progress                       `json:"progress"`
	Cursor        Cursor                         `json:"cursor"`
	ChoicesMade   int                            `json:"choices_made"`
}

// NewGameState creates an empty playthrough state.
func NewGameState(profile string) *GameState {
	return &GameState{
		Version:       SnapshotVersion,
		ID:            uuid.New(),
		Profile:       profile,
		Relationships: make(map[string]relationship.Record),
		Flags:         make(map[string]bool),
		Progress: Progress{
			Chapter:  1,
			Calendar: NewCalendar(),
			Occurred: make(map[string]bool),
		},
	}
}

// Marshal encodes the state as an opaque snapshot blob.
func (gs *GameState) Marshal() ([]byte, error) {
	data, err := json.Marshal(gs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gamestate: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a snapshot blob. The result is only returned when the
// blob decodes completely.
func Unmarshal(data []byte) (*GameState, error) {
	var gs GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gamestate: %w", err)
	}
	if gs.Version > SnapshotVersion || gs.Version <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSnapshot, gs.Version)
	}
	if gs.Relationships == nil {
		gs.Relationships = make(map[string]relationship.Record)
	}
	if gs.Flags == nil {
		gs.Flags = make(map[string]bool)
	}
	if gs.Progress.Occurred == nil {
		gs.Progress.Occurred = make(map[string]bool)
	}
	if gs.Progress.Calendar.Day <= 0 || !gs.Progress.Calendar.Phase.Valid() {
		return nil, fmt.Errorf("failed to unmarshal gamestate: invalid calendar %s", gs.Progress.Calendar)
	}
	return &gs, nil
}
