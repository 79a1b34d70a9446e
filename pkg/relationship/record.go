package relationship

import (
	"maps"
	"slices"
	"time"
)

// Threshold is a named score boundary. Crossing it upward fires a
// ThresholdCrossed event at most once per character.
type Threshold struct {
	ID          string `json:"id"`
	Score       int    `json:"score"`
	Character   string `json:"character,omitempty"`   // Applies to every character when empty
	Scenario    string `json:"scenario,omitempty"`    // Scenario unlocked by the crossing, {character} allowed
	Description string `json:"description,omitempty"` // Shown in unlock notifications
}

// ThresholdCrossed records the first time a character passes a threshold.
type ThresholdCrossed struct {
	Character string    `json:"character"`
	Threshold Threshold `json:"threshold"`
}

// DeltaEntry is one audited score change.
type DeltaEntry struct {
	Amount  int       `json:"amount"`  // Requested change
	Applied int       `json:"applied"` // Change after clamping
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// Record is the ledger state for one character. Level and status are not
// stored; they are derived from Score on every read.
type Record struct {
	Character         string          `json:"character"`
	Score             int             `json:"score"`
	Crossed           map[string]bool `json:"crossed,omitempty"`
	History           []DeltaEntry    `json:"history,omitempty"`
	DailyInteractions int             `json:"daily_interactions,omitempty"`
}

func newRecord(id string) *Record {
	return &Record{
		Character: id,
		Crossed:   make(map[string]bool),
	}
}

func (r *Record) clone() Record {
	c := *r
	c.Crossed = maps.Clone(r.Crossed)
	if c.Crossed == nil {
		c.Crossed = make(map[string]bool)
	}
	c.History = slices.Clone(r.History)
	return c
}

// CrossedIDs returns the crossed threshold IDs in sorted order.
func (r *Record) CrossedIDs() []string {
	return slices.Sorted(maps.Keys(r.Crossed))
}
