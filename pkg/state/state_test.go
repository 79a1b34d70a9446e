package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/heartline/pkg/relationship"
)

func TestFlagSet(t *testing.T) {
	f := NewFlagSet()
	f.Set("met_misaki")
	f.Set("")
	f.Set("met_yukino")

	assert.True(t, f.Has("met_misaki"))
	assert.False(t, f.Has("confessed"))
	assert.True(t, f.HasAll("met_misaki", "met_yukino"))
	assert.False(t, f.HasAll("met_misaki", "confessed"))
	assert.Equal(t, []string{"met_misaki", "met_yukino"}, f.Names())

	exported := f.Export()
	exported["confessed"] = true
	assert.False(t, f.Has("confessed"), "export must be a copy")

	f.Restore(map[string]bool{"a": true, "b": false})
	assert.Equal(t, []string{"a"}, f.Names())

	f.Reset()
	assert.Empty(t, f.Names())
}

func TestCalendar_Advance(t *testing.T) {
	c := NewCalendar()
	assert.Equal(t, "Day 1 (morning)", c.String())

	assert.False(t, c.Advance())
	assert.Equal(t, Afternoon, c.Phase)
	assert.False(t, c.Advance())
	assert.Equal(t, Evening, c.Phase)

	assert.True(t, c.Advance(), "evening rolls over to a new day")
	assert.Equal(t, Calendar{Day: 2, Phase: Morning}, c)
}

func TestGameState_RoundTrip(t *testing.T) {
	gs := NewGameState("default")
	gs.PlayerName = "Haruto"
	gs.Flags["met_misaki"] = true
	gs.Relationships["misaki"] = relationship.Record{Character: "misaki", Score: 42, Crossed: map[string]bool{"friend": true}}
	gs.Progress.Occurred["meet_misaki"] = true
	gs.Progress.Pending = []string{"misaki_event1"}
	gs.Cursor = Cursor{State: "presenting", Scenario: "prologue", Node: 3}

	data, err := gs.Marshal()
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, gs.ID, decoded.ID)
	assert.Equal(t, 42, decoded.Relationships["misaki"].Score)
	assert.True(t, decoded.Flags["met_misaki"])
	assert.Equal(t, []string{"misaki_event1"}, decoded.Progress.Pending)
	assert.Equal(t, gs.Cursor, decoded.Cursor)
}

func TestUnmarshal_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "{"},
		{name: "future version", data: `{"version": 99, "progress": {"calendar": {"day": 1, "phase": "morning"}}}`},
		{name: "missing version", data: `{"progress": {"calendar": {"day": 1, "phase": "morning"}}}`},
		{name: "bad phase", data: `{"version": 1, "progress": {"calendar": {"day": 1, "phase": "midnight"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, err := Unmarshal([]byte(tt.data))
			assert.Error(t, err)
			assert.Nil(t, gs)
		})
	}
}
