package interpreter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/relationship"
	"github.com/jwebster45206/heartline/pkg/state"
)

func intPtr(i int) *int { return &i }

type recorder struct {
	lines   []string
	choices [][]string
	cues    []string
}

func (r *recorder) PresentLine(speaker, text string, _ dialogue.Visual) {
	r.lines = append(r.lines, text)
}

func (r *recorder) PresentChoices(choices []string) {
	r.choices = append(r.choices, choices)
}

func (r *recorder) PlayCue(name string, _ time.Duration) {
	r.cues = append(r.cues, name)
}

type upper struct{}

func (upper) Render(text string) string {
	if text == "Hello {player}" {
		return "Hello Haruto"
	}
	return text
}

type fixture struct {
	store  *dialogue.Store
	ledger *relationship.Ledger
	flags  *state.FlagSet
	rec    *recorder
	in     *Interpreter
}

func newFixture(t *testing.T, graphs ...dialogue.ScenarioGraph) *fixture {
	t.Helper()
	store := dialogue.NewStore(nil)
	for _, g := range graphs {
		require.NoError(t, store.Register(g))
	}
	f := &fixture{
		store:  store,
		ledger: relationship.NewLedger(relationship.Config{}, nil),
		flags:  state.NewFlagSet(),
		rec:    &recorder{},
	}
	f.in = New(store, f.ledger, f.flags, nil).WithPresenter(f.rec)
	return f
}

func sequential() dialogue.ScenarioGraph {
	return dialogue.ScenarioGraph{
		ID: "walk_home",
		Nodes: []dialogue.Node{
			{Speaker: "Misaki", Text: "Shall we go?"},
			{Text: "The streets are quiet.", SetFlag: "walked_home", Cue: &dialogue.Cue{Name: "bgm_evening", Duration: 2}},
			{Speaker: "Misaki", Text: "See you tomorrow."},
		},
	}
}

func branching() dialogue.ScenarioGraph {
	return dialogue.ScenarioGraph{
		ID: "rooftop",
		Nodes: []dialogue.Node{
			{
				Speaker: "Misaki",
				Text:    "Do you like the view?",
				Choices: []dialogue.Choice{
					{Text: "It's beautiful", Affection: map[string]int{"misaki": 10}, SetFlag: "praised_view", Next: intPtr(5)},
					{Text: "It's windy"},
					{Text: "Ask about the letter", RequiresFlag: "found_letter", Affection: map[string]int{"misaki": 20}},
				},
			},
			{Text: "Misaki shrugs."},
			{Text: "unused"},
			{Text: "unused"},
			{Text: "unused"},
			{Speaker: "Misaki", Text: "I'm glad you think so."},
		},
	}
}

func TestInterpreter_SequentialExhaustion(t *testing.T) {
	f := newFixture(t, sequential())
	require.Equal(t, Idle, f.in.State())

	require.NoError(t, f.in.Start("walk_home"))
	assert.Equal(t, Presenting, f.in.State())
	assert.Equal(t, 0, f.in.Current().Node)

	require.NoError(t, f.in.Advance())
	require.NoError(t, f.in.Advance())
	require.NoError(t, f.in.Advance())
	assert.Equal(t, Exhausted, f.in.State())

	err := f.in.Advance()
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, Exhausted, f.in.State())

	assert.Equal(t, []string{"Shall we go?", "The streets are quiet.", "See you tomorrow."}, f.rec.lines)
}

func TestInterpreter_EntryEffects(t *testing.T) {
	f := newFixture(t, sequential())
	require.NoError(t, f.in.Start("walk_home"))
	assert.False(t, f.flags.Has("walked_home"))
	assert.Empty(t, f.rec.cues)

	require.NoError(t, f.in.Advance())
	assert.True(t, f.flags.Has("walked_home"), "flag is set on entry")
	assert.Equal(t, []string{"bgm_evening"}, f.rec.cues)

	// Reading the line again must not replay the cue
	_ = f.in.Current()
	_ = f.in.Current()
	assert.Len(t, f.rec.cues, 1)
}

func TestInterpreter_ChoiceDeltasAndJump(t *testing.T) {
	f := newFixture(t, branching())
	require.NoError(t, f.in.Start("rooftop"))
	require.Equal(t, AwaitingChoice, f.in.State())

	line := f.in.Current()
	assert.Equal(t, []string{"It's beautiful", "It's windy"}, line.Choices, "guarded choice is hidden")
	assert.Equal(t, [][]string{{"It's beautiful", "It's windy"}}, f.rec.choices)

	events, err := f.in.SelectChoice(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "misaki", events[0].Character)

	score, err := f.ledger.Score("misaki")
	require.NoError(t, err)
	assert.Equal(t, 10, score)
	assert.True(t, f.flags.Has("praised_view"))
	assert.Equal(t, 5, f.in.Current().Node)
	assert.Equal(t, Presenting, f.in.State())
}

func TestInterpreter_AdvanceWhileAwaitingChoice(t *testing.T) {
	f := newFixture(t, branching())
	require.NoError(t, f.in.Start("rooftop"))

	err := f.in.Advance()
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, AwaitingChoice, f.in.State())
	assert.Equal(t, 0, f.in.Current().Node)
}

func TestInterpreter_InvalidChoice(t *testing.T) {
	tests := []struct {
		name  string
		index int
	}{
		{name: "negative", index: -1},
		{name: "guarded choice by raw index", index: 2},
		{name: "past end", index: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, branching())
			require.NoError(t, f.in.Start("rooftop"))

			_, err := f.in.SelectChoice(tt.index)
			assert.ErrorIs(t, err, ErrInvalidChoice)
			assert.Equal(t, AwaitingChoice, f.in.State())
			assert.Equal(t, 0, f.ledger.ScoreOrZero("misaki"))
		})
	}
}

func TestInterpreter_GuardedChoiceVisibleWhenFlagSet(t *testing.T) {
	f := newFixture(t, branching())
	f.flags.Set("found_letter")
	require.NoError(t, f.in.Start("rooftop"))

	line := f.in.Current()
	require.Len(t, line.Choices, 3)

	_, err := f.in.SelectChoice(2)
	require.NoError(t, err)
	assert.Equal(t, 20, f.ledger.ScoreOrZero("misaki"))
	assert.Equal(t, 1, f.in.Current().Node, "no explicit target falls to index+1")
}

func TestInterpreter_SelectChoiceWhilePresenting(t *testing.T) {
	f := newFixture(t, sequential())
	require.NoError(t, f.in.Start("walk_home"))

	_, err := f.in.SelectChoice(0)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, Presenting, f.in.State())
}

func TestInterpreter_StartRules(t *testing.T) {
	f := newFixture(t, sequential(), branching())

	err := f.in.Start("missing")
	assert.ErrorIs(t, err, dialogue.ErrNotFound)
	assert.Equal(t, Idle, f.in.State())

	require.NoError(t, f.in.Start("walk_home"))
	err = f.in.Start("rooftop")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "walk_home", f.in.Scenario())

	for f.in.State() != Exhausted {
		require.NoError(t, f.in.Advance())
	}
	require.NoError(t, f.in.Start("rooftop"), "exhausted interpreter accepts a new graph")
	assert.Equal(t, 0, f.in.Current().Node)
}

func TestInterpreter_MalformedTarget(t *testing.T) {
	g := dialogue.ScenarioGraph{
		ID: "draft",
		Nodes: []dialogue.Node{
			{Text: "Work in progress", Next: intPtr(9)},
		},
	}
	f := newFixture(t, g)
	require.NoError(t, f.in.Start("draft"))

	err := f.in.Advance()
	require.Error(t, err)
	assert.True(t, dialogue.IsMalformed(err))
	assert.Equal(t, Exhausted, f.in.State())
}

func TestInterpreter_EndNodeAndExplicitNext(t *testing.T) {
	g := dialogue.ScenarioGraph{
		ID: "loop",
		Nodes: []dialogue.Node{
			{Text: "first", Next: intPtr(2)},
			{Text: "skipped"},
			{Text: "last", End: true},
			{Text: "never reached"},
		},
	}
	f := newFixture(t, g)
	require.NoError(t, f.in.Start("loop"))
	require.NoError(t, f.in.Advance())
	assert.Equal(t, 2, f.in.Current().Node)
	require.NoError(t, f.in.Advance())
	assert.Equal(t, Exhausted, f.in.State())
	assert.Equal(t, []string{"first", "last"}, f.rec.lines)
}

func TestInterpreter_AllChoicesHidden(t *testing.T) {
	g := dialogue.ScenarioGraph{
		ID: "secret",
		Nodes: []dialogue.Node{
			{Text: "A locked door.", Choices: []dialogue.Choice{{Text: "Use key", RequiresFlag: "has_key"}}},
			{Text: "You walk away."},
		},
	}
	f := newFixture(t, g)
	require.NoError(t, f.in.Start("secret"))
	assert.Equal(t, Presenting, f.in.State())

	require.NoError(t, f.in.Advance())
	assert.Equal(t, 1, f.in.Current().Node)
}

func TestInterpreter_Renderer(t *testing.T) {
	g := dialogue.ScenarioGraph{ID: "greet", Nodes: []dialogue.Node{{Text: "Hello {player}"}}}
	f := newFixture(t, g)
	f.in.WithRenderer(upper{})

	require.NoError(t, f.in.Start("greet"))
	assert.Equal(t, "Hello Haruto", f.in.Current().Text)
	assert.Equal(t, []string{"Hello Haruto"}, f.rec.lines)
}

func TestInterpreter_CursorRestore(t *testing.T) {
	f := newFixture(t, branching())
	require.NoError(t, f.in.Start("rooftop"))
	cursor := f.in.Cursor()
	assert.Equal(t, state.Cursor{State: "awaiting_choice", Scenario: "rooftop", Node: 0}, cursor)

	other := newFixture(t, branching())
	require.NoError(t, other.in.Restore(cursor))
	assert.Equal(t, AwaitingChoice, other.in.State())
	assert.Len(t, other.in.Current().Choices, 2)

	err := other.in.Restore(state.Cursor{State: "presenting", Scenario: "rooftop", Node: 40})
	assert.Error(t, err)
	assert.Equal(t, AwaitingChoice, other.in.State(), "failed restore leaves state untouched")

	err = other.in.Restore(state.Cursor{State: "dancing"})
	assert.Error(t, err)
}

func TestBufferedPresenter_DropsWhenFull(t *testing.T) {
	p := NewBufferedPresenter(2)
	p.PresentLine("Misaki", "one", dialogue.Visual{})
	p.PresentChoices([]string{"a", "b"})
	p.PlayCue("shake", time.Second)

	assert.Equal(t, int64(1), p.Dropped())
	out := p.Drain()
	require.Len(t, out, 2)
	assert.Equal(t, OutputLine, out[0].Kind)
	assert.Nil(t, out[0].Visual)
	assert.Equal(t, OutputChoices, out[1].Kind)
	assert.Empty(t, p.Drain())
}

func TestState_Text(t *testing.T) {
	for _, s := range []State{Idle, Presenting, AwaitingChoice, Exhausted} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var parsed State
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, s, parsed)
	}
}
