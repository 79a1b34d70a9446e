package interpreter

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/relationship"
	"github.com/jwebster45206/heartline/pkg/state"
)

// GraphSource resolves scenario graphs by ID.
type GraphSource interface {
	LoadGraph(scenarioID string) (*dialogue.ScenarioGraph, error)
}

// DeltaApplier receives the affection deltas of selected choices.
type DeltaApplier interface {
	ApplyDelta(characterID string, amount int, reason string) relationship.LedgerEvent
}

// Line is the caller's view of the current node.
type Line struct {
	State     State           `json:"state"`
	Scenario  string          `json:"scenario,omitempty"`
	Node      int             `json:"node"`
	Speaker   string          `json:"speaker,omitempty"`
	Character string          `json:"character,omitempty"`
	Text      string          `json:"text,omitempty"`
	Visual    dialogue.Visual `json:"visual,omitzero"`
	Choices   []string        `json:"choices,omitempty"` // Visible choices only
}

// Interpreter walks one scenario graph at a time. It is not safe for
// concurrent use.
type Interpreter struct {
	graphs    GraphSource
	ledger    DeltaApplier
	flags     *state.FlagSet
	presenter Presenter
	renderer  Renderer
	logger    *slog.Logger

	state   State
	graph   *dialogue.ScenarioGraph
	index   int
	visible []int // Indices into the current node's choices that pass their guard
}

// New creates an idle interpreter.
func New(graphs GraphSource, ledger DeltaApplier, flags *state.FlagSet, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		graphs:    graphs,
		ledger:    ledger,
		flags:     flags,
		presenter: NopPresenter{},
		logger:    logger,
		state:     Idle,
	}
}

// WithPresenter sets where lines, choices and cues are sent.
// Returns the Interpreter for method chaining
func (in *Interpreter) WithPresenter(p Presenter) *Interpreter {
	if p == nil {
		p = NopPresenter{}
	}
	in.presenter = p
	return in
}

// WithRenderer sets the template renderer applied to line and choice text.
// Returns the Interpreter for method chaining
func (in *Interpreter) WithRenderer(r Renderer) *Interpreter {
	in.renderer = r
	return in
}

// State returns the current lifecycle state.
func (in *Interpreter) State() State {
	return in.state
}

// Scenario returns the active scenario ID, or "" when idle.
func (in *Interpreter) Scenario() string {
	if in.graph == nil {
		return ""
	}
	return in.graph.ID
}

// Busy reports whether a graph is mid-walk.
func (in *Interpreter) Busy() bool {
	return in.state == Presenting || in.state == AwaitingChoice
}

// Start loads a scenario and enters node 0. It is valid only when no graph
// is being walked.
func (in *Interpreter) Start(scenarioID string) error {
	if in.Busy() {
		return fmt.Errorf("%w: cannot start %s while %s", ErrInvalidState, scenarioID, in.state)
	}

	g, err := in.graphs.LoadGraph(scenarioID)
	if err != nil {
		return fmt.Errorf("failed to start scenario: %w", err)
	}

	in.graph = g
	in.logger.Info("Starting scenario", "scenario", scenarioID, "nodes", g.Len())
	return in.enter(0)
}

// Advance moves past the current line. It is valid only in Presenting.
func (in *Interpreter) Advance() error {
	if in.state != Presenting {
		return fmt.Errorf("%w: advance while %s", ErrInvalidState, in.state)
	}

	node := &in.graph.Nodes[in.index]
	if node.End {
		in.exhaust()
		return nil
	}
	if node.Next != nil {
		return in.jump(*node.Next)
	}
	return in.enter(in.index + 1)
}

// SelectChoice picks from the visible choices of the current node. It is
// valid only in AwaitingChoice. The ledger events of the choice's affection
// deltas are returned in character order.
func (in *Interpreter) SelectChoice(index int) ([]relationship.LedgerEvent, error) {
	if in.state != AwaitingChoice {
		return nil, fmt.Errorf("%w: select choice while %s", ErrInvalidState, in.state)
	}
	if index < 0 || index >= len(in.visible) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidChoice, index, len(in.visible))
	}

	node := &in.graph.Nodes[in.index]
	choice := node.Choices[in.visible[index]]
	if choice.RequiresFlag != "" && !in.flags.Has(choice.RequiresFlag) {
		return nil, fmt.Errorf("%w: guard %s not set", ErrInvalidChoice, choice.RequiresFlag)
	}

	target := in.index + 1
	if choice.Next != nil {
		if _, err := in.graph.Target(in.index, *choice.Next); err != nil {
			return nil, in.malformed(err)
		}
		target = *choice.Next
	}

	reason := fmt.Sprintf("%s:%d", in.graph.ID, in.index)
	var events []relationship.LedgerEvent
	for _, characterID := range slices.Sorted(maps.Keys(choice.Affection)) {
		events = append(events, in.ledger.ApplyDelta(characterID, choice.Affection[characterID], reason))
	}
	in.flags.Set(choice.SetFlag)

	in.logger.Debug("Choice selected",
		"scenario", in.graph.ID,
		"node", in.index,
		"choice", index,
		"target", target)

	return events, in.enter(target)
}

// Current returns the caller's view of the current node. Outside Presenting
// and AwaitingChoice only the state is set.
func (in *Interpreter) Current() Line {
	line := Line{State: in.state, Scenario: in.Scenario(), Node: in.index}
	if !in.Busy() {
		return line
	}
	node := &in.graph.Nodes[in.index]
	line.Speaker = in.render(node.Speaker)
	line.Character = node.Character
	line.Text = in.render(node.Text)
	line.Visual = node.Visual
	line.Choices = in.choiceTexts(node)
	return line
}

// Cursor exports the interpreter position for a snapshot.
func (in *Interpreter) Cursor() state.Cursor {
	return state.Cursor{State: in.state.String(), Scenario: in.Scenario(), Node: in.index}
}

// Restore moves the interpreter to a saved cursor. The cursor is fully
// validated before any state changes. Flags must already be restored, since
// visible choices are recomputed from them. Entry effects are not replayed;
// the current line is presented again.
func (in *Interpreter) Restore(c state.Cursor) error {
	s, err := ParseState(c.State)
	if err != nil {
		return err
	}

	if s == Idle || s == Exhausted {
		var g *dialogue.ScenarioGraph
		if c.Scenario != "" {
			if g, err = in.graphs.LoadGraph(c.Scenario); err != nil {
				return fmt.Errorf("failed to restore cursor: %w", err)
			}
		}
		in.state, in.graph, in.index, in.visible = s, g, c.Node, nil
		return nil
	}

	g, err := in.graphs.LoadGraph(c.Scenario)
	if err != nil {
		return fmt.Errorf("failed to restore cursor: %w", err)
	}
	node, err := g.Node(c.Node)
	if err != nil {
		return fmt.Errorf("failed to restore cursor: %w", err)
	}

	in.graph, in.index = g, c.Node
	in.settle(node)
	in.present(node)
	return nil
}

// Reset returns the interpreter to Idle.
func (in *Interpreter) Reset() {
	in.state, in.graph, in.index, in.visible = Idle, nil, 0, nil
}

// jump follows an explicit target, which must exist.
func (in *Interpreter) jump(target int) error {
	if _, err := in.graph.Target(in.index, target); err != nil {
		return in.malformed(err)
	}
	return in.enter(target)
}

func (in *Interpreter) enter(index int) error {
	node, err := in.graph.Node(index)
	if errors.Is(err, dialogue.ErrEndOfGraph) {
		in.exhaust()
		return nil
	}
	if err != nil {
		return in.malformed(err)
	}

	in.index = index
	if node.SetFlag != "" {
		in.flags.Set(node.SetFlag)
	}
	if node.Cue != nil && node.Cue.Name != "" {
		in.presenter.PlayCue(node.Cue.Name, node.Cue.Length())
	}

	in.settle(node)
	in.present(node)
	return nil
}

// settle picks Presenting or AwaitingChoice from the visible choices.
func (in *Interpreter) settle(node *dialogue.Node) {
	in.visible = in.visible[:0]
	for i, c := range node.Choices {
		if c.RequiresFlag == "" || in.flags.Has(c.RequiresFlag) {
			in.visible = append(in.visible, i)
		}
	}

	if len(in.visible) > 0 {
		in.state = AwaitingChoice
		return
	}
	if node.HasChoices() {
		in.logger.Warn("All choices hidden by guards, continuing sequentially",
			"scenario", in.graph.ID,
			"node", node.Index)
	}
	in.state = Presenting
}

func (in *Interpreter) present(node *dialogue.Node) {
	in.presenter.PresentLine(in.render(node.Speaker), in.render(node.Text), node.Visual)
	if in.state == AwaitingChoice {
		in.presenter.PresentChoices(in.choiceTexts(node))
	}
}

func (in *Interpreter) choiceTexts(node *dialogue.Node) []string {
	if in.state != AwaitingChoice {
		return nil
	}
	texts := make([]string, 0, len(in.visible))
	for _, i := range in.visible {
		texts = append(texts, in.render(node.Choices[i].Text))
	}
	return texts
}

func (in *Interpreter) render(text string) string {
	if in.renderer == nil || text == "" {
		return text
	}
	return in.renderer.Render(text)
}

func (in *Interpreter) exhaust() {
	in.state = Exhausted
	in.visible = nil
	in.logger.Debug("Scenario exhausted", "scenario", in.Scenario())
}

// malformed ends the graph on an authoring defect and returns the error.
func (in *Interpreter) malformed(err error) error {
	in.logger.Warn("Malformed scenario graph, ending scenario",
		"scenario", in.Scenario(),
		"node", in.index,
		"error", err)
	in.exhaust()
	return err
}
