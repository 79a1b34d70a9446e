package dialogue

import "time"

// ScenarioGraph is one story beat: an ordered list of dialogue nodes.
// Graphs are content data and are never mutated after registration.
type ScenarioGraph struct {
	ID    string `json:"id"`              // Unique scenario ID, e.g. "prologue"
	Name  string `json:"name,omitempty"`  // Display name
	Nodes []Node `json:"nodes"`           // Nodes in sequence order
	Notes string `json:"notes,omitempty"` // Authoring notes, never presented
}

// Node is a single step in a scenario graph.
type Node struct {
	Index     int      `json:"-"`                   // Position in the graph, assigned on registration
	Speaker   string   `json:"speaker,omitempty"`   // Speaker name; empty for narration
	Character string   `json:"character,omitempty"` // Character the line belongs to
	Text      string   `json:"text"`                // Display text, may contain {placeholders}
	Visual    Visual   `json:"visual,omitempty"`    // Background and portrait references
	Choices   []Choice `json:"choices,omitempty"`   // Player options; non-empty means no fallthrough
	Next      *int     `json:"next,omitempty"`      // Explicit next node index
	End       bool     `json:"end,omitempty"`       // Graph ends after this node
	SetFlag   string   `json:"set_flag,omitempty"`  // Flag set when the node is entered
	Cue       *Cue     `json:"cue,omitempty"`       // Visual/audio cue emitted on entry
}

// Visual references presentation assets by name. The engine never resolves them.
type Visual struct {
	Background string `json:"background,omitempty"`
	Portrait   string `json:"portrait,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// IsZero reports whether no visual change is requested.
func (v Visual) IsZero() bool {
	return v.Background == "" && v.Portrait == "" && v.Expression == ""
}

// Cue is a named presenter effect, e.g. "shake" or "bgm_school".
type Cue struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration,omitempty"` // Seconds; 0 lets the presenter choose
}

// Length returns the cue duration as a time.Duration.
func (c Cue) Length() time.Duration {
	return time.Duration(c.Duration * float64(time.Second))
}

// Choice is a player option belonging to exactly one node.
type Choice struct {
	Text         string         `json:"text"`
	Affection    map[string]int `json:"affection,omitempty"`     // Character ID to score delta
	SetFlag      string         `json:"flag,omitempty"`          // Flag set when chosen
	Next         *int           `json:"next,omitempty"`          // Explicit target node index
	RequiresFlag string         `json:"requires_flag,omitempty"` // Hidden unless this flag is set
}

// HasChoices reports whether the node suspends for a choice.
func (n *Node) HasChoices() bool {
	return len(n.Choices) > 0
}

// Len returns the number of nodes in the graph.
func (g *ScenarioGraph) Len() int {
	return len(g.Nodes)
}

// Node resolves a node by index. An index past the last node returns
// ErrEndOfGraph, the normal exhaustion signal. Negative indices are malformed.
func (g *ScenarioGraph) Node(index int) (*Node, error) {
	if index < 0 {
		return nil, &MalformedGraphError{Scenario: g.ID, Node: index, Target: index, Reason: "negative node index"}
	}
	if index >= len(g.Nodes) {
		return nil, ErrEndOfGraph
	}
	return &g.Nodes[index], nil
}

// Target resolves an explicit jump from node `from` to node `to`. Unlike
// Node, a target past the end is an authoring defect, not exhaustion.
func (g *ScenarioGraph) Target(from, to int) (*Node, error) {
	if to < 0 || to >= len(g.Nodes) {
		return nil, &MalformedGraphError{Scenario: g.ID, Node: from, Target: to, Reason: "target node does not exist"}
	}
	return &g.Nodes[to], nil
}
