package dialogue

import (
	"fmt"
	"log/slog"
	"maps"
	"sort"
)

// Store holds registered scenario graphs and resolves them by ID.
// It performs no game-rule logic.
type Store struct {
	graphs map[string]*ScenarioGraph
	logger *slog.Logger
}

// NewStore creates an empty graph store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		graphs: make(map[string]*ScenarioGraph),
		logger: logger,
	}
}

// Register adds a graph at content-load time. Node indices are assigned from
// sequence position. The store keeps its own copy so later changes to g have
// no effect.
func (s *Store) Register(g ScenarioGraph) error {
	if g.ID == "" {
		return ErrMissingID
	}
	if _, exists := s.graphs[g.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateScenario, g.ID)
	}

	nodes := make([]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		n.Index = i
		n.Next = copyIndex(n.Next)
		if n.Cue != nil {
			cue := *n.Cue
			n.Cue = &cue
		}
		if n.Choices != nil {
			choices := make([]Choice, len(n.Choices))
			for j, c := range n.Choices {
				c.Affection = maps.Clone(c.Affection)
				c.Next = copyIndex(c.Next)
				choices[j] = c
			}
			n.Choices = choices
		}
		nodes[i] = n
	}
	g.Nodes = nodes

	s.graphs[g.ID] = &g
	s.logger.Debug("Registered scenario", "scenario", g.ID, "nodes", len(nodes))
	return nil
}

func copyIndex(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// LoadGraph resolves a scenario by ID.
func (s *Store) LoadGraph(scenarioID string) (*ScenarioGraph, error) {
	g, ok := s.graphs[scenarioID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, scenarioID)
	}
	return g, nil
}

// GetNode resolves a node within a graph. See ScenarioGraph.Node.
func (s *Store) GetNode(g *ScenarioGraph, index int) (*Node, error) {
	return g.Node(index)
}

// Has reports whether a scenario is registered.
func (s *Store) Has(scenarioID string) bool {
	_, ok := s.graphs[scenarioID]
	return ok
}

// IDs returns all registered scenario IDs in sorted order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.graphs))
	for id := range s.graphs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
