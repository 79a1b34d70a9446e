package content

import (
	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/progression"
	"github.com/jwebster45206/heartline/pkg/relationship"
)

// Character is a romanceable or supporting character.
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Portrait    string `json:"portrait,omitempty"`
}

// Pack is a complete, validated set of game content. One pack is usually
// assembled from several files.
type Pack struct {
	Scenarios       []dialogue.ScenarioGraph      `json:"scenarios,omitempty"`
	Characters      []Character                   `json:"characters,omitempty"`
	Thresholds      []relationship.Threshold      `json:"thresholds,omitempty"`
	Chapters        []progression.Chapter         `json:"chapters,omitempty"`
	Endings         []progression.EndingCondition `json:"endings,omitempty"`
	DefaultEnding   string                        `json:"default_ending,omitempty"`
	ScenarioRules   []progression.ScenarioRule    `json:"scenario_rules,omitempty"`
	DefaultScenario string                        `json:"default_scenario,omitempty"`
	OpeningScenario string                        `json:"opening_scenario,omitempty"`
	MaxScore        int                           `json:"max_score,omitempty"`
	LevelStep       int                           `json:"level_step,omitempty"`
}

// CharacterNames maps character IDs to display names.
func (p *Pack) CharacterNames() map[string]string {
	names := make(map[string]string, len(p.Characters))
	for _, c := range p.Characters {
		if c.Name != "" {
			names[c.ID] = c.Name
		}
	}
	return names
}

// CharacterIDs returns the declared character IDs in declaration order.
func (p *Pack) CharacterIDs() []string {
	ids := make([]string, 0, len(p.Characters))
	for _, c := range p.Characters {
		ids = append(ids, c.ID)
	}
	return ids
}

// LedgerConfig builds the relationship rules for this pack.
func (p *Pack) LedgerConfig(maxDailyInteractions int) relationship.Config {
	return relationship.Config{
		MaxScore:             p.MaxScore,
		LevelStep:            p.LevelStep,
		Thresholds:           p.Thresholds,
		MaxDailyInteractions: maxDailyInteractions,
	}
}

// ProgressionConfig builds the scheduler content for this pack.
func (p *Pack) ProgressionConfig() progression.Config {
	return progression.Config{
		Chapters:        p.Chapters,
		Endings:         p.Endings,
		DefaultEnding:   p.DefaultEnding,
		Rules:           p.ScenarioRules,
		DefaultScenario: p.DefaultScenario,
	}
}

// Store registers every scenario in a fresh graph store.
func (p *Pack) Store(s *dialogue.Store) error {
	for _, g := range p.Scenarios {
		if err := s.Register(g); err != nil {
			return err
		}
	}
	return nil
}
