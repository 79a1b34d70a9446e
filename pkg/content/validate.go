package content

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/textfilter"
)

// Validate normalizes character IDs, drops malformed graphs and reports
// references to content that does not exist. The pack is always left usable.
func (l *Loader) Validate(p *Pack) {
	l.normalize(p)

	valid := p.Scenarios[:0]
	for _, g := range p.Scenarios {
		if g.ID == "" {
			l.report("scenarios", dialogue.ErrMissingID)
			continue
		}
		if problems := dialogue.Validate(&g); len(problems) > 0 {
			for _, problem := range problems {
				l.report(g.ID, problem)
			}
			continue
		}
		valid = append(valid, g)
	}
	p.Scenarios = valid

	scenarios := make(map[string]bool, len(p.Scenarios))
	for _, g := range p.Scenarios {
		scenarios[g.ID] = true
	}
	checkScenario := func(source, id string) {
		if id != "" && !hasCharacterTemplate(id) && !scenarios[id] {
			l.report(source, fmt.Errorf("%w: %s", dialogue.ErrNotFound, id))
		}
	}

	if p.OpeningScenario == "" && len(p.Scenarios) > 0 {
		p.OpeningScenario = p.Scenarios[0].ID
		l.logger.Warn("No opening scenario declared, using first scenario", "scenario", p.OpeningScenario)
	}
	checkScenario("opening_scenario", p.OpeningScenario)
	checkScenario("default_scenario", p.DefaultScenario)

	thresholds := p.Thresholds[:0]
	for _, th := range p.Thresholds {
		if th.ID == "" {
			l.report("thresholds", errors.New("threshold without id skipped"))
			continue
		}
		checkScenario("threshold "+th.ID, th.Scenario)
		thresholds = append(thresholds, th)
	}
	p.Thresholds = thresholds

	events := make(map[string]bool)
	for _, ch := range p.Chapters {
		if ch.Duration <= 0 {
			l.report(fmt.Sprintf("chapter %d", ch.Number), errors.New("chapter duration must be positive"))
		}
		for _, ev := range ch.Events {
			if ev.TriggerTime < 0 || ev.TriggerTime > 1 {
				l.report("event "+ev.ID, fmt.Errorf("trigger time %v outside [0, 1]", ev.TriggerTime))
			}
			checkScenario("event "+ev.ID, ev.Scenario)
			events[ev.ID] = true
		}
	}

	for _, e := range p.Endings {
		for _, id := range e.RequiredEvents {
			if !events[id] {
				l.report("ending "+e.ID, fmt.Errorf("required event %q is never scheduled", id))
			}
		}
	}
	if p.DefaultEnding == "" && len(p.Endings) > 0 {
		l.report("default_ending", errors.New("no default ending declared"))
	}

	for i, rule := range p.ScenarioRules {
		checkScenario(fmt.Sprintf("scenario_rules[%d]", i), rule.Scenario)
	}
}

// normalize folds every character reference to its canonical ID.
func (l *Loader) normalize(p *Pack) {
	for i := range p.Characters {
		p.Characters[i].ID = textfilter.NormalizeID(p.Characters[i].ID)
	}
	for i := range p.Thresholds {
		p.Thresholds[i].Character = textfilter.NormalizeID(p.Thresholds[i].Character)
	}
	for i := range p.Chapters {
		for j := range p.Chapters[i].Events {
			ev := &p.Chapters[i].Events[j]
			ev.Character = textfilter.NormalizeID(ev.Character)
		}
	}
	for i := range p.Endings {
		p.Endings[i].Character = textfilter.NormalizeID(p.Endings[i].Character)
	}
	for i := range p.Scenarios {
		nodes := p.Scenarios[i].Nodes
		for j := range nodes {
			nodes[j].Character = textfilter.NormalizeID(nodes[j].Character)
			for k := range nodes[j].Choices {
				c := &nodes[j].Choices[k]
				if len(c.Affection) == 0 {
					continue
				}
				folded := make(map[string]int, len(c.Affection))
				for _, id := range slices.Sorted(maps.Keys(c.Affection)) {
					folded[textfilter.NormalizeID(id)] += c.Affection[id]
				}
				c.Affection = folded
			}
		}
	}
}

func hasCharacterTemplate(id string) bool {
	return strings.Contains(id, "{")
}
