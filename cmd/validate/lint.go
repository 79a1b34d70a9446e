package main

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/jwebster45206/heartline/pkg/content"
	"github.com/jwebster45206/heartline/pkg/dialogue"
)

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

// Lint reports content that loads fine but is probably a mistake: scenarios
// nothing can start, nodes nothing can reach, and IDs that are not
// lowercase snake_case.
func Lint(p *content.Pack) []string {
	var warnings []string

	referenced := referencedScenarios(p)
	for _, g := range p.Scenarios {
		if !isValidID(g.ID) {
			warnings = append(warnings, fmt.Sprintf("scenario ID '%s' should be lowercase snake_case", g.ID))
		}
		if !referenced[g.ID] {
			warnings = append(warnings, fmt.Sprintf("scenario '%s' is never started", g.ID))
		}
		for _, idx := range UnreachableNodes(&g) {
			warnings = append(warnings, fmt.Sprintf("scenario '%s' node %d is unreachable", g.ID, idx))
		}
		for _, n := range g.Nodes {
			if n.SetFlag != "" && !isValidID(n.SetFlag) {
				warnings = append(warnings, fmt.Sprintf("flag '%s' in scenario '%s' should be lowercase snake_case", n.SetFlag, g.ID))
			}
		}
	}
	for _, c := range p.Characters {
		if !isValidID(c.ID) {
			warnings = append(warnings, fmt.Sprintf("character ID '%s' should be lowercase snake_case", c.ID))
		}
	}
	return warnings
}

// referencedScenarios returns every scenario the engine can start.
// {character} templates expand over all characters.
func referencedScenarios(p *content.Pack) map[string]bool {
	refs := make(map[string]bool)
	add := func(id string) {
		if id == "" {
			return
		}
		if !strings.Contains(id, "{character}") {
			refs[id] = true
			return
		}
		for _, c := range p.Characters {
			refs[strings.ReplaceAll(id, "{character}", c.ID)] = true
		}
	}

	add(p.OpeningScenario)
	add(p.DefaultScenario)
	for _, th := range p.Thresholds {
		add(th.Scenario)
	}
	for _, ch := range p.Chapters {
		for _, ev := range ch.Events {
			add(ev.Scenario)
		}
	}
	for _, rule := range p.ScenarioRules {
		add(rule.Scenario)
	}
	return refs
}

// UnreachableNodes returns the indices of nodes no path from node 0 visits.
func UnreachableNodes(g *dialogue.ScenarioGraph) []int {
	if len(g.Nodes) == 0 {
		return nil
	}
	seen := make([]bool, len(g.Nodes))
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if i < 0 || i >= len(g.Nodes) || seen[i] {
			continue
		}
		seen[i] = true
		stack = append(stack, successors(g, i)...)
	}

	var out []int
	for i, ok := range seen {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}

func successors(g *dialogue.ScenarioGraph, i int) []int {
	n := &g.Nodes[i]
	if n.HasChoices() {
		next := make([]int, 0, len(n.Choices))
		for _, c := range n.Choices {
			if c.Next != nil {
				next = append(next, *c.Next)
			} else {
				next = append(next, i+1)
			}
		}
		slices.Sort(next)
		return slices.Compact(next)
	}
	if n.End {
		return nil
	}
	if n.Next != nil {
		return []int{*n.Next}
	}
	return []int{i + 1}
}
