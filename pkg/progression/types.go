package progression

import (
	"strings"

	"github.com/jwebster45206/heartline/pkg/conditionals"
)

// Chapter is one act of the story. Duration is in hours of playtime.
type Chapter struct {
	Number   int          `json:"number"`
	Title    string       `json:"title"`
	Duration float64      `json:"duration"` // Estimated hours
	Events   []StoryEvent `json:"events,omitempty"`
}

// StoryEvent is a beat scheduled within a chapter.
type StoryEvent struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	TriggerTime float64 `json:"trigger_time"`        // Fraction of the chapter duration, 0 to 1
	Type        string  `json:"type,omitempty"`      // Free-form tag, e.g. "story" or "romance"
	Character   string  `json:"character,omitempty"` // Required character for the gate
	MinScore    int     `json:"min_score,omitempty"` // Required score; with no character, the highest score
	Scenario    string  `json:"scenario,omitempty"`  // Scenario started when fired, {character} allowed
}

// EndingType classifies endings for presentation.
type EndingType string

const (
	EndingNormal EndingType = "normal"
	EndingGood   EndingType = "good"
	EndingTrue   EndingType = "true"
	EndingBad    EndingType = "bad"
	EndingHarem  EndingType = "harem"
)

// EndingCondition decides whether an ending is reached. Lower priorities are
// evaluated first.
type EndingCondition struct {
	ID             string     `json:"id"`
	Name           string     `json:"name,omitempty"`
	Type           EndingType `json:"type,omitempty"`
	Character      string     `json:"character,omitempty"` // Every registered character must qualify when empty
	MinScore       int        `json:"min_score,omitempty"`
	RequiredEvents []string   `json:"required_events,omitempty"`
	Priority       int        `json:"priority"`
}

// ScenarioRule picks the next scenario once a graph is exhausted. A rule
// without conditions always matches.
type ScenarioRule struct {
	When     *conditionals.When `json:"when,omitempty"`
	Scenario string             `json:"scenario"` // {character} is the highest scoring character
}

// EventFired reports a story event that fired during a tick.
type EventFired struct {
	EventID   string  `json:"event_id"`
	Name      string  `json:"name,omitempty"`
	Type      string  `json:"type,omitempty"`
	Chapter   int     `json:"chapter"`
	Character string  `json:"character,omitempty"`
	Scenario  string  `json:"scenario,omitempty"`
	Started   bool    `json:"started"` // Scenario started immediately rather than queued
	Playtime  float64 `json:"playtime"`
}

// TickResult is everything that happened during one Tick.
type TickResult struct {
	Fired            []EventFired `json:"fired,omitempty"`
	ChapterCompleted []int        `json:"chapter_completed,omitempty"`
	Ending           string       `json:"ending,omitempty"` // Set when the ending was decided by this tick
}

// Config is the progression content of a game.
type Config struct {
	Chapters        []Chapter
	Endings         []EndingCondition
	DefaultEnding   string
	Rules           []ScenarioRule
	DefaultScenario string
}

func expandCharacter(scenario, characterID string) string {
	return strings.ReplaceAll(scenario, "{character}", characterID)
}

func hasCharacterTemplate(scenario string) bool {
	return strings.Contains(scenario, "{character}")
}
