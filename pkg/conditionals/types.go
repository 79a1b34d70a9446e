package conditionals

// When defines the conditions that must all hold for a rule to match.
type When struct {
	Day      *int     `json:"day,omitempty"`       // Exact in-game day
	MinDay   *int     `json:"min_day,omitempty"`   // Day >= this value
	Phase    string   `json:"phase,omitempty"`     // morning, afternoon or evening
	Chapter  *int     `json:"chapter,omitempty"`   // Exact chapter number
	Flags    []string `json:"flags,omitempty"`     // All flags must be set
	NotFlags []string `json:"not_flags,omitempty"` // No listed flag may be set
	Events   []string `json:"events,omitempty"`    // All story events must have occurred

	MinScore        map[string]int `json:"min_score,omitempty"`          // Character ID to minimum score
	TopScoreAtLeast *int           `json:"top_score_at_least,omitempty"` // Highest affection of any character
}

// GameStateView provides the minimal interface needed to evaluate conditionals.
// This avoids import cycles with the engine packages.
type GameStateView interface {
	GetDay() int
	GetPhase() string
	GetChapter() int
	HasFlag(name string) bool
	HasOccurred(eventID string) bool
	// GetScore returns a character's score. ok is false for unknown characters.
	GetScore(characterID string) (score int, ok bool)
	// GetTopScore returns the highest scoring character.
	GetTopScore() (characterID string, score int, ok bool)
}

// IsEmpty reports whether no condition is specified.
func (w When) IsEmpty() bool {
	return w.Day == nil &&
		w.MinDay == nil &&
		w.Phase == "" &&
		w.Chapter == nil &&
		len(w.Flags) == 0 &&
		len(w.NotFlags) == 0 &&
		len(w.Events) == 0 &&
		len(w.MinScore) == 0 &&
		w.TopScoreAtLeast == nil
}

// EvaluateWhen checks if all conditions in a When clause are met
func EvaluateWhen(when When, gsView GameStateView) bool {
	// If no conditions specified, return false (conditional should not trigger)
	if when.IsEmpty() {
		return false
	}

	if when.Day != nil && gsView.GetDay() != *when.Day {
		return false
	}
	if when.MinDay != nil && gsView.GetDay() < *when.MinDay {
		return false
	}
	if when.Phase != "" && gsView.GetPhase() != when.Phase {
		return false
	}
	if when.Chapter != nil && gsView.GetChapter() != *when.Chapter {
		return false
	}

	for _, flag := range when.Flags {
		if !gsView.HasFlag(flag) {
			return false
		}
	}
	for _, flag := range when.NotFlags {
		if gsView.HasFlag(flag) {
			return false
		}
	}
	for _, eventID := range when.Events {
		if !gsView.HasOccurred(eventID) {
			return false
		}
	}

	// Unknown characters never satisfy a score condition
	for characterID, minimum := range when.MinScore {
		score, ok := gsView.GetScore(characterID)
		if !ok || score < minimum {
			return false
		}
	}

	if when.TopScoreAtLeast != nil {
		_, score, ok := gsView.GetTopScore()
		if !ok || score < *when.TopScoreAtLeast {
			return false
		}
	}

	// All conditions passed
	return true
}
