package state

import "fmt"

// Phase is a time slot within an in-game day.
type Phase string

const (
	Morning   Phase = "morning"
	Afternoon Phase = "afternoon"
	Evening   Phase = "evening"
)

// Phases lists the slots of a day in order.
var Phases = []Phase{Morning, Afternoon, Evening}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// Calendar is the in-game day and time slot.
type Calendar struct {
	Day   int   `json:"day"`
	Phase Phase `json:"phase"`
}

// NewCalendar starts on day 1 in the morning.
func NewCalendar() Calendar {
	return Calendar{Day: 1, Phase: Morning}
}

// Advance moves to the next phase, rolling over to the next morning after
// the evening. It reports whether a new day started.
func (c *Calendar) Advance() (newDay bool) {
	for i, p := range Phases {
		if p != c.Phase {
			continue
		}
		if i < len(Phases)-1 {
			c.Phase = Phases[i+1]
			return false
		}
		break
	}
	c.Phase = Morning
	c.Day++
	return true
}

func (c Calendar) String() string {
	return fmt.Sprintf("Day %d (%s)", c.Day, c.Phase)
}
