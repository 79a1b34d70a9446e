package interpreter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not valid in the
	// interpreter's current state. The call has no effect.
	ErrInvalidState = errors.New("invalid interpreter state")
	// ErrInvalidChoice is returned when a choice index is outside the visible
	// choice list. The call has no effect.
	ErrInvalidChoice = errors.New("invalid choice")
)

// State is the interpreter's position in its lifecycle.
type State int

const (
	Idle State = iota
	Presenting
	AwaitingChoice
	Exhausted
)

var stateNames = map[State]string{
	Idle:           "idle",
	Presenting:     "presenting",
	AwaitingChoice: "awaiting_choice",
	Exhausted:      "exhausted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState converts a state name back into a State.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return Idle, fmt.Errorf("unknown interpreter state %q", name)
}
