package relationship

import (
	"fmt"
	"strings"
)

// Status is a named relationship stage derived from a score.
type Status int

const (
	Stranger Status = iota
	Acquaintance
	Friend
	CloseFriend
	LoveInterest
	Girlfriend
	Lover
	Soulmate
)

var statusNames = [...]string{
	Stranger:     "stranger",
	Acquaintance: "acquaintance",
	Friend:       "friend",
	CloseFriend:  "close_friend",
	LoveInterest: "love_interest",
	Girlfriend:   "girlfriend",
	Lover:        "lover",
	Soulmate:     "soulmate",
}

// Tier is the minimum score at which a status applies.
type Tier struct {
	Status Status
	Min    int
}

// Tiers is the fixed ascending status ladder on the 0-100 scale.
var Tiers = []Tier{
	{Stranger, 0},
	{Acquaintance, 5},
	{Friend, 15},
	{CloseFriend, 30},
	{LoveInterest, 45},
	{Girlfriend, 60},
	{Lover, 75},
	{Soulmate, 90},
}

// StatusFor returns the largest tier whose minimum is at or below score.
func StatusFor(score int) Status {
	status := Stranger
	for _, t := range Tiers {
		if score < t.Min {
			break
		}
		status = t.Status
	}
	return status
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range statusNames {
		if n == name {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown relationship status %q", string(text))
}
