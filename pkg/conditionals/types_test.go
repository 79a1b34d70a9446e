package conditionals

import "testing"

type mockView struct {
	day      int
	phase    string
	chapter  int
	flags    map[string]bool
	occurred map[string]bool
	scores   map[string]int
}

func (m *mockView) GetDay() int                { return m.day }
func (m *mockView) GetPhase() string           { return m.phase }
func (m *mockView) GetChapter() int            { return m.chapter }
func (m *mockView) HasFlag(name string) bool   { return m.flags[name] }
func (m *mockView) HasOccurred(id string) bool { return m.occurred[id] }
func (m *mockView) GetScore(id string) (int, bool) {
	s, ok := m.scores[id]
	return s, ok
}

func (m *mockView) GetTopScore() (string, int, bool) {
	var (
		top   string
		score int
		ok    bool
	)
	for id, s := range m.scores {
		if !ok || s > score || (s == score && id < top) {
			top, score, ok = id, s, true
		}
	}
	return top, score, ok
}

func intPtr(i int) *int { return &i }

func TestEvaluateWhen(t *testing.T) {
	view := &mockView{
		day:      3,
		phase:    "evening",
		chapter:  2,
		flags:    map[string]bool{"met_misaki": true},
		occurred: map[string]bool{"festival": true},
		scores:   map[string]int{"misaki": 35, "yukino": 10},
	}

	tests := []struct {
		name string
		when When
		want bool
	}{
		{name: "empty never matches", when: When{}, want: false},
		{name: "exact day", when: When{Day: intPtr(3)}, want: true},
		{name: "wrong day", when: When{Day: intPtr(4)}, want: false},
		{name: "min day reached", when: When{MinDay: intPtr(2)}, want: true},
		{name: "min day not reached", when: When{MinDay: intPtr(5)}, want: false},
		{name: "phase", when: When{Phase: "evening"}, want: true},
		{name: "wrong phase", when: When{Phase: "morning"}, want: false},
		{name: "chapter", when: When{Chapter: intPtr(2)}, want: true},
		{name: "flag set", when: When{Flags: []string{"met_misaki"}}, want: true},
		{name: "flag missing", when: When{Flags: []string{"met_misaki", "confessed"}}, want: false},
		{name: "not flag", when: When{NotFlags: []string{"confessed"}}, want: true},
		{name: "not flag violated", when: When{NotFlags: []string{"met_misaki"}}, want: false},
		{name: "event occurred", when: When{Events: []string{"festival"}}, want: true},
		{name: "event pending", when: When{Events: []string{"festival", "beach"}}, want: false},
		{name: "min score met", when: When{MinScore: map[string]int{"misaki": 30}}, want: true},
		{name: "min score missed", when: When{MinScore: map[string]int{"yukino": 30}}, want: false},
		{name: "unknown character", when: When{MinScore: map[string]int{"aoi": 0}}, want: false},
		{name: "top score", when: When{TopScoreAtLeast: intPtr(30)}, want: true},
		{name: "top score too low", when: When{TopScoreAtLeast: intPtr(40)}, want: false},
		{
			name: "combined",
			when: When{MinDay: intPtr(3), Phase: "evening", Flags: []string{"met_misaki"}, MinScore: map[string]int{"misaki": 35}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateWhen(tt.when, view); got != tt.want {
				t.Errorf("EvaluateWhen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateWhen_NoCharacters(t *testing.T) {
	view := &mockView{day: 1, phase: "morning"}
	if EvaluateWhen(When{TopScoreAtLeast: intPtr(0)}, view) {
		t.Error("expected top score condition to fail with no characters")
	}
}
