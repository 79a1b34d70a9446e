package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jwebster45206/heartline/pkg/content"
	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/progression"
)

func intPtr(i int) *int { return &i }

func TestUnreachableNodes(t *testing.T) {
	tests := []struct {
		name  string
		nodes []dialogue.Node
		want  []int
	}{
		{
			name:  "sequential",
			nodes: []dialogue.Node{{Text: "a"}, {Text: "b"}, {Text: "c"}},
			want:  nil,
		},
		{
			name:  "after end",
			nodes: []dialogue.Node{{Text: "a", End: true}, {Text: "b"}},
			want:  []int{1},
		},
		{
			name:  "jump skips node",
			nodes: []dialogue.Node{{Text: "a", Next: intPtr(2)}, {Text: "skipped"}, {Text: "c"}},
			want:  []int{1},
		},
		{
			name: "choices branch",
			nodes: []dialogue.Node{
				{Text: "a", Choices: []dialogue.Choice{{Text: "x", Next: intPtr(2)}, {Text: "y", Next: intPtr(3)}}},
				{Text: "never"},
				{Text: "x path", End: true},
				{Text: "y path"},
			},
			want: []int{1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnreachableNodes(&dialogue.ScenarioGraph{ID: "test", Nodes: tt.nodes})
			if len(got) != len(tt.want) {
				t.Fatalf("UnreachableNodes() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("UnreachableNodes() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestLint(t *testing.T) {
	pack := &content.Pack{
		Characters:      []content.Character{{ID: "misaki"}, {ID: "Yukino-San"}},
		OpeningScenario: "intro",
		Chapters: []progression.Chapter{{Number: 1, Duration: 1, Events: []progression.StoryEvent{
			{ID: "ev", Scenario: "{character}_date"},
		}}},
		Scenarios: []dialogue.ScenarioGraph{
			{ID: "intro", Nodes: []dialogue.Node{{Text: "hi", SetFlag: "Met-Everyone"}}},
			{ID: "misaki_date", Nodes: []dialogue.Node{{Text: "date"}}},
			{ID: "orphan", Nodes: []dialogue.Node{{Text: "lonely"}}},
		},
	}

	warnings := strings.Join(Lint(pack), "\n")
	for _, want := range []string{
		"scenario 'orphan' is never started",
		"flag 'Met-Everyone' in scenario 'intro' should be lowercase snake_case",
		"character ID 'Yukino-San' should be lowercase snake_case",
	} {
		if !strings.Contains(warnings, want) {
			t.Errorf("Expected warning %q in:\n%s", want, warnings)
		}
	}
	if strings.Contains(warnings, "'misaki_date' is never started") {
		t.Error("templated event scenario should count as started")
	}
}

func TestRootCommand_SampleContent(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--dir", "../../data"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "Content pack is valid!") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if strings.Contains(out.String(), "warning") && !strings.Contains(out.String(), "0 warnings") {
		t.Errorf("sample content should lint clean:\n%s", out.String())
	}
}

func TestGraphCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"graph", "prologue", "--dir", "../../data"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"prologue (Prologue), 10 nodes",
		`0. "Introduce yourself with energy" -> 4 misaki+5`,
		"(sets met_misaki)",
		"(end)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in graph output:\n%s", want, got)
		}
	}

	rootCmd.SetArgs([]string{"graph", "missing", "--dir", "../../data"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("Expected error for unknown scenario")
	}
}
