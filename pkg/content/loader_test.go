package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/heartline/pkg/dialogue"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDecode_Formats(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		body string
	}{
		{
			name: "json",
			ext:  ".json",
			body: `{"default_scenario": "daily", "scenarios": [{"id": "daily", "nodes": [{"text": "Hi", "next": 0}]}]}`,
		},
		{
			name: "toml",
			ext:  ".toml",
			body: "default_scenario = \"daily\"\n[[scenarios]]\nid = \"daily\"\n  [[scenarios.nodes]]\n  text = \"Hi\"\n  next = 0\n",
		},
		{
			name: "yaml",
			ext:  ".yml",
			body: "default_scenario: daily\nscenarios:\n  - id: daily\n    nodes:\n      - text: Hi\n        next: 0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pack, err := Decode(tt.ext, []byte(tt.body), true)
			require.NoError(t, err)
			assert.Equal(t, "daily", pack.DefaultScenario)
			require.Len(t, pack.Scenarios, 1)
			require.Len(t, pack.Scenarios[0].Nodes, 1)
			require.NotNil(t, pack.Scenarios[0].Nodes[0].Next)
			assert.Equal(t, 0, *pack.Scenarios[0].Nodes[0].Next)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(".txt", []byte("hello"), false)
	assert.Error(t, err)

	_, err = Decode(".json", []byte(`{"scenarios": [{"id": "x", "colour": "red"}]}`), true)
	assert.Error(t, err, "strict mode rejects unknown fields")

	_, err = Decode(".json", []byte(`{"scenarios": [{"id": "x", "colour": "red"}]}`), false)
	assert.NoError(t, err)

	_, err = Decode(".toml", []byte("not = = toml"), false)
	assert.Error(t, err)
}

func TestLoader_LoadDirMergesAndSkips(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_characters.yaml", "characters:\n  - id: Misaki\n    name: Misaki Sakurai\n")
	writeFile(t, dir, "b_story.json", `{
		"opening_scenario": "intro",
		"scenarios": [
			{"id": "intro", "nodes": [{"text": "Hello", "choices": [{"text": "Wave", "affection": {"Misaki": 5}}]}]},
			{"id": "broken", "nodes": [{"text": "Dangling", "next": 7}]}
		]
	}`)
	writeFile(t, dir, "c_more.toml", "[[scenarios]]\nid = \"intro\"\n  [[scenarios.nodes]]\n  text = \"Duplicate\"\n")
	writeFile(t, dir, "d_bad.json", `{not json`)
	writeFile(t, dir, "notes.txt", "ignored")

	loader := NewLoader(nil)
	pack, err := loader.LoadDir(dir)
	require.NoError(t, err)

	require.Len(t, pack.Scenarios, 1, "malformed and duplicate graphs are skipped")
	assert.Equal(t, "Hello", pack.Scenarios[0].Nodes[0].Text, "first definition wins")
	assert.Equal(t, map[string]int{"misaki": 5}, pack.Scenarios[0].Nodes[0].Choices[0].Affection)
	assert.Equal(t, []string{"misaki"}, pack.CharacterIDs())
	assert.Equal(t, map[string]string{"misaki": "Misaki Sakurai"}, pack.CharacterNames())

	issues := loader.Issues()
	assert.Len(t, issues, 3)

	var malformed bool
	for _, issue := range issues {
		if dialogue.IsMalformed(issue.Err) {
			malformed = true
		}
	}
	assert.True(t, malformed)
}

func TestLoader_DefaultsOpeningScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "story.json", `{"scenarios": [{"id": "first", "nodes": [{"text": "a"}]}, {"id": "second", "nodes": [{"text": "b"}]}]}`)

	pack, err := NewLoader(nil).LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "first", pack.OpeningScenario)
}

func TestLoader_MissingDir(t *testing.T) {
	_, err := NewLoader(nil).LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoader_SampleContent(t *testing.T) {
	loader := NewLoader(nil).WithStrict(true)
	pack, err := loader.LoadDir("../../data")
	require.NoError(t, err)

	assert.Empty(t, loader.Issues())
	assert.Equal(t, "prologue", pack.OpeningScenario)
	assert.Len(t, pack.Characters, 3)
	assert.Len(t, pack.Chapters, 2)

	store := dialogue.NewStore(nil)
	require.NoError(t, pack.Store(store))
	assert.True(t, store.Has("misaki_confession"))

	cfg := pack.LedgerConfig(3)
	assert.Equal(t, 100, cfg.MaxScore)
	assert.Equal(t, 3, cfg.MaxDailyInteractions)
	assert.Equal(t, "normal", pack.ProgressionConfig().DefaultEnding)
}
