package textfilter

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultPlayerName is used when no player name is configured.
const DefaultPlayerName = "Player"

var placeholder = regexp.MustCompile(`\{(player|character:[^{}\s]+)\}`)

// Templater renders {player} and {character:<id>} placeholders in dialogue
// text. Unknown placeholders are left as written. A Templater is not safe
// for concurrent use.
type Templater struct {
	player string
	names  map[string]string
	title  cases.Caser
}

// NewTemplater creates a templater. names maps character IDs to display names;
// characters without an entry are shown as DisplayName(id).
func NewTemplater(player string, names map[string]string) *Templater {
	if strings.TrimSpace(player) == "" {
		player = DefaultPlayerName
	}
	t := &Templater{
		player: player,
		names:  make(map[string]string, len(names)),
		title:  cases.Title(language.English),
	}
	for id, name := range names {
		t.names[NormalizeID(id)] = name
	}
	return t
}

// Player returns the player name used for {player}.
func (t *Templater) Player() string {
	return t.player
}

// WithPlayer changes the player name.
// Returns the Templater for method chaining
func (t *Templater) WithPlayer(player string) *Templater {
	if strings.TrimSpace(player) != "" {
		t.player = player
	}
	return t
}

// Render expands every known placeholder in text.
func (t *Templater) Render(text string) string {
	if !strings.ContainsRune(text, '{') {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		key := match[1 : len(match)-1]
		if key == "player" {
			return t.player
		}
		return t.Name(strings.TrimPrefix(key, "character:"))
	})
}

// Name returns the display name for a character ID.
func (t *Templater) Name(characterID string) string {
	id := NormalizeID(characterID)
	if name, ok := t.names[id]; ok {
		return name
	}
	return t.title.String(strings.ReplaceAll(id, "_", " "))
}
