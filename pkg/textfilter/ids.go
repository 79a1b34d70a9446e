package textfilter

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// NormalizeID folds an author-supplied identifier into the canonical form
// used for characters, flags and scenarios: lower case, with runs of spaces,
// dashes and dots collapsed into a single underscore.
func NormalizeID(id string) string {
	folded := lower.String(strings.TrimSpace(id))

	var b strings.Builder
	b.Grow(len(folded))
	sep := false
	for _, r := range folded {
		if unicode.IsSpace(r) || r == '-' || r == '.' || r == '_' {
			sep = b.Len() > 0
			continue
		}
		if sep {
			b.WriteByte('_')
			sep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DisplayName turns an identifier into a title-cased name, e.g.
// "misaki_hoshino" becomes "Misaki Hoshino".
func DisplayName(id string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(NormalizeID(id), "_", " "))
}
