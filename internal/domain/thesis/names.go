package thesis

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSectionNameLength is the longest accepted section name, in runes
const MaxSectionNameLength = 64

// NormalizeSectionName lowercases, trims, strips accents and maps runs of
// spaces, hyphens and underscores to a single "_".
// "Marco Teórico" and "marco-teorico" both become "marco_teorico".
func NormalizeSectionName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err == nil {
		name = stripped
	}
	name = strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range name {
		switch {
		case r == ' ' || r == '-' || r == '_' || r == '\t':
			pendingSep = b.Len() > 0
		default:
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidSectionName reports whether an already normalised name is usable
// as a section key: 1..64 runes of [a-z0-9_].
func ValidSectionName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxSectionNameLength {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

var titleCaser = cases.Title(language.Spanish)

// TitleFromName derives a display title for a section the catalogue
// does not know, e.g. "anexos_tecnicos" -> "Anexos Tecnicos".
func TitleFromName(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}
