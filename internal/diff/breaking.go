package diff

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxBreakingNote is in runes.
const maxBreakingNote = 120

var breakingMarkerRegex = regexp.MustCompile(`BREAKING[ -]CHANGE`)

// HasBreakingMarker reports whether text carries an explicit breaking change
// marker anywhere, including commit metadata around the diff.
func HasBreakingMarker(text string) bool {
	return breakingMarkerRegex.MatchString(text)
}

// BreakingNote returns the explanation written after the first breaking
// change marker on its line, or "" when the marker stands alone.
func BreakingNote(text string) string {
	loc := breakingMarkerRegex.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	rest = strings.TrimLeft(rest, ": \t")
	for _, closer := range []string{"*/", "-->", `"""`, `"`, "'"} {
		rest = strings.TrimSuffix(strings.TrimSpace(rest), closer)
	}
	rest = strings.TrimSpace(rest)
	if utf8.RuneCountInString(rest) > maxBreakingNote {
		r := []rune(rest)[:maxBreakingNote]
		cut := len(r)
		for i := len(r) - 1; i > 0; i-- {
			if r[i] == ' ' {
				cut = i
				break
			}
		}
		rest = string(r[:cut])
	}
	return rest
}
