package heuristics

import "strings"

// Lexicon is a set of lowercase words matched on word boundaries.
type Lexicon struct {
	Name  string
	words []string
}

// NewLexicon creates a lexicon from words.
func NewLexicon(name string, words ...string) Lexicon {
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}
	return Lexicon{Name: name, words: lowered}
}

// Match returns the first word of l found in line, or "".
func (l Lexicon) Match(line string) string {
	lower := strings.ToLower(line)
	for _, w := range l.words {
		if ContainsWord(lower, w) {
			return w
		}
	}
	return ""
}

// CountLines returns how many lines contain a word of l and the first word
// that matched.
func (l Lexicon) CountLines(lines []string) (int, string) {
	hits := 0
	first := ""
	for _, line := range lines {
		if w := l.Match(line); w != "" {
			hits++
			if first == "" {
				first = w
			}
		}
	}
	return hits, first
}

// Built-in lexicons for content rules.
var (
	FixLexicon = NewLexicon("fix",
		"fix", "fixes", "fixed", "fixing", "bug", "bugfix", "hotfix",
		"resolve", "resolves", "resolved", "crash", "regression")

	PerfLexicon = NewLexicon("perf",
		"perf", "performance", "optimize", "optimise", "optimized", "faster",
		"speedup", "memoize", "memoization", "benchmark")

	RefactorLexicon = NewLexicon("refactor",
		"refactor", "refactored", "refactoring", "restructure", "reorganize",
		"simplify", "cleanup", "extract", "deprecated")

	FeatureLexicon = NewLexicon("feature",
		"feature", "implement", "implements", "introduce", "introduces",
		"support for", "new endpoint", "todo: add")
)

// ContainsWord reports whether word occurs in text with no letter or digit
// on either side. Both arguments are expected to be lowercase.
func ContainsWord(text, word string) bool {
	if word == "" {
		return false
	}
	start := 0
	for {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		before := idx == 0 || !isAlphanumeric(text[idx-1])
		after := end >= len(text) || !isAlphanumeric(text[end])
		if before && after {
			return true
		}
		start = idx + 1
	}
}

func isAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// OnlyWhitespaceChanged reports whether removed and added lines are equal
// once all whitespace is dropped, as with reformatting or reindentation.
func OnlyWhitespaceChanged(removed, added []string) bool {
	if len(removed) == 0 && len(added) == 0 {
		return false
	}
	return squash(removed) == squash(added)
}

func squash(lines []string) string {
	var sb strings.Builder
	for _, line := range lines {
		for _, r := range line {
			switch r {
			case ' ', '\t', '\r', '\n', '\v', '\f':
				continue
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
