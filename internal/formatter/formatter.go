// Package formatter assembles and validates conventional commit messages.
package formatter

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/relicta-tech/commitgen/internal/analysis"
	"github.com/relicta-tech/commitgen/internal/analysis/heuristics"
	"github.com/relicta-tech/commitgen/internal/diff"
	"github.com/relicta-tech/commitgen/internal/domain/changes"
)

const (
	// MinHeaderLength leaves room for the longest prefix ("refactor(x)!: ")
	// plus a short description.
	MinHeaderLength = 20

	// FallbackDescription is used when there is nothing to describe.
	FallbackDescription = "update code"

	maxBodyFiles = 20
)

// Options controls formatting.
type Options struct {
	// MaxHeaderLength bounds the rendered header. Values below
	// MinHeaderLength are raised to it; zero means the default of 72.
	MaxHeaderLength int

	// IncludeBody adds a per-file change list to the body.
	IncludeBody bool
}

// Formatter builds CommitMessage values.
type Formatter struct {
	maxHeader   int
	includeBody bool
}

// New creates a formatter.
func New(opts Options) *Formatter {
	maxHeader := opts.MaxHeaderLength
	if maxHeader == 0 {
		maxHeader = changes.DefaultMaxHeaderLength
	}
	if maxHeader < MinHeaderLength {
		maxHeader = MinHeaderLength
	}
	return &Formatter{
		maxHeader:   maxHeader,
		includeBody: opts.IncludeBody,
	}
}

// MaxHeaderLength returns the effective header limit.
func (f *Formatter) MaxHeaderLength() int {
	return f.maxHeader
}

// Format assembles a message from a classification and a summary. It never
// fails: an invalid type becomes chore, an empty summary becomes the
// fallback description, and an over-long header is truncated at a word
// boundary.
func (f *Formatter) Format(cls analysis.Classification, summary string, facts []diff.FileFact) changes.CommitMessage {
	commitType := cls.Type.OrChore()

	scope := heuristics.NormalizeScope(cls.Scope)
	if scope == string(commitType) {
		scope = ""
	}

	description := f.NormalizeDescription(summary)
	if description == "" {
		description = FallbackDescription
	}

	var opts []changes.CommitMessageOption
	if cls.Breaking {
		reason := cls.BreakingReason
		if reason == "" {
			reason = description
		}
		opts = append(opts, changes.WithBreaking(reason))
	}

	prefix := changes.HeaderPrefix(commitType, scope, cls.Breaking)
	if utf8.RuneCountInString(prefix)+minDescription > f.maxHeader {
		scope = ""
		prefix = changes.HeaderPrefix(commitType, "", cls.Breaking)
	}
	if scope != "" {
		opts = append(opts, changes.WithScope(scope))
	}

	budget := f.maxHeader - utf8.RuneCountInString(prefix)
	if short, cut := truncateWords(description, budget); cut {
		description = short
		opts = append(opts, changes.WithTruncated())
	}

	if f.includeBody {
		if body := fileList(facts); body != "" {
			opts = append(opts, changes.WithBody(body))
		}
	}

	return changes.NewCommitMessage(commitType, description, opts...)
}

// minDescription is the shortest description worth keeping a scope for.
const minDescription = 8

// Render returns the full message text.
func Render(msg changes.CommitMessage) string {
	return msg.Render()
}

// NormalizeDescription collapses whitespace, strips trailing punctuation,
// rewrites a leading past-tense or third-person verb into the imperative and
// lowercases the first word unless it is an acronym.
func (f *Formatter) NormalizeDescription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".!;:, ")
	s = strings.Trim(s, "\"'`")
	if s == "" {
		return ""
	}

	first, rest, _ := strings.Cut(s, " ")
	if verb, ok := imperative[strings.ToLower(first)]; ok {
		first = verb
	} else if !isAcronym(first) {
		_, size := utf8.DecodeRuneInString(first)
		// Casers are stateful, so one is made per call.
		first = cases.Lower(language.English).String(first[:size]) + first[size:]
	}
	if rest == "" {
		return first
	}
	return first + " " + rest
}

var imperative = map[string]string{
	"added": "add", "adds": "add", "adding": "add",
	"fixed": "fix", "fixes": "fix", "fixing": "fix",
	"updated": "update", "updates": "update", "updating": "update",
	"removed": "remove", "removes": "remove", "removing": "remove",
	"deleted": "delete", "deletes": "delete",
	"changed": "change", "changes": "change",
	"refactored": "refactor", "refactors": "refactor",
	"improved": "improve", "improves": "improve",
	"implemented": "implement", "implements": "implement",
	"renamed": "rename", "renames": "rename",
	"moved": "move", "moves": "move",
	"created": "create", "creates": "create",
	"introduced": "introduce", "introduces": "introduce",
	"resolved": "resolve", "resolves": "resolve",
	"optimized": "optimize", "optimizes": "optimize",
	"bumped": "bump", "bumps": "bump",
	"upgraded": "upgrade", "upgrades": "upgrade",
	"documented": "document", "documents": "document",
}

func isAcronym(word string) bool {
	letters := 0
	for _, r := range word {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

// truncateWords shortens s to at most limit runes, cutting at the last space
// that fits. A single word longer than limit is cut hard. No ellipsis is
// added.
func truncateWords(s string, limit int) (string, bool) {
	if limit <= 0 {
		return "", s != ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	cut := runes[:limit]
	if runes[limit] != ' ' {
		if idx := lastSpace(cut); idx > 0 {
			cut = cut[:idx]
		}
	}
	out := strings.TrimRight(string(cut), " ,;:-")
	if out == "" {
		out = string(runes[:limit])
	}
	return out, true
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}

func fileList(facts []diff.FileFact) string {
	var sb strings.Builder
	for i, fact := range facts {
		if i == maxBodyFiles {
			fmt.Fprintf(&sb, "- and %d more files\n", len(facts)-maxBodyFiles)
			break
		}
		switch {
		case fact.Binary:
			fmt.Fprintf(&sb, "- %s (binary)\n", fact.Path)
		case fact.Status == diff.StatusRenamed && fact.OldPath != "":
			fmt.Fprintf(&sb, "- %s -> %s (+%d/-%d)\n", fact.OldPath, fact.Path, fact.AddedLines, fact.RemovedLines)
		default:
			fmt.Fprintf(&sb, "- %s (+%d/-%d)\n", fact.Path, fact.AddedLines, fact.RemovedLines)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
