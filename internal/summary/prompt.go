package summary

import (
	"fmt"
	"strings"

	"github.com/relicta-tech/commitgen/internal/analysis"
	"github.com/relicta-tech/commitgen/internal/diff"
	"github.com/relicta-tech/commitgen/internal/domain/changes"
)

const (
	maxPromptFiles = 20
	maxExcerpt     = 2000
)

// BuildPrompt describes the change for a language model: type, scope, up to
// 20 files and an excerpt of changed lines.
func BuildPrompt(facts []diff.FileFact, cls analysis.Classification) string {
	var b strings.Builder
	b.Grow(maxExcerpt + 1024)

	fmt.Fprintf(&b, "Commit type: %s\n", cls.Type.OrChore())
	if cls.Scope != "" {
		fmt.Fprintf(&b, "Scope: %s\n", cls.Scope)
	}
	added, removed := diff.Totals(facts)
	fmt.Fprintf(&b, "Files changed: %d (+%d/-%d)\n", len(facts), added, removed)

	for i, f := range facts {
		if i == maxPromptFiles {
			fmt.Fprintf(&b, "- ... and %d more\n", len(facts)-maxPromptFiles)
			break
		}
		fmt.Fprintf(&b, "- %s %s (+%d/-%d)\n", f.Status, f.Path, f.AddedLines, f.RemovedLines)
	}

	if excerpt := excerptOf(facts); excerpt != "" {
		b.WriteString("\nExcerpt:\n")
		b.WriteString(excerpt)
		b.WriteByte('\n')
	}
	b.WriteString("\nWrite the commit description.")
	return b.String()
}

// excerptOf collects changed lines in diff order until maxExcerpt bytes.
func excerptOf(facts []diff.FileFact) string {
	var b strings.Builder
	write := func(line string) bool {
		if b.Len()+len(line)+1 > maxExcerpt {
			return false
		}
		b.WriteString(line)
		b.WriteByte('\n')
		return true
	}
	for _, f := range facts {
		if len(f.Added) == 0 && len(f.Removed) == 0 {
			continue
		}
		if !write("## " + f.Path) {
			break
		}
		for _, l := range f.Removed {
			if !write("-" + l) {
				return strings.TrimRight(b.String(), "\n")
			}
		}
		for _, l := range f.Added {
			if !write("+" + l) {
				return strings.TrimRight(b.String(), "\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Sanitize reduces a model reply to a bare description: the first non-empty
// line, without quotes, backticks, list markers or a conventional prefix.
func Sanitize(reply string) string {
	line := ""
	for l := range strings.Lines(reply) {
		if l = strings.TrimSpace(l); l != "" && !strings.HasPrefix(l, "```") {
			line = l
			break
		}
	}
	line = strings.TrimLeft(line, "-*> ")
	line = strings.Trim(line, "\"'`“”‘’ ")

	if typ, _, _, desc, ok := changes.SplitHeader(line); ok {
		if _, known := changes.ParseCommitType(typ); known {
			line = desc
		}
	}
	line = strings.Trim(line, "\"'`“”‘’ ")
	return Clamp(line)
}
