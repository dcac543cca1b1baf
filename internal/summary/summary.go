// Package summary produces the one-line description of a change, either from
// per-type templates or from a language model with template fallback.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/relicta-tech/commitgen/internal/analysis"
	"github.com/relicta-tech/commitgen/internal/diff"
	"github.com/relicta-tech/commitgen/internal/domain/changes"
	rperrors "github.com/relicta-tech/commitgen/internal/errors"
	"github.com/relicta-tech/commitgen/internal/infrastructure/ai"
)

// MaxLength bounds a summary in characters.
const MaxLength = 100

// DefaultTimeout bounds a generation call.
const DefaultTimeout = 5 * time.Second

// Source says where a summary came from.
type Source string

const (
	SourceTemplate Source = "template"
	SourceAI       Source = "ai"
)

// Summary is the description text plus its provenance.
type Summary struct {
	Text   string
	Source Source

	// Fallback is set when generation was attempted and failed.
	Fallback bool

	// Generator names the backend that produced an ai summary.
	Generator string

	// Err describes the generation failure behind a fallback.
	Err error
}

// Summarizer turns a classified diff into summary text.
type Summarizer struct {
	generator ai.Generator
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithGenerator enables the generation path.
func WithGenerator(g ai.Generator) Option {
	return func(s *Summarizer) {
		s.generator = g
	}
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) Option {
	return func(s *Summarizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Summarizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Summarizer. Without WithGenerator only templates are used.
func New(opts ...Option) *Summarizer {
	s := &Summarizer{
		timeout: DefaultTimeout,
		logger:  slog.Default().With("component", "summarizer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UsesGenerator reports whether Summarize will try a language model.
func (s *Summarizer) UsesGenerator() bool {
	return ai.Available(s.generator)
}

// Summarize never fails. An empty change set yields empty text. When a
// generator is configured its reply is used if it survives sanitizing;
// otherwise the template text is returned with Fallback set.
func (s *Summarizer) Summarize(ctx context.Context, facts []diff.FileFact, cls analysis.Classification) Summary {
	if cls.Rule == analysis.RuleEmptyChangeSet || diff.IsEmpty(facts) {
		return Summary{Source: SourceTemplate}
	}

	fallback := Template(facts, cls)
	if !s.UsesGenerator() {
		return Summary{Text: fallback, Source: SourceTemplate}
	}

	text, err := s.generate(ctx, BuildPrompt(facts, cls))
	if err == nil {
		text = Sanitize(text)
		if text == "" {
			err = rperrors.AI("summary.Summarize", "reply was empty after sanitizing")
		}
	}
	if err != nil {
		s.logger.Warn("generation failed, using template",
			"generator", s.generator.Name(),
			"error", rperrors.RedactError(err),
		)
		return Summary{Text: fallback, Source: SourceTemplate, Fallback: true, Err: err}
	}

	return Summary{Text: text, Source: SourceAI, Generator: s.generator.Name()}
}

type reply struct {
	text string
	err  error
}

// generate runs the generator in its own goroutine so that a backend which
// ignores its context, or panics, cannot hold up or crash the run.
func (s *Summarizer) generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", rperrors.Wrap(err, rperrors.KindCanceled, "summary.generate", "canceled")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: rperrors.AI("summary.generate", fmt.Sprintf("generator panicked: %v", r))}
			}
		}()
		text, err := s.generator.Generate(ctx, prompt)
		done <- reply{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", rperrors.TimeoutWrap(ctx.Err(), "summary.generate", fmt.Sprintf("no reply within %s", s.timeout))
		}
		return "", rperrors.Wrap(ctx.Err(), rperrors.KindCanceled, "summary.generate", "canceled")
	}
}

var phrases = map[changes.CommitType]string{
	changes.CommitTypeFeat:     "add new functionality",
	changes.CommitTypeFix:      "resolve issues",
	changes.CommitTypeDocs:     "update documentation",
	changes.CommitTypeStyle:    "improve code formatting",
	changes.CommitTypeRefactor: "refactor code structure",
	changes.CommitTypeTest:     "add or update tests",
	changes.CommitTypeChore:    "maintain codebase",
	changes.CommitTypeBuild:    "update build configuration",
	changes.CommitTypeCI:       "update CI/CD pipeline",
	changes.CommitTypePerf:     "improve performance",
}

// Template returns the deterministic description for a classification.
func Template(facts []diff.FileFact, cls analysis.Classification) string {
	if cls.Rule == analysis.RuleEmptyChangeSet || diff.IsEmpty(facts) {
		return ""
	}
	t := cls.Type.OrChore()
	if cls.Rule == analysis.RuleDependencyManifests {
		return Clamp("update dependencies")
	}
	phrase := phrases[t]
	switch t {
	case changes.CommitTypeFeat, changes.CommitTypeFix, changes.CommitTypeRefactor, changes.CommitTypePerf:
		if where := fileContext(facts); where != "" {
			phrase += " " + where
		}
	}
	return Clamp(phrase)
}

// fileContext names the changed files: "in a.go", "in a.go and b.go" or
// "across 3 files".
func fileContext(facts []diff.FileFact) string {
	var names []string
	for _, f := range facts {
		if f.Changed() || f.Binary {
			names = append(names, f.Base())
		}
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return "in " + names[0]
	case 2:
		return "in " + names[0] + " and " + names[1]
	default:
		return fmt.Sprintf("across %d files", len(names))
	}
}

// Clamp trims s to one sentence of at most MaxLength characters, cut at a
// word boundary, without a trailing period.
func Clamp(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > MaxLength {
		runes := []rune(s)
		cut := string(runes[:MaxLength])
		if runes[MaxLength] != ' ' {
			if i := strings.LastIndexByte(cut, ' '); i > 0 {
				cut = cut[:i]
			}
		}
		s = cut
	}
	return strings.TrimRight(s, ". ")
}
