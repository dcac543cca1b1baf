package analysis

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/relicta-tech/commitgen/internal/analysis/heuristics"
	"github.com/relicta-tech/commitgen/internal/diff"
	"github.com/relicta-tech/commitgen/internal/domain/changes"
)

// contradictionPenalty scales confidence when a later rule also matched.
const contradictionPenalty = 0.8

// Classifier applies an ordered rule list to a parsed diff. The first rule
// that matches decides the type.
type Classifier struct {
	rules  []Rule
	logger *slog.Logger
}

// ClassifierOption configures the classifier.
type ClassifierOption func(*Classifier)

// WithRules replaces the built-in rules.
func WithRules(rules []Rule) ClassifierOption {
	return func(c *Classifier) {
		c.rules = rules
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// NewClassifier creates a classifier using DefaultRules unless overridden.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		rules:  DefaultRules(),
		logger: slog.Default().With("component", "classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rules = slices.Clone(c.rules)
	slices.SortStableFunc(c.rules, func(a, b Rule) int {
		return a.Priority - b.Priority
	})
	return c
}

// Rules returns the rules in evaluation order.
func (c *Classifier) Rules() []Rule {
	return slices.Clone(c.rules)
}

// Classify never fails: when no rule matches the result is chore with zero
// confidence.
func (c *Classifier) Classify(in Input) Classification {
	ri := newRuleInput(in.Facts)

	result := Classification{
		Type:       changes.CommitTypeChore,
		Confidence: 0,
		Reasoning:  "no rule matched",
	}

	var winner *Rule
	var winning RuleMatch
	for i := range c.rules {
		rule := &c.rules[i]
		m := rule.Match(ri)
		if !m.Matched {
			continue
		}
		if winner == nil {
			winner, winning = rule, m
			continue
		}
		if winner.Name != RuleEmptyChangeSet {
			result.Contradicted = append(result.Contradicted, rule.Name)
		}
	}

	scope := heuristics.InferScope(ri.Paths)
	if winner != nil {
		result.Type = winner.Type.OrChore()
		result.Rule = winner.Name
		result.Reasoning = winning.Evidence
		result.Confidence = confidence(winner.Weight, winning, len(result.Contradicted) > 0)
		if winning.Scope != "" {
			scope = winning.Scope
		}
	}
	if scope == string(result.Type) {
		scope = ""
	}
	result.Scope = scope

	result.Breaking, result.BreakingReason = detectBreaking(in)

	c.logger.Debug("classified diff",
		"type", result.Type,
		"scope", result.Scope,
		"rule", result.Rule,
		"confidence", result.Confidence,
		"breaking", result.Breaking,
		"contradicted", result.Contradicted)

	return result
}

func confidence(weight float64, m RuleMatch, contradicted bool) float64 {
	agreement := 1.0
	if m.Total > 0 {
		agreement = float64(m.Agreeing) / float64(m.Total)
	}
	conf := weight * (0.5 + 0.5*agreement)
	if contradicted {
		conf *= contradictionPenalty
	}
	return clamp(conf, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// detectBreaking looks for an explicit marker first and removed public
// declarations second.
func detectBreaking(in Input) (bool, string) {
	text := in.Text
	if text == "" {
		var sb strings.Builder
		for _, f := range in.Facts {
			for _, line := range f.Added {
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
		text = sb.String()
	}
	if diff.HasBreakingMarker(text) {
		if note := diff.BreakingNote(text); note != "" {
			return true, note
		}
		return true, "introduces a breaking change"
	}
	if removed := diff.RemovedExports(in.Facts); len(removed) > 0 {
		return true, "removes public API: " + strings.Join(removed, ", ")
	}
	return false, ""
}
