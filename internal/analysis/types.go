// Package analysis classifies a parsed diff into a conventional commit type
// and scope using an ordered list of heuristic rules.
package analysis

import (
	"github.com/relicta-tech/commitgen/internal/diff"
	"github.com/relicta-tech/commitgen/internal/domain/changes"
)

// Classification is the result of classifying one diff. It is created once
// per run and never modified.
type Classification struct {
	// Type is the inferred commit type.
	Type changes.CommitType

	// Scope is the inferred scope, possibly empty.
	Scope string

	// Confidence is advisory, from 0.0 to 1.0.
	Confidence float64

	// Rule names the rule that decided the type.
	Rule string

	// Reasoning provides a human-readable explanation.
	Reasoning string

	// Breaking indicates a breaking change.
	Breaking bool

	// BreakingReason explains why this is a breaking change.
	BreakingReason string

	// Contradicted lists lower priority rules that also matched.
	Contradicted []string
}

// Input is what the classifier looks at.
type Input struct {
	// Facts are the parsed files.
	Facts []diff.FileFact

	// Text is the raw diff, searched for explicit breaking change markers.
	Text string
}

// RuleMatch is the outcome of evaluating one rule.
type RuleMatch struct {
	Matched bool

	// Agreeing and Total count the files that support the match out of the
	// files the rule looked at.
	Agreeing int
	Total    int

	// Evidence is a short human-readable reason.
	Evidence string

	// Scope overrides the inferred scope when set.
	Scope string
}

// Rule maps a predicate over the parsed diff to a commit type.
type Rule struct {
	// Name identifies the rule in logs and explanations.
	Name string

	// Priority orders rules; lower runs first.
	Priority int

	// Type is assigned when the rule wins.
	Type changes.CommitType

	// Weight is the confidence of a full-agreement, uncontradicted match.
	Weight float64

	// Match evaluates the rule.
	Match func(in *RuleInput) RuleMatch
}

// RuleInput is the precomputed view of the diff shared by all rules.
type RuleInput struct {
	Facts []diff.FileFact
	Paths []string

	// Code holds changed facts that are not tests, documentation or CI
	// configuration; content rules look only at these.
	Code []diff.FileFact
}
