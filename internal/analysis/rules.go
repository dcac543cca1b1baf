package analysis

import (
	"fmt"

	"github.com/relicta-tech/commitgen/internal/analysis/heuristics"
	"github.com/relicta-tech/commitgen/internal/diff"
	"github.com/relicta-tech/commitgen/internal/domain/changes"
)

// Rule names.
const (
	RuleEmptyChangeSet      = "empty-changeset"
	RuleTestFiles           = "test-files"
	RuleDocsFiles           = "docs-files"
	RuleCIFiles             = "ci-files"
	RuleBuildFiles          = "build-files"
	RuleDependencyManifests = "dependency-manifests"
	RuleStyleOnly           = "style-only"
	RuleFixKeywords         = "fix-keywords"
	RulePerfKeywords        = "perf-keywords"
	RuleRefactorShape       = "refactor-shape"
	RuleFeatureAdditions    = "feature-additions"
)

var pathDetector = heuristics.NewPathDetector()

// DefaultRules returns the built-in rules in evaluation order. Path-only
// rules come before content rules so that a change made entirely of tests or
// documentation is never read as a feature or a fix.
func DefaultRules() []Rule {
	return []Rule{
		{Name: RuleEmptyChangeSet, Priority: 0, Type: changes.CommitTypeChore, Weight: 0, Match: matchEmpty},
		{Name: RuleTestFiles, Priority: 10, Type: changes.CommitTypeTest, Weight: 0.95, Match: matchAllIn(heuristics.CategoryTest)},
		{Name: RuleDocsFiles, Priority: 20, Type: changes.CommitTypeDocs, Weight: 0.95, Match: matchAllIn(heuristics.CategoryDocs)},
		{Name: RuleCIFiles, Priority: 30, Type: changes.CommitTypeCI, Weight: 0.92, Match: matchAllIn(heuristics.CategoryCI)},
		{Name: RuleBuildFiles, Priority: 40, Type: changes.CommitTypeBuild, Weight: 0.85, Match: matchAllIn(heuristics.CategoryBuild)},
		{Name: RuleDependencyManifests, Priority: 50, Type: changes.CommitTypeChore, Weight: 0.85, Match: matchDependencies},
		{Name: RuleStyleOnly, Priority: 60, Type: changes.CommitTypeStyle, Weight: 0.80, Match: matchStyle},
		{Name: RuleFixKeywords, Priority: 70, Type: changes.CommitTypeFix, Weight: 0.80, Match: matchLexicon(heuristics.FixLexicon)},
		{Name: RulePerfKeywords, Priority: 80, Type: changes.CommitTypePerf, Weight: 0.70, Match: matchLexicon(heuristics.PerfLexicon)},
		{Name: RuleRefactorShape, Priority: 90, Type: changes.CommitTypeRefactor, Weight: 0.70, Match: matchRefactor},
		{Name: RuleFeatureAdditions, Priority: 100, Type: changes.CommitTypeFeat, Weight: 0.75, Match: matchFeature},
	}
}

func newRuleInput(facts []diff.FileFact) *RuleInput {
	in := &RuleInput{Facts: facts, Paths: diff.Paths(facts)}
	for _, f := range facts {
		if !f.Changed() {
			continue
		}
		switch pathDetector.Categorize(f.Path) {
		case heuristics.CategoryTest, heuristics.CategoryDocs, heuristics.CategoryCI:
			continue
		}
		in.Code = append(in.Code, f)
	}
	return in
}

func matchEmpty(in *RuleInput) RuleMatch {
	if !diff.IsEmpty(in.Facts) {
		return RuleMatch{}
	}
	return RuleMatch{
		Matched:  true,
		Agreeing: len(in.Facts),
		Total:    len(in.Facts),
		Evidence: "no line changes",
	}
}

func matchAllIn(c heuristics.Category) func(*RuleInput) RuleMatch {
	return func(in *RuleInput) RuleMatch {
		if !pathDetector.All(in.Paths, c) {
			return RuleMatch{}
		}
		return RuleMatch{
			Matched:  true,
			Agreeing: len(in.Paths),
			Total:    len(in.Paths),
			Evidence: fmt.Sprintf("all %d files are %s files", len(in.Paths), c),
		}
	}
}

func matchDependencies(in *RuleInput) RuleMatch {
	m := matchAllIn(heuristics.CategoryDeps)(in)
	if m.Matched {
		m.Scope = "deps"
	}
	return m
}

func matchStyle(in *RuleInput) RuleMatch {
	if m := matchAllIn(heuristics.CategoryLint)(in); m.Matched {
		return m
	}

	changed := 0
	for _, f := range in.Facts {
		if !f.Changed() {
			continue
		}
		changed++
		if !heuristics.OnlyWhitespaceChanged(f.Removed, f.Added) {
			return RuleMatch{}
		}
	}
	if changed == 0 {
		return RuleMatch{}
	}
	return RuleMatch{
		Matched:  true,
		Agreeing: changed,
		Total:    changed,
		Evidence: "only whitespace changed",
	}
}

func matchLexicon(lex heuristics.Lexicon) func(*RuleInput) RuleMatch {
	return func(in *RuleInput) RuleMatch {
		agreeing := 0
		word := ""
		for _, f := range in.Code {
			if hits, w := lex.CountLines(f.Added); hits > 0 {
				agreeing++
				if word == "" {
					word = w
				}
			}
		}
		if agreeing == 0 {
			return RuleMatch{}
		}
		return RuleMatch{
			Matched:  true,
			Agreeing: agreeing,
			Total:    len(in.Code),
			Evidence: fmt.Sprintf("added lines mention %q in %d of %d files", word, agreeing, len(in.Code)),
		}
	}
}

func matchRefactor(in *RuleInput) RuleMatch {
	if m := matchLexicon(heuristics.RefactorLexicon)(in); m.Matched {
		return m
	}

	renamed := 0
	for _, f := range in.Facts {
		if f.Status == diff.StatusRenamed {
			renamed++
		}
	}
	if renamed == len(in.Facts) && renamed > 0 {
		return RuleMatch{
			Matched:  true,
			Agreeing: renamed,
			Total:    renamed,
			Evidence: "every file was renamed or moved",
		}
	}

	added, removed := diff.Totals(in.Code)
	if len(in.Code) == 0 || removed <= added {
		return RuleMatch{}
	}
	shrinking := 0
	for _, f := range in.Code {
		if f.Status == diff.StatusAdded {
			return RuleMatch{}
		}
		if f.RemovedLines >= f.AddedLines {
			shrinking++
		}
	}
	return RuleMatch{
		Matched:  true,
		Agreeing: shrinking,
		Total:    len(in.Code),
		Evidence: fmt.Sprintf("net deletion of %d lines without new files", removed-added),
	}
}

func matchFeature(in *RuleInput) RuleMatch {
	if m := matchLexicon(heuristics.FeatureLexicon)(in); m.Matched {
		return m
	}

	agreeing := 0
	newFiles := 0
	for _, f := range in.Code {
		if !heuristics.IsSourceFile(f.Path) {
			continue
		}
		switch {
		case f.Status == diff.StatusAdded:
			newFiles++
			agreeing++
		case f.AddedLines > f.RemovedLines:
			agreeing++
		}
	}
	if agreeing == 0 {
		return RuleMatch{}
	}
	evidence := fmt.Sprintf("net additions in %d source files", agreeing)
	if newFiles > 0 {
		evidence = fmt.Sprintf("%d new source files", newFiles)
	}
	return RuleMatch{
		Matched:  true,
		Agreeing: agreeing,
		Total:    len(in.Code),
		Evidence: evidence,
	}
}
