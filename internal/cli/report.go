package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/relicta-tech/commitgen/internal/diff"
	"github.com/relicta-tech/commitgen/internal/pipeline"
)

// Report is the machine-readable result printed by --format json|yaml.
type Report struct {
	RunID          string        `json:"run_id" yaml:"run_id"`
	Message        string        `json:"message" yaml:"message"`
	Header         string        `json:"header" yaml:"header"`
	Type           string        `json:"type" yaml:"type"`
	Scope          string        `json:"scope,omitempty" yaml:"scope,omitempty"`
	Breaking       bool          `json:"breaking" yaml:"breaking"`
	BreakingReason string        `json:"breaking_reason,omitempty" yaml:"breaking_reason,omitempty"`
	Truncated      bool          `json:"truncated" yaml:"truncated"`
	ReleaseType    string        `json:"release_type" yaml:"release_type"`
	CurrentVersion string        `json:"current_version,omitempty" yaml:"current_version,omitempty"`
	NextVersion    string        `json:"next_version,omitempty" yaml:"next_version,omitempty"`
	Classification ReportRule    `json:"classification" yaml:"classification"`
	Summary        ReportSummary `json:"summary" yaml:"summary"`
	Files          []ReportFile  `json:"files" yaml:"files"`
	Degraded       bool          `json:"degraded" yaml:"degraded"`
	Reasons        []string      `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	Trace          []string      `json:"trace" yaml:"trace"`
	Cached         bool          `json:"cached" yaml:"cached"`
	DurationMS     int64         `json:"duration_ms" yaml:"duration_ms"`
}

// ReportRule describes the classification.
type ReportRule struct {
	Rule         string   `json:"rule" yaml:"rule"`
	Confidence   float64  `json:"confidence" yaml:"confidence"`
	Reasoning    string   `json:"reasoning" yaml:"reasoning"`
	Contradicted []string `json:"contradicted,omitempty" yaml:"contradicted,omitempty"`
}

// ReportSummary describes where the description came from.
type ReportSummary struct {
	Text      string `json:"text" yaml:"text"`
	Source    string `json:"source" yaml:"source"`
	Generator string `json:"generator,omitempty" yaml:"generator,omitempty"`
	Fallback  bool   `json:"fallback" yaml:"fallback"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ReportFile is one parsed file.
type ReportFile struct {
	Path    string `json:"path" yaml:"path"`
	OldPath string `json:"old_path,omitempty" yaml:"old_path,omitempty"`
	Status  string `json:"status" yaml:"status"`
	Added   int    `json:"added" yaml:"added"`
	Removed int    `json:"removed" yaml:"removed"`
	Binary  bool   `json:"binary,omitempty" yaml:"binary,omitempty"`
}

func newReport(res *pipeline.Result, current, next string) Report {
	msg := res.Message
	cls := res.Classification

	files := make([]ReportFile, 0, len(res.Facts))
	for _, f := range res.Facts {
		rf := ReportFile{
			Path:    f.Path,
			Status:  string(f.Status),
			Added:   f.AddedLines,
			Removed: f.RemovedLines,
			Binary:  f.Binary,
		}
		if f.OldPath != f.Path {
			rf.OldPath = f.OldPath
		}
		files = append(files, rf)
	}

	r := Report{
		RunID:          res.RunID,
		Message:        res.Text(),
		Header:         msg.Header(),
		Type:           msg.Type().String(),
		Scope:          msg.Scope(),
		Breaking:       msg.IsBreaking(),
		BreakingReason: msg.BreakingReason(),
		Truncated:      msg.Truncated(),
		ReleaseType:    msg.ReleaseType().String(),
		CurrentVersion: current,
		NextVersion:    next,
		Classification: ReportRule{
			Rule:         cls.Rule,
			Confidence:   cls.Confidence,
			Reasoning:    cls.Reasoning,
			Contradicted: cls.Contradicted,
		},
		Summary: ReportSummary{
			Text:      res.Summary.Text,
			Source:    string(res.Summary.Source),
			Generator: res.Summary.Generator,
			Fallback:  res.Summary.Fallback,
		},
		Files:      files,
		Degraded:   res.Degraded,
		Reasons:    res.Reasons,
		Trace:      res.Trace,
		Cached:     res.Cached,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Summary.Err != nil {
		r.Summary.Error = res.Summary.Err.Error()
	}
	return r
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// explain prints the stage-by-stage derivation of res to stderr.
func (o *Options) explain(res *pipeline.Result) {
	cls := res.Classification
	added, removed := diff.Totals(res.Facts)

	o.printTitle("Parse")
	fmt.Fprintf(o.Stderr, "  %d file(s), +%d/-%d\n", len(res.Facts), added, removed)
	for _, f := range res.Facts {
		line := fmt.Sprintf("  %-8s %s (+%d/-%d)", f.Status, f.Path, f.AddedLines, f.RemovedLines)
		if f.Binary {
			line = fmt.Sprintf("  %-8s %s (binary)", f.Status, f.Path)
		}
		o.printSubtle(line)
	}

	o.printTitle("Classify")
	fmt.Fprintf(o.Stderr, "  type=%s scope=%q rule=%s confidence=%.2f\n", cls.Type, cls.Scope, cls.Rule, cls.Confidence)
	if cls.Reasoning != "" {
		o.printSubtle("  " + cls.Reasoning)
	}
	if len(cls.Contradicted) > 0 {
		o.printSubtle("  also matched: " + strings.Join(cls.Contradicted, ", "))
	}
	if cls.Breaking {
		fmt.Fprintf(o.Stderr, "  breaking: %s\n", cls.BreakingReason)
	}

	o.printTitle("Summarize")
	source := string(res.Summary.Source)
	if res.Summary.Generator != "" {
		source += " (" + res.Summary.Generator + ")"
	}
	fmt.Fprintf(o.Stderr, "  source=%s fallback=%t\n", source, res.Summary.Fallback)
	if res.Summary.Err != nil {
		o.printSubtle("  " + res.Summary.Err.Error())
	}

	o.printTitle("Format")
	header := res.Message.Header()
	fmt.Fprintf(o.Stderr, "  header %d chars, truncated=%t\n", utf8.RuneCountInString(header), res.Message.Truncated())

	o.printTitle("Run")
	fmt.Fprintf(o.Stderr, "  %s\n", strings.Join(res.Trace, " -> "))
	fmt.Fprintf(o.Stderr, "  run_id=%s cached=%t duration=%s\n", res.RunID, res.Cached, res.Duration)
	fmt.Fprintln(o.Stderr)
}
