package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relicta-tech/commitgen/internal/formatter"
	"github.com/relicta-tech/commitgen/internal/infrastructure/git"
)

// GenerateTool handles the generate_commit_message tool.
type GenerateTool struct {
	runner Runner
	source DiffSource
	logger *slog.Logger
}

// NewGenerateTool creates a GenerateTool. source may be nil, in which case
// callers must pass the diff text.
func NewGenerateTool(runner Runner, source DiffSource, logger *slog.Logger) *GenerateTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateTool{runner: runner, source: source, logger: logger}
}

// Definition returns the MCP tool definition.
func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_commit_message",
		mcp.WithDescription("Generate a conventional commit message for a unified diff."),
		mcp.WithString("diff",
			mcp.Description("Unified diff text. When omitted the diff is read from git using 'source'."),
		),
		mcp.WithString("source",
			mcp.Description("Where to read the diff when 'diff' is omitted: staged (default), last, or range"),
			mcp.Enum(string(git.SourceStaged), string(git.SourceLast), string(git.SourceRange)),
		),
		mcp.WithString("from",
			mcp.Description("Start revision for source=range"),
		),
		mcp.WithString("to",
			mcp.Description("End revision for source=range (default HEAD)"),
		),
	)
}

// generateResponse is the JSON body returned to the client.
type generateResponse struct {
	Message    string   `json:"message"`
	Type       string   `json:"type"`
	Scope      string   `json:"scope,omitempty"`
	Breaking   bool     `json:"breaking"`
	Confidence float64  `json:"confidence"`
	Rule       string   `json:"rule"`
	Summary    string   `json:"summary_source"`
	Degraded   bool     `json:"degraded"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Handle processes the tool call.
func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	diffText := req.GetString("diff", "")
	if strings.TrimSpace(diffText) == "" {
		if t.source == nil {
			return mcp.NewToolResultError("'diff' is required"), nil
		}
		src := git.Source(req.GetString("source", string(git.SourceStaged)))
		text, err := t.source.GetDiff(ctx, git.Request{
			Source: src,
			From:   req.GetString("from", ""),
			To:     req.GetString("to", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read diff: %v", err)), nil
		}
		diffText = text
	}

	res, err := t.runner.Run(ctx, diffText)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cls := res.Classification
	body, err := json.MarshalIndent(generateResponse{
		Message:    res.Text(),
		Type:       cls.Type.String(),
		Scope:      res.Message.Scope(),
		Breaking:   res.Message.IsBreaking(),
		Confidence: cls.Confidence,
		Rule:       cls.Rule,
		Summary:    string(res.Summary.Source),
		Degraded:   res.Degraded,
		Reasons:    res.Reasons,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	t.logger.Debug("generated commit message", "run_id", res.RunID, "type", cls.Type, "degraded", res.Degraded)
	return mcp.NewToolResultText(string(body)), nil
}

// LintTool handles the lint_commit_message tool.
type LintTool struct {
	formatter *formatter.Formatter
}

// NewLintTool creates a LintTool.
func NewLintTool(f *formatter.Formatter) *LintTool {
	if f == nil {
		f = formatter.New(formatter.Options{})
	}
	return &LintTool{formatter: f}
}

// Definition returns the MCP tool definition.
func (t *LintTool) Definition() mcp.Tool {
	return mcp.NewTool("lint_commit_message",
		mcp.WithDescription("Check that a commit message follows the conventional commit format."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The full commit message"),
		),
	)
}

// Handle processes the tool call. Violations are reported as tool errors so
// clients can tell them apart from valid messages.
func (t *LintTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message := req.GetString("message", "")
	if strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("'message' is required"), nil
	}

	msg, err := t.formatter.Validate(message)
	if err != nil {
		return mcp.NewToolResultError("invalid: " + err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("ok: %s (%s release)", msg.Header(), msg.ReleaseType())), nil
}
