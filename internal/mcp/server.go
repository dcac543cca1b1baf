// Package mcp exposes commit message generation and linting as Model Context
// Protocol tools over stdio.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/relicta-tech/commitgen/internal/formatter"
	"github.com/relicta-tech/commitgen/internal/infrastructure/git"
	"github.com/relicta-tech/commitgen/internal/pipeline"
)

// ServerName is reported to clients during initialization.
const ServerName = "commitgen"

// Runner produces a commit message for a diff.
type Runner interface {
	Run(ctx context.Context, diffText string) (*pipeline.Result, error)
}

// DiffSource reads diffs from a repository.
type DiffSource interface {
	GetDiff(ctx context.Context, req git.Request) (string, error)
}

// Option configures the server.
type Option func(*options)

type options struct {
	logger *slog.Logger
	source DiffSource
}

// WithLogger sets the logger used by tool handlers.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDiffSource lets generate_commit_message read from git when the caller
// passes no diff text.
func WithDiffSource(src DiffSource) Option {
	return func(o *options) { o.source = src }
}

// NewServer registers the commitgen tools on a new MCP server.
func NewServer(version string, runner Runner, f *formatter.Formatter, opts ...Option) *server.MCPServer {
	o := options{logger: slog.Default().With("component", "mcp")}
	for _, opt := range opts {
		opt(&o)
	}

	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	generate := NewGenerateTool(runner, o.source, o.logger)
	s.AddTool(generate.Definition(), generate.Handle)

	lint := NewLintTool(f)
	s.AddTool(lint.Definition(), lint.Handle)

	return s
}

// ServeStdio runs s on stdin/stdout until the input closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `commitgen writes conventional commit messages from diffs.

Call generate_commit_message with a unified diff (or with source "staged" to
read the repository's staged changes) and use the returned message as-is.
Call lint_commit_message to check a message before committing.`
