package cli

import (
	"github.com/spf13/cobra"

	"github.com/relicta-tech/commitgen/internal/mcp"
)

func newServeCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout so AI agents can
generate and lint commit messages.

Tools:
  - generate_commit_message: message for a diff, or for the repository's staged changes
  - lint_commit_message:     check a message against the conventional format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runServe(&generateFlags{})
		},
	}
}

func (o *Options) runServe(f *generateFlags) error {
	p, closeFn, err := o.buildPipeline(f)
	if err != nil {
		return err
	}
	defer closeFn()

	s := mcp.NewServer(o.Version.Version, p, p.Formatter(),
		mcp.WithLogger(o.Slog()),
		mcp.WithDiffSource(o.GitClient()),
	)
	o.Logger.Info("MCP server listening on stdio")
	return mcp.ServeStdio(s)
}
