package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/commitgen/internal/config"
)

type initFlags struct {
	force  bool
	format string
}

func newInitCommand(o *Options) *cobra.Command {
	f := &initFlags{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a commitgen configuration file with default settings to the
current directory. Generation starts disabled; set ai.provider to local or
cloud to enable it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runInit(f)
		},
	}
	cmd.Flags().BoolVar(&f.force, "force", false, "overwrite an existing config file")
	cmd.Flags().StringVar(&f.format, "format", config.FormatYAML, "config file format (yaml, toml)")
	return cmd
}

func (o *Options) runInit(f *initFlags) error {
	switch f.format {
	case config.FormatYAML, config.FormatTOML:
	default:
		return fmt.Errorf("unsupported config format %q", f.format)
	}

	if existing, err := config.FindConfigFile(o.Dir); err == nil && !f.force {
		o.printWarning(fmt.Sprintf("Config file already exists: %s", existing))
		o.printInfo("Use --force to overwrite")
		return nil
	}

	path := filepath.Join(o.Dir, config.DefaultFileName(f.format))
	if err := config.WriteDefaultConfig(path, f.force); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	o.printSuccess(fmt.Sprintf("Created %s", path))
	o.printTitle("Next Steps")
	o.printSubtle("  1. Set ai.provider to local (Ollama) or cloud to enable generated descriptions")
	o.printSubtle("  2. For cloud providers, export OPENAI_API_KEY, ANTHROPIC_API_KEY or GEMINI_API_KEY")
	o.printSubtle("  3. Run 'commitgen --staged' after staging changes")
	return nil
}
