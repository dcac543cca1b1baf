package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/relicta-tech/commitgen/internal/config"
	"github.com/relicta-tech/commitgen/internal/infrastructure/ai"
)

// defaultOptions backs the package-level entry points used by main.
var defaultOptions = NewOptions()

// SetVersionInfo sets the version information from main.
func SetVersionInfo(version, commit, date string) {
	defaultOptions.SetVersion(version, commit, date)
}

// ExecuteContext runs the root command with a context for graceful shutdown.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand(defaultOptions).ExecuteContext(ctx)
}

// Cleanup closes any open resources. Should be called before program exit.
func Cleanup() {
	defaultOptions.Cleanup()
}

// NewRootCommand builds the command tree. The root command generates a
// commit message; subcommands cover linting, setup and the MCP server.
func NewRootCommand(o *Options) *cobra.Command {
	gen := &generateFlags{}

	root := &cobra.Command{
		Use:   "commitgen [from] [to]",
		Short: "Generate conventional commit messages from diffs",
		Long: `commitgen reads a git diff and writes a conventional commit message.

The type and scope come from deterministic heuristics over the changed
files. The description comes from a template, or from an optional local or
cloud model when one is configured; any generation failure falls back to
the template.

Diff sources, in order of precedence:
  --diff-file FILE   read a diff from FILE ("-" for stdin)
  --staged           the staged changes (git diff --cached)
  FROM [TO]          a commit range (TO defaults to HEAD)
  (none)             the last commit (HEAD~1..HEAD)`,
		Example: `  git diff --cached | commitgen -f -
  commitgen --staged --copy
  commitgen HEAD~3 HEAD --explain
  commitgen --staged --format json`,
		Args: cobra.MaximumNArgs(2),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "init", "version", "help", "completion":
				return nil
			}
			return o.initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runGenerate(cmd, args, gen)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetOut(o.Stdout)
	root.SetErr(o.Stderr)
	root.SetIn(o.Stdin)

	pf := root.PersistentFlags()
	pf.StringVarP(&o.ConfigFile, "config", "c", "", "config file (default: .commitgen.yaml)")
	pf.BoolVarP(&o.Verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&o.NoColor, "no-color", false, "disable colored output")
	pf.StringVar(&o.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&o.Model, "model", "", "generation backend as provider/model (e.g. ollama/llama3, openai/gpt-4o-mini, anthropic/claude-3-5-haiku-latest, none)")

	gen.bind(root)

	root.AddCommand(
		newVersionCommand(o),
		newInitCommand(o),
		newLintCommand(o),
		newServeCommand(o),
	)
	return root
}

// initConfig loads and validates configuration, then applies global flags
// and configures the logger.
func (o *Options) initConfig(cmd *cobra.Command) error {
	loader := config.NewLoader()
	if o.ConfigFile != "" {
		loader.WithConfigPath(o.ConfigFile)
	} else {
		loader.WithSearchPaths(o.Dir)
		if root, err := o.GitClient().Root(); err == nil {
			loader.WithSearchPaths(root)
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	o.Config = cfg

	o.applyGlobalFlags(cmd)
	if err := o.applyModelFlag(); err != nil {
		return err
	}

	o.configureLogger()
	if err := o.configureLogFile(); err != nil {
		return err
	}

	for _, notice := range loader.Notices() {
		o.Logger.Debug(notice)
	}

	warnings, err := config.Validate(cfg)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, w := range warnings {
		o.Logger.Warn(w)
	}
	return nil
}

// applyGlobalFlags applies flags that were set explicitly on top of the
// loaded configuration.
func (o *Options) applyGlobalFlags(cmd *cobra.Command) {
	if o.Verbose {
		o.Config.Output.Verbose = true
	}
	if cmd.Flags().Changed("log-level") {
		o.Config.Output.LogLevel = o.LogLevel
	}
	if o.NoColor || !o.Config.Output.Color || os.Getenv("NO_COLOR") != "" {
		o.Config.Output.Color = false
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// applyModelFlag applies --model to the AI section.
func (o *Options) applyModelFlag() error {
	if o.Model == "" {
		return nil
	}
	provider, cloud, model, err := parseModelFlag(o.Model)
	if err != nil {
		return err
	}
	if provider != "" {
		o.Config.AI.Provider = string(provider)
	}
	if cloud != "" {
		o.Config.AI.CloudProvider = cloud
	}
	if model != "" {
		o.Config.AI.Model = model
	}
	return nil
}

// configureLogger sets the logger format and level from configuration.
func (o *Options) configureLogger() {
	if o.Config.Output.Format == "json" {
		o.Logger.SetFormatter(log.JSONFormatter)
	} else {
		o.Logger.SetFormatter(log.TextFormatter)
	}

	switch strings.ToLower(o.Config.Output.LogLevel) {
	case "debug":
		o.Logger.SetLevel(log.DebugLevel)
	case "warn":
		o.Logger.SetLevel(log.WarnLevel)
	case "error":
		o.Logger.SetLevel(log.ErrorLevel)
	default:
		o.Logger.SetLevel(log.InfoLevel)
	}
	if o.Config.Output.Verbose {
		o.Logger.SetLevel(log.DebugLevel)
	}
}

// configureLogFile redirects logs to output.log_file when set.
func (o *Options) configureLogFile() error {
	if o.Config.Output.LogFile == "" {
		return nil
	}
	f, err := os.OpenFile(o.Config.Output.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	o.LogFile = f
	o.Logger.SetOutput(f)
	return nil
}

// parseModelFlag parses --model. Supported forms:
//   - "provider/model", where provider is ollama or local, openai,
//     anthropic (or claude), or gemini
//   - "provider" alone, selecting that backend's default model
//   - "none" or "disabled", turning generation off
//   - "model", keeping the configured provider
func parseModelFlag(flag string) (ai.Provider, string, string, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return "", "", "", nil
	}

	name, model, hasModel := strings.Cut(flag, "/")
	switch strings.ToLower(name) {
	case "none", "disabled", "off":
		return ai.ProviderDisabled, "", "", nil
	case "ollama", "local":
		return ai.ProviderLocal, "", model, nil
	case ai.CloudOpenAI:
		return ai.ProviderCloud, ai.CloudOpenAI, model, nil
	case ai.CloudAnthropic, "claude":
		return ai.ProviderCloud, ai.CloudAnthropic, model, nil
	case ai.CloudGemini:
		return ai.ProviderCloud, ai.CloudGemini, model, nil
	}
	if hasModel {
		return "", "", "", fmt.Errorf("unknown provider %q in --model %q", name, flag)
	}
	return "", "", flag, nil
}

func newVersionCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(o.Stdout, "commitgen %s\n", o.Version.Version)
			if o.Verbose {
				fmt.Fprintf(o.Stdout, "  commit: %s\n", o.Version.Commit)
				fmt.Fprintf(o.Stdout, "  built:  %s\n", o.Version.Date)
			}
		},
	}
}
