// Package cli provides the command-line interface for commitgen.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/relicta-tech/commitgen/internal/config"
	"github.com/relicta-tech/commitgen/internal/infrastructure/git"
)

// Options holds the CLI runtime options and dependencies. Commands read
// everything through it so tests can swap streams and collaborators.
type Options struct {
	Version VersionInfo

	// Global flags
	ConfigFile string
	Verbose    bool
	NoColor    bool
	LogLevel   string
	Model      string

	// Dir is the working directory for git and config lookups.
	Dir string

	// GitRunner overrides the git CLI runner.
	GitRunner git.Runner

	// Runtime state
	Config  *config.Config
	Logger  *log.Logger
	LogFile *os.File
	Styles  Styles

	// I/O streams
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
}

// VersionInfo holds version metadata.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// Styles holds the CLI styling configuration.
type Styles struct {
	Title   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Subtle  lipgloss.Style
	Bold    lipgloss.Style
}

// DefaultStyles returns the default CLI styles.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		Subtle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Bold:    lipgloss.NewStyle().Bold(true),
	}
}

// NewOptions creates Options bound to the process streams.
func NewOptions() *Options {
	return &Options{
		Dir:      ".",
		LogLevel: "info",
		Styles:   DefaultStyles(),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Stdin:    os.Stdin,
		Logger: log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			ReportCaller:    false,
		}),
	}
}

// SetVersion sets the version information.
func (o *Options) SetVersion(version, commit, date string) {
	o.Version.Version = version
	o.Version.Commit = commit
	o.Version.Date = date
}

// IsVerbose returns true if verbose output is enabled.
func (o *Options) IsVerbose() bool {
	return o.Verbose || (o.Config != nil && o.Config.Output.Verbose)
}

// Slog returns a *slog.Logger backed by the CLI logger, for library
// packages that log through log/slog.
func (o *Options) Slog() *slog.Logger {
	return slog.New(o.Logger)
}

// GitClient returns a git client rooted at Dir.
func (o *Options) GitClient() *git.Client {
	opts := []git.Option{git.WithDir(o.Dir)}
	if o.GitRunner != nil {
		opts = append(opts, git.WithRunner(o.GitRunner))
	}
	return git.NewClient(opts...)
}

// Cleanup closes any open resources.
func (o *Options) Cleanup() {
	if o.LogFile != nil {
		_ = o.LogFile.Close()
		o.LogFile = nil
	}
}

// Status lines go to stderr so stdout carries only the message.

func (o *Options) printSuccess(msg string) {
	fmt.Fprintln(o.Stderr, o.Styles.Success.Render("✓ "+msg))
}

func (o *Options) printError(msg string) {
	fmt.Fprintln(o.Stderr, o.Styles.Error.Render("✗ "+msg))
}

func (o *Options) printWarning(msg string) {
	fmt.Fprintln(o.Stderr, o.Styles.Warning.Render("⚠ "+msg))
}

func (o *Options) printInfo(msg string) {
	fmt.Fprintln(o.Stderr, o.Styles.Info.Render("ℹ "+msg))
}

func (o *Options) printTitle(msg string) {
	fmt.Fprintln(o.Stderr, o.Styles.Title.Render(msg))
}

func (o *Options) printSubtle(msg string) {
	fmt.Fprintln(o.Stderr, o.Styles.Subtle.Render(msg))
}
