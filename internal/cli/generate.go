package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/relicta-tech/commitgen/internal/domain/changes"
	"github.com/relicta-tech/commitgen/internal/infrastructure/ai"
	"github.com/relicta-tech/commitgen/internal/infrastructure/cache"
	"github.com/relicta-tech/commitgen/internal/infrastructure/git"
	"github.com/relicta-tech/commitgen/internal/pipeline"
)

// writeClipboard is a package var so tests can replace it.
var writeClipboard = clipboard.WriteAll

// generateFlags are the root command's local flags.
type generateFlags struct {
	staged         bool
	from           string
	to             string
	diffFile       string
	explain        bool
	format         string
	copy           bool
	watch          bool
	currentVersion string
	body           bool
	noCache        bool
}

func (f *generateFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVarP(&f.staged, "staged", "s", false, "use staged changes (git diff --cached)")
	fl.StringVar(&f.from, "from", "", "start of the commit range")
	fl.StringVar(&f.to, "to", "", "end of the commit range (default HEAD)")
	fl.StringVarP(&f.diffFile, "diff-file", "f", "", `read the diff from a file ("-" for stdin)`)
	fl.BoolVar(&f.explain, "explain", false, "print how the message was derived")
	fl.StringVarP(&f.format, "format", "o", "", "output format (text, json, yaml)")
	fl.BoolVar(&f.copy, "copy", false, "copy the message to the clipboard")
	fl.BoolVarP(&f.watch, "watch", "w", false, "regenerate whenever the staged changes change")
	fl.StringVar(&f.currentVersion, "current-version", "", "report the next version after this one (e.g. v1.2.3)")
	fl.BoolVar(&f.body, "body", false, "include a per-file change list in the message body")
	fl.BoolVar(&f.noCache, "no-cache", false, "bypass the result cache")
}

// outputFormat resolves the report format from the flag and configuration.
func (o *Options) outputFormat(f *generateFlags) string {
	if f.format != "" {
		return strings.ToLower(f.format)
	}
	if o.Config != nil && o.Config.Output.Format != "" {
		return o.Config.Output.Format
	}
	return "text"
}

func (o *Options) runGenerate(cmd *cobra.Command, args []string, f *generateFlags) error {
	ctx := cmd.Context()

	switch format := o.outputFormat(f); format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	p, closeFn, err := o.buildPipeline(f)
	if err != nil {
		return err
	}
	defer closeFn()

	if f.watch {
		return o.watch(ctx, p, f)
	}

	text, err := o.readDiff(ctx, args, f)
	if err != nil {
		return err
	}
	return o.generateOnce(ctx, p, text, f)
}

// generateOnce runs the pipeline over text and writes the result.
func (o *Options) generateOnce(ctx context.Context, p *pipeline.Pipeline, text string, f *generateFlags) error {
	res, err := p.Run(ctx, text)
	if err != nil {
		return err
	}

	for _, reason := range res.Reasons {
		o.printWarning(reason)
	}

	var next string
	if f.currentVersion != "" {
		v, err := changes.NextVersion(f.currentVersion, res.Message.ReleaseType())
		if err != nil {
			return err
		}
		next = v
	}

	if err := o.writeResult(res, f, next); err != nil {
		return err
	}

	if f.copy {
		if err := writeClipboard(res.Text()); err != nil {
			o.printWarning(fmt.Sprintf("could not copy to clipboard: %v", err))
		} else {
			o.printSuccess("Copied to clipboard")
		}
	}
	return nil
}

// writeResult prints the message or report in the selected format.
func (o *Options) writeResult(res *pipeline.Result, f *generateFlags, next string) error {
	switch o.outputFormat(f) {
	case "json":
		return writeJSON(o.Stdout, newReport(res, f.currentVersion, next))
	case "yaml":
		return writeYAML(o.Stdout, newReport(res, f.currentVersion, next))
	}

	if f.explain || o.IsVerbose() {
		o.explain(res)
	}
	fmt.Fprintln(o.Stdout, res.Text())
	if next != "" {
		o.printInfo(fmt.Sprintf("Next version: %s (%s release)", next, res.Message.ReleaseType()))
	}
	return nil
}

// buildPipeline wires the generator and cache selected by configuration.
func (o *Options) buildPipeline(f *generateFlags) (*pipeline.Pipeline, func(), error) {
	cfg := o.Config
	pcfg := cfg.PipelineConfig()
	if f.body {
		pcfg.IncludeBody = true
	}

	logger := o.Slog()
	opts := []pipeline.Option{pipeline.WithLogger(logger)}

	gen, err := ai.NewGenerator(cfg.GeneratorOptions()...)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, pipeline.WithGenerator(gen))

	closeFn := func() {}
	if cfg.Cache.Enabled && !f.noCache {
		store, err := cache.Open(cfg.CacheOptions())
		if err != nil {
			// the cache is best effort
			o.Logger.Warn("cache unavailable", "error", err)
		} else {
			opts = append(opts, pipeline.WithCache(store))
			closeFn = func() {
				stats := store.Stats()
				o.Logger.Debug("cache", "backend", stats.Backend, "entries", stats.Entries, "hits", stats.Hits, "misses", stats.Misses)
				_ = store.Close()
			}
		}
	}

	p, err := pipeline.New(pcfg, opts...)
	if err != nil {
		_ = ai.Close(gen)
		closeFn()
		return nil, nil, err
	}
	closeCache := closeFn
	closeFn = func() {
		if err := p.Close(); err != nil {
			o.Logger.Debug("closing generator", "error", err)
		}
		closeCache()
	}
	o.Logger.Debug("pipeline ready", "provider", pcfg.Provider, "generator", gen.Name())
	return p, closeFn, nil
}

// readDiff resolves the diff source from flags and arguments.
func (o *Options) readDiff(ctx context.Context, args []string, f *generateFlags) (string, error) {
	if f.diffFile == "" && len(args) == 1 && args[0] == "-" {
		f.diffFile = "-"
		args = nil
	}

	switch {
	case f.diffFile != "":
		if f.staged || len(args) > 0 || f.from != "" || f.to != "" {
			return "", errors.New("--diff-file cannot be combined with --staged or a commit range")
		}
		return o.readDiffFile(f.diffFile)

	case f.staged:
		if len(args) > 0 || f.from != "" || f.to != "" {
			return "", errors.New("--staged cannot be combined with a commit range")
		}
		return o.GitClient().GetDiff(ctx, git.Request{Source: git.SourceStaged})
	}

	req := git.Request{Source: git.SourceLast, From: f.from, To: f.to}
	if len(args) > 0 {
		if f.from != "" || f.to != "" {
			return "", errors.New("use either positional revisions or --from/--to, not both")
		}
		req.From = args[0]
		if len(args) > 1 {
			req.To = args[1]
		}
	}
	if req.From != "" || req.To != "" {
		req.Source = git.SourceRange
	}
	return o.GitClient().GetDiff(ctx, req)
}

func (o *Options) readDiffFile(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(o.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read diff from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read diff file: %w", err)
	}
	return string(data), nil
}
