package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/relicta-tech/commitgen/internal/infrastructure/git"
	"github.com/relicta-tech/commitgen/internal/pipeline"
)

// watchDebounce collapses the burst of events a single `git add` produces.
const watchDebounce = 300 * time.Millisecond

// watch regenerates the message for the staged changes every time the git
// index changes, until ctx is canceled. Git replaces the index by renaming a
// lock file, so the directory is watched rather than the file.
func (o *Options) watch(ctx context.Context, p *pipeline.Pipeline, f *generateFlags) error {
	client := o.GitClient()
	index, err := client.IndexPath(ctx)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(index)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(index), err)
	}

	regenerate := func() {
		text, err := client.GetDiff(ctx, git.Request{Source: git.SourceStaged})
		if err != nil {
			o.printError(err.Error())
			return
		}
		fmt.Fprintf(o.Stderr, "\n[%s] staged changes\n", time.Now().Format("15:04:05"))
		if err := o.generateOnce(ctx, p, text, f); err != nil {
			o.printError(err.Error())
		}
	}

	o.printInfo("Watching staged changes (Ctrl+C to stop)")
	regenerate()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(index) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(watchDebounce)
			}

		case <-timer.C:
			regenerate()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.Logger.Warn("watch error", "error", err)

		case <-ctx.Done():
			fmt.Fprintln(o.Stderr, "\nStopping watch mode...")
			return nil
		}
	}
}
