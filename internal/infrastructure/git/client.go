// Package git reads diffs from a local repository.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
)

// DefaultLocalTimeout bounds a single read-only git operation.
const DefaultLocalTimeout = 30 * time.Second

// Source selects which changes GetDiff reads.
type Source string

// Diff sources.
const (
	// SourceStaged is the index against HEAD.
	SourceStaged Source = "staged"
	// SourceRange is an explicit From..To range.
	SourceRange Source = "range"
	// SourceLast is the most recent commit (HEAD~1..HEAD).
	SourceLast Source = "last"
)

// Request describes the diff to read.
type Request struct {
	Source Source
	From   string
	To     string
}

// Runner executes git with the given arguments in dir and returns stdout.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, dir string, args ...string) (string, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, dir string, args ...string) (string, error) {
	return f(ctx, dir, args...)
}

// execRunner shells out to the git binary on PATH.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", err
		}
		return "", fmt.Errorf("%w: %s", err, msg)
	}
	return stdout.String(), nil
}

// Client reads diffs from the repository rooted at (or containing) Dir.
type Client struct {
	dir    string
	runner Runner
}

// Option configures a Client.
type Option func(*Client)

// WithDir sets the working directory. Defaults to ".".
func WithDir(dir string) Option {
	return func(c *Client) { c.dir = dir }
}

// WithRunner replaces the git CLI runner.
func WithRunner(r Runner) Option {
	return func(c *Client) { c.runner = r }
}

// NewClient creates a git client.
func NewClient(opts ...Option) *Client {
	c := &Client{dir: ".", runner: execRunner{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the configured working directory.
func (c *Client) Dir() string {
	return c.dir
}

// GetDiff returns the unified diff text for req. Staged changes always come
// from the CLI since go-git has no index-to-HEAD patch. Commit ranges are
// computed with go-git and fall back to the CLI when the repository cannot
// be read that way (shallow clones, root commits, unsupported revisions).
func (c *Client) GetDiff(ctx context.Context, req Request) (string, error) {
	const op = "git.GetDiff"

	if err := ValidateRef(req.From); err != nil {
		return "", rperrors.GitWrap(err, op, "invalid from reference")
	}
	if err := ValidateRef(req.To); err != nil {
		return "", rperrors.GitWrap(err, op, "invalid to reference")
	}

	ctx, cancel := withLocalTimeout(ctx)
	defer cancel()

	switch req.Source {
	case SourceStaged:
		out, err := c.runner.Run(ctx, c.dir, "diff", "--cached", "--no-color", "--no-ext-diff")
		if err != nil {
			return "", rperrors.GitWrap(err, op, "read staged changes")
		}
		return out, nil

	case SourceRange, SourceLast, "":
		from, to := rangeOf(req)
		if out, err := c.patch(ctx, from, to); err == nil {
			return out, nil
		}
		out, err := c.runner.Run(ctx, c.dir, c.cliArgs(req.Source, from, to)...)
		if err != nil {
			return "", rperrors.GitWrap(err, op, fmt.Sprintf("read diff %s..%s", from, to))
		}
		return out, nil

	default:
		return "", rperrors.Git(op, fmt.Sprintf("unknown diff source %q", req.Source))
	}
}

// IndexPath returns the path of the repository's index file, used to watch
// for staging changes.
func (c *Client) IndexPath(ctx context.Context) (string, error) {
	ctx, cancel := withLocalTimeout(ctx)
	defer cancel()

	out, err := c.runner.Run(ctx, c.dir, "rev-parse", "--git-dir")
	if err != nil {
		return "", rperrors.GitWrap(err, "git.IndexPath", "locate git directory")
	}
	gitDir := strings.TrimSpace(out)
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(c.dir, gitDir)
	}
	return filepath.Join(gitDir, "index"), nil
}

// Root returns the top-level directory of the working tree containing Dir.
func (c *Client) Root() (string, error) {
	repo, err := git.PlainOpenWithOptions(c.dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", rperrors.GitWrap(err, "git.Root", "failed to open repository")
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", rperrors.GitWrap(err, "git.Root", "failed to get worktree")
	}
	return wt.Filesystem.Root(), nil
}

func rangeOf(req Request) (string, string) {
	from, to := req.From, req.To
	if to == "" {
		to = "HEAD"
	}
	if from == "" {
		from = to + "~1"
	}
	return from, to
}

func (c *Client) cliArgs(source Source, from, to string) []string {
	// show handles the root commit, which has no parent to diff against
	if source != SourceRange && from == to+"~1" {
		return []string{"show", "--format=", "--no-color", "--no-ext-diff", to}
	}
	return []string{"diff", "--no-color", "--no-ext-diff", from, to}
}

// patch computes the diff between two revisions with go-git.
func (c *Client) patch(ctx context.Context, from, to string) (string, error) {
	repo, err := git.PlainOpenWithOptions(c.dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", err
	}

	fromCommit, err := commitAt(repo, from)
	if err != nil {
		return "", err
	}
	toCommit, err := commitAt(repo, to)
	if err != nil {
		return "", err
	}

	patch, err := fromCommit.PatchContext(ctx, toCommit)
	if err != nil {
		return "", err
	}
	return patch.String(), nil
}

func commitAt(repo *git.Repository, rev string) (*object.Commit, error) {
	var hash plumbing.Hash
	if plumbing.IsHash(rev) {
		hash = plumbing.NewHash(rev)
	} else {
		resolved, err := repo.ResolveRevision(plumbing.Revision(rev))
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", rev, err)
		}
		hash = *resolved
	}
	return repo.CommitObject(hash)
}

// withLocalTimeout applies DefaultLocalTimeout unless ctx already has a
// shorter deadline.
func withLocalTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < DefaultLocalTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultLocalTimeout)
}
