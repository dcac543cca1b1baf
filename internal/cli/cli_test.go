package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
	"github.com/relicta-tech/commitgen/internal/infrastructure/ai"
	"github.com/relicta-tech/commitgen/internal/infrastructure/git"
)

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}

var (
	readmeDiff = lines(
		"diff --git a/README.md b/README.md",
		"--- a/README.md",
		"+++ b/README.md",
		"@@ -1,2 +1,3 @@",
		" # commitgen",
		"+Generate conventional commit messages from diffs.",
		" ",
	)

	testFileDiff = lines(
		"diff --git a/tests/test_auth.py b/tests/test_auth.py",
		"index 83db48f..bf269f4 100644",
		"--- a/tests/test_auth.py",
		"+++ b/tests/test_auth.py",
		"@@ -1,3 +1,5 @@",
		" import pytest",
		" ",
		"+def test_login_rejects_expired_token():",
		"+    assert not login(expired_token())",
		" def test_login():",
	)

	fixDiff = lines(
		"diff --git a/src/auth/login.py b/src/auth/login.py",
		"--- a/src/auth/login.py",
		"+++ b/src/auth/login.py",
		"@@ -10,2 +10,3 @@ def login(user):",
		"-    return session",
		"+    # fix crash when the session expired",
		"+    return session or refresh(user)",
		" ",
	)
)

type testEnv struct {
	opts   *Options
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// newTestEnv returns Options writing to buffers, rooted in a temp dir, with
// provider credentials hidden from config auto-detection.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "OLLAMA_HOST"} {
		t.Setenv(key, "")
	}

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	o := NewOptions()
	o.Dir = t.TempDir()
	o.Stdout = stdout
	o.Stderr = stderr
	o.Stdin = strings.NewReader("")
	o.Logger = log.New(stderr)
	o.GitRunner = git.RunnerFunc(func(context.Context, string, ...string) (string, error) {
		return "", errors.New("git is not available in tests")
	})
	return &testEnv{opts: o, stdout: stdout, stderr: stderr}
}

func (e *testEnv) run(args ...string) error {
	cmd := NewRootCommand(e.opts)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.opts.Dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGenerate_DiffSources(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, e *testEnv) []string
		want  string
	}{
		{
			name: "diff file",
			setup: func(t *testing.T, e *testEnv) []string {
				return []string{"--diff-file", e.writeFile(t, "change.diff", readmeDiff)}
			},
			want: "docs: update documentation\n",
		},
		{
			name: "stdin flag",
			setup: func(_ *testing.T, e *testEnv) []string {
				e.opts.Stdin = strings.NewReader(testFileDiff)
				return []string{"-f", "-"}
			},
			want: "test(auth): add or update tests\n",
		},
		{
			name: "stdin argument",
			setup: func(_ *testing.T, e *testEnv) []string {
				e.opts.Stdin = strings.NewReader(testFileDiff)
				return []string{"-"}
			},
			want: "test(auth): add or update tests\n",
		},
		{
			name: "staged",
			setup: func(_ *testing.T, e *testEnv) []string {
				e.opts.GitRunner = git.RunnerFunc(func(_ context.Context, _ string, args ...string) (string, error) {
					if args[0] == "diff" && args[1] == "--cached" {
						return fixDiff, nil
					}
					return "", errors.New("unexpected git call")
				})
				return []string{"--staged"}
			},
			want: "fix(auth): resolve issues in login.py\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			args := tt.setup(t, e)
			require.NoError(t, e.run(args...), e.stderr.String())
			assert.Equal(t, tt.want, e.stdout.String())
		})
	}
}

func TestGenerate_EmptyStagedDiffWarns(t *testing.T) {
	e := newTestEnv(t)
	e.opts.GitRunner = git.RunnerFunc(func(context.Context, string, ...string) (string, error) {
		return "", nil
	})

	require.NoError(t, e.run("--staged"))
	assert.Equal(t, "chore: update code\n", e.stdout.String())
	assert.Contains(t, e.stderr.String(), "no changes detected")
}

func TestGenerate_ParseErrorFails(t *testing.T) {
	e := newTestEnv(t)
	path := e.writeFile(t, "notes.txt", "Refactored the login flow and fixed a few bugs.\n")

	err := e.run("--diff-file", path)
	require.Error(t, err)
	assert.True(t, rperrors.IsKind(err, rperrors.KindParse))
	assert.Empty(t, e.stdout.String())
}

func TestGenerate_GitErrorFails(t *testing.T) {
	e := newTestEnv(t)
	err := e.run("--staged")
	require.Error(t, err)
	assert.True(t, rperrors.IsKind(err, rperrors.KindGit))
}

func TestGenerate_ConflictingSources(t *testing.T) {
	tests := [][]string{
		{"--diff-file", "x.diff", "--staged"},
		{"--staged", "HEAD~1"},
		{"--from", "v1.0.0", "HEAD~1"},
	}
	for _, args := range tests {
		e := newTestEnv(t)
		assert.Error(t, e.run(args...), args)
	}
}

func TestGenerate_JSONReport(t *testing.T) {
	e := newTestEnv(t)
	path := e.writeFile(t, "change.diff", fixDiff)

	require.NoError(t, e.run("--diff-file", path, "--format", "json", "--current-version", "v1.2.3"))

	var r Report
	require.NoError(t, json.Unmarshal(e.stdout.Bytes(), &r), e.stdout.String())
	assert.Equal(t, "fix(auth): resolve issues in login.py", r.Message)
	assert.Equal(t, "fix", r.Type)
	assert.Equal(t, "auth", r.Scope)
	assert.Equal(t, "patch", r.ReleaseType)
	assert.Equal(t, "v1.2.4", r.NextVersion)
	assert.Equal(t, "template", r.Summary.Source)
	require.Len(t, r.Files, 1)
	assert.Equal(t, "src/auth/login.py", r.Files[0].Path)
	assert.Equal(t, 2, r.Files[0].Added)
	assert.Equal(t, 1, r.Files[0].Removed)
	require.NotEmpty(t, r.Trace)
	assert.Equal(t, "done", r.Trace[len(r.Trace)-1])
	assert.NotEmpty(t, r.RunID)
}

func TestGenerate_YAMLReport(t *testing.T) {
	e := newTestEnv(t)
	path := e.writeFile(t, "change.diff", readmeDiff)

	require.NoError(t, e.run("--diff-file", path, "-o", "yaml"))
	assert.Contains(t, e.stdout.String(), "docs: update documentation")
	assert.Contains(t, e.stdout.String(), "type: docs")
}

func TestGenerate_UnsupportedFormat(t *testing.T) {
	e := newTestEnv(t)
	assert.Error(t, e.run("--diff-file", e.writeFile(t, "c.diff", readmeDiff), "--format", "xml"))
}

func TestGenerate_Explain(t *testing.T) {
	e := newTestEnv(t)
	path := e.writeFile(t, "change.diff", testFileDiff)

	require.NoError(t, e.run("--diff-file", path, "--explain"))
	assert.Equal(t, "test(auth): add or update tests\n", e.stdout.String())

	out := e.stderr.String()
	for _, want := range []string{"Parse", "tests/test_auth.py", "Classify", "type=test", "Summarize", "source=template", "start -> parsed"} {
		assert.Contains(t, out, want)
	}
}

func TestGenerate_Copy(t *testing.T) {
	orig := writeClipboard
	t.Cleanup(func() { writeClipboard = orig })

	var copied string
	writeClipboard = func(s string) error {
		copied = s
		return nil
	}

	e := newTestEnv(t)
	require.NoError(t, e.run("--diff-file", e.writeFile(t, "c.diff", readmeDiff), "--copy"))
	assert.Equal(t, "docs: update documentation", copied)
	assert.Contains(t, e.stderr.String(), "Copied to clipboard")

	// clipboard failures only warn
	writeClipboard = func(string) error { return errors.New("no display") }
	e = newTestEnv(t)
	require.NoError(t, e.run("--diff-file", e.writeFile(t, "c.diff", readmeDiff), "--copy"))
	assert.Contains(t, e.stderr.String(), "could not copy to clipboard")
}

func TestGenerate_Body(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.run("--diff-file", e.writeFile(t, "c.diff", fixDiff), "--body"))
	assert.Equal(t, "fix(auth): resolve issues in login.py\n\n- src/auth/login.py (+2/-1)\n", e.stdout.String())
}

func TestGenerate_ConfigFile(t *testing.T) {
	e := newTestEnv(t)
	e.writeFile(t, ".commitgen.yaml", "commit:\n  include_body: true\n")

	require.NoError(t, e.run("--diff-file", e.writeFile(t, "c.diff", fixDiff)))
	assert.Contains(t, e.stdout.String(), "- src/auth/login.py (+2/-1)")
}

func TestGenerate_InvalidConfig(t *testing.T) {
	e := newTestEnv(t)
	e.writeFile(t, ".commitgen.yaml", "output:\n  format: xml\n")

	err := e.run("--diff-file", e.writeFile(t, "c.diff", readmeDiff))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.format")
}

func TestGenerate_SQLiteCache(t *testing.T) {
	e := newTestEnv(t)
	dbPath := filepath.Join(e.opts.Dir, "cache.db")
	e.writeFile(t, ".commitgen.yaml", "cache:\n  enabled: true\n  backend: sqlite\n  path: "+dbPath+"\n")
	diffPath := e.writeFile(t, "c.diff", readmeDiff)

	require.NoError(t, e.run("--diff-file", diffPath, "--format", "json"))
	var first Report
	require.NoError(t, json.Unmarshal(e.stdout.Bytes(), &first))
	assert.False(t, first.Cached)

	e.stdout.Reset()
	require.NoError(t, e.run("--diff-file", diffPath, "--format", "json"))
	var second Report
	require.NoError(t, json.Unmarshal(e.stdout.Bytes(), &second))
	assert.True(t, second.Cached)
	assert.Equal(t, first.Message, second.Message)
}

func TestGenerate_ModelFlag(t *testing.T) {
	e := newTestEnv(t)
	err := e.run("--diff-file", e.writeFile(t, "c.diff", readmeDiff), "--model", "mistral/large")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")

	e = newTestEnv(t)
	require.NoError(t, e.run("--diff-file", e.writeFile(t, "c.diff", readmeDiff), "--model", "none"))
	assert.Equal(t, "disabled", e.opts.Config.AI.Provider)
}

func TestParseModelFlag(t *testing.T) {
	tests := []struct {
		flag     string
		provider ai.Provider
		cloud    string
		model    string
		wantErr  bool
	}{
		{flag: ""},
		{flag: "ollama/llama3", provider: ai.ProviderLocal, model: "llama3"},
		{flag: "local/qwen2.5:7b", provider: ai.ProviderLocal, model: "qwen2.5:7b"},
		{flag: "openai/gpt-4o", provider: ai.ProviderCloud, cloud: "openai", model: "gpt-4o"},
		{flag: "claude/claude-3-5-haiku-latest", provider: ai.ProviderCloud, cloud: "anthropic", model: "claude-3-5-haiku-latest"},
		{flag: "gemini", provider: ai.ProviderCloud, cloud: "gemini"},
		{flag: "none", provider: ai.ProviderDisabled},
		{flag: "gpt-4o-mini", model: "gpt-4o-mini"},
		{flag: "acme/model", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			provider, cloud, model, err := parseModelFlag(tt.flag)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.cloud, cloud)
			assert.Equal(t, tt.model, model)
		})
	}
}

func TestLint(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{name: "valid", message: "feat(api): add pagination\n"},
		{name: "with comments", message: "# Please enter the commit message\nfix: handle nil config\n"},
		{name: "not conventional", message: "Added pagination\n", wantErr: true},
		{name: "unknown type", message: "feature: add pagination\n", wantErr: true},
		{name: "header too long", message: "feat: " + strings.Repeat("x", 80) + "\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			path := e.writeFile(t, "COMMIT_EDITMSG", tt.message)

			err := e.run("lint", path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, e.stderr.String(), "✗")
				return
			}
			require.NoError(t, err)
			assert.Contains(t, e.stderr.String(), "✓")
		})
	}
}

func TestLint_Stdin(t *testing.T) {
	e := newTestEnv(t)
	e.opts.Stdin = strings.NewReader("refactor(core)!: drop legacy api\n\nBREAKING CHANGE: v1 removed\n")
	require.NoError(t, e.run("lint"))
	assert.Contains(t, e.stderr.String(), "major release")
}

func TestInit(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.run("init"))

	path := filepath.Join(e.opts.Dir, ".commitgen.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "provider: disabled")
	assert.Contains(t, string(data), "max_header_length: 72")

	// second run keeps the existing file
	require.NoError(t, os.WriteFile(path, []byte("commit:\n  max_header_length: 50\n"), 0o600))
	require.NoError(t, e.run("init"))
	assert.Contains(t, e.stderr.String(), "already exists")
	data, _ = os.ReadFile(path)
	assert.Contains(t, string(data), "50")

	require.NoError(t, e.run("init", "--force"))
	data, _ = os.ReadFile(path)
	assert.Contains(t, string(data), "72")
}

func TestInit_TOML(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.run("init", "--format", "toml"))

	data, err := os.ReadFile(filepath.Join(e.opts.Dir, ".commitgen.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[commit]")

	assert.Error(t, newTestEnv(t).run("init", "--format", "ini"))
}

func TestVersion(t *testing.T) {
	e := newTestEnv(t)
	e.opts.SetVersion("1.4.0", "abc1234", "2026-01-01")

	require.NoError(t, e.run("version"))
	assert.Equal(t, "commitgen 1.4.0\n", e.stdout.String())

	e.stdout.Reset()
	require.NoError(t, e.run("version", "--verbose"))
	assert.Contains(t, e.stdout.String(), "commit: abc1234")
}
