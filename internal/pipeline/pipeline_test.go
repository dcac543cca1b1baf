package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/commitgen/internal/domain/changes"
	rperrors "github.com/relicta-tech/commitgen/internal/errors"
	"github.com/relicta-tech/commitgen/internal/infrastructure/ai"
	"github.com/relicta-tech/commitgen/internal/summary"
)

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}

var (
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

	readmeDiff = lines(
		"diff --git a/README.md b/README.md",
		"--- a/README.md",
		"+++ b/README.md",
		"@@ -1,2 +1,3 @@",
		" # commitgen",
		"+Generate conventional commit messages from diffs.",
		" ",
	)

	renameDiff = lines(
		"diff --git a/lib/old.go b/lib/new.go",
		"similarity index 100%",
		"rename from lib/old.go",
		"rename to lib/new.go",
	)

	breakingDiff = lines(
		"diff --git a/src/api/routes.go b/src/api/routes.go",
		"index 1111111..2222222 100644",
		"--- a/src/api/routes.go",
		"+++ b/src/api/routes.go",
		"@@ -1,3 +1,5 @@",
		" package api",
		" ",
		"+// BREAKING CHANGE: /v1 routes removed",
		"+func RegisterV2() {}",
		" func Register() {}",
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

type fakeGenerator struct {
	reply string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeGenerator) Generate(ctx context.Context, _ string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeGenerator) Name() string { return "fake/model" }

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = value
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T, cfg Config, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	return p
}

func TestPipeline_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		diff         string
		want         string
		wantDegraded bool
		wantTrace    []string
	}{
		{
			name:      "test file change",
			diff:      testFileDiff,
			want:      "test(auth): add or update tests",
			wantTrace: []string{"start", "parsed", "classified", "summarized", "formatted", "done"},
		},
		{
			name: "readme change",
			diff: readmeDiff,
			want: "docs: update documentation",
		},
		{
			name:         "pure rename",
			diff:         renameDiff,
			want:         "chore: update code",
			wantDegraded: true,
			wantTrace:    []string{"start", "parsed", "degraded", "done"},
		},
		{
			name: "explicit breaking marker",
			diff: breakingDiff,
			want: "feat(api)!: add new functionality in routes.go\n\nBREAKING CHANGE: /v1 routes removed",
		},
		{
			name: "fix keywords",
			diff: fixDiff,
			want: "fix(auth): resolve issues in login.py",
		},
	}

	p := newPipeline(t, DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Run(context.Background(), tt.diff)
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.Text())
			assert.Equal(t, tt.wantDegraded, res.Degraded)
			assert.NotEmpty(t, res.RunID)
			if tt.wantTrace != nil {
				assert.Equal(t, tt.wantTrace, res.Trace)
			}
			assert.Equal(t, "done", res.Trace[len(res.Trace)-1])
		})
	}
}

func TestPipeline_ParseError(t *testing.T) {
	p := newPipeline(t, DefaultConfig())

	res, err := p.Run(context.Background(), "hello world, this is not a diff")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, rperrors.IsKind(err, rperrors.KindParse))
}

func TestPipeline_EmptyInput(t *testing.T) {
	p := newPipeline(t, DefaultConfig())

	res, err := p.Run(context.Background(), "  \n\t\n")
	require.NoError(t, err)
	assert.Equal(t, "chore: update code", res.Text())
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Facts)
}

func TestPipeline_Deterministic(t *testing.T) {
	p := newPipeline(t, DefaultConfig())
	q := newPipeline(t, DefaultConfig())

	for _, d := range []string{testFileDiff, readmeDiff, renameDiff, breakingDiff, fixDiff} {
		a, err := p.Run(context.Background(), d)
		require.NoError(t, err)
		b, err := q.Run(context.Background(), d)
		require.NoError(t, err)

		assert.Equal(t, a.Text(), b.Text())
		assert.Equal(t, a.Classification, b.Classification)
		assert.Equal(t, a.Text(), a.Message.Render(), "render must be idempotent")
	}
}

func TestPipeline_HeaderLengthInvariant(t *testing.T) {
	long := lines(
		"diff --git a/src/authentication/session_manager_implementation.go b/src/authentication/session_manager_implementation.go",
		"--- a/src/authentication/session_manager_implementation.go",
		"+++ b/src/authentication/session_manager_implementation.go",
		"@@ -1,1 +1,2 @@",
		" package authentication",
		"+func Extra() {}",
	)
	gen := &fakeGenerator{reply: "add a remarkably long description that goes on well beyond any reasonable header budget for commits"}

	for _, max := range []int{1, 20, 40, 72} {
		p := newPipeline(t, Config{Provider: ai.ProviderLocal, MaxHeaderLength: max}, WithGenerator(gen))
		res, err := p.Run(context.Background(), long)
		require.NoError(t, err)

		limit := p.Config().MaxHeaderLength
		assert.LessOrEqual(t, utf8.RuneCountInString(res.Message.Header()), limit)
		assert.True(t, res.Message.Truncated())
		assert.False(t, res.Degraded)
	}
}

func TestPipeline_GeneratedSummary(t *testing.T) {
	gen := &fakeGenerator{reply: "fix: Handle expired sessions on login."}
	p := newPipeline(t, Config{Provider: ai.ProviderCloud}, WithGenerator(gen))

	res, err := p.Run(context.Background(), fixDiff)
	require.NoError(t, err)

	assert.Equal(t, "fix(auth): handle expired sessions on login", res.Text())
	assert.Equal(t, summary.SourceAI, res.Summary.Source)
	assert.False(t, res.Degraded)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestPipeline_FallbackContainment(t *testing.T) {
	baseline, err := newPipeline(t, DefaultConfig()).Run(context.Background(), fixDiff)
	require.NoError(t, err)

	failing := []*fakeGenerator{
		{err: errors.New("502 bad gateway")},
		{reply: ""},
		{reply: "slow", delay: time.Second},
	}
	for _, gen := range failing {
		cache := newMemCache()
		p := newPipeline(t, Config{Provider: ai.ProviderLocal, Timeout: 30 * time.Millisecond}, WithGenerator(gen), WithCache(cache))

		res, err := p.Run(context.Background(), fixDiff)
		require.NoError(t, err)

		assert.Equal(t, baseline.Text(), res.Text())
		assert.Equal(t, baseline.Classification.Type, res.Classification.Type)
		assert.Equal(t, baseline.Classification.Scope, res.Classification.Scope)
		assert.True(t, res.Summary.Fallback)
		assert.True(t, res.Degraded)
		assert.Contains(t, res.Trace, "degraded")
		assert.Zero(t, cache.sets, "degraded results are not cached")
	}
}

func TestPipeline_DisabledProviderIgnoresGenerator(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	p := newPipeline(t, DefaultConfig(), WithGenerator(gen))

	res, err := p.Run(context.Background(), fixDiff)
	require.NoError(t, err)
	assert.Equal(t, summary.SourceTemplate, res.Summary.Source)
	assert.Zero(t, gen.calls.Load())
	assert.False(t, ai.Available(p.Generator()))
}

func TestPipeline_CanceledContext(t *testing.T) {
	gen := &fakeGenerator{reply: "add things", delay: time.Second}
	p := newPipeline(t, Config{Provider: ai.ProviderLocal}, WithGenerator(gen))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Run(ctx, fixDiff)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Reasons, reasonCanceled)
	assert.Equal(t, "fix(auth): resolve issues in login.py", res.Text())
}

func TestPipeline_Cache(t *testing.T) {
	gen := &fakeGenerator{reply: "guard login against expired sessions"}
	cache := newMemCache()
	p := newPipeline(t, Config{Provider: ai.ProviderLocal, IncludeBody: true}, WithGenerator(gen), WithCache(cache))

	first, err := p.Run(context.Background(), fixDiff)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), fixDiff)
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text(), second.Text())
	assert.Equal(t, first.Classification.Type, second.Classification.Type)
	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, 1, cache.sets)
	assert.NotEqual(t, first.RunID, second.RunID)

	other := newPipeline(t, Config{Provider: ai.ProviderLocal, MaxHeaderLength: 30}, WithGenerator(gen), WithCache(cache))
	third, err := other.Run(context.Background(), fixDiff)
	require.NoError(t, err)
	assert.False(t, third.Cached, "a different configuration must not share entries")
}

func TestPipeline_CacheErrorsIgnored(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errors.New("disk on fire")
	p := newPipeline(t, DefaultConfig(), WithCache(cache))

	res, err := p.Run(context.Background(), readmeDiff)
	require.NoError(t, err)
	assert.Equal(t, "docs: update documentation", res.Text())

	cache.getErr = nil
	cache.entries = map[string][]byte{}
	key := p.cacheKey(readmeDiff)
	cache.entries[key] = []byte("{not json")
	res, err = p.Run(context.Background(), readmeDiff)
	require.NoError(t, err)
	assert.False(t, res.Cached)
}

func TestPipeline_CollapsesConcurrentRuns(t *testing.T) {
	gen := &fakeGenerator{reply: "guard login against expired sessions", delay: 50 * time.Millisecond}
	p := newPipeline(t, Config{Provider: ai.ProviderLocal}, WithGenerator(gen), WithCache(newMemCache()))

	var wg sync.WaitGroup
	texts := make([]string, 8)
	for i := range texts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Run(context.Background(), fixDiff)
			if err == nil {
				texts[i] = res.Text()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), gen.calls.Load())
	for _, text := range texts {
		assert.Equal(t, "fix(auth): guard login against expired sessions", text)
	}
}

func TestPipeline_CanceledCallerLeavesSharedRun(t *testing.T) {
	gen := &fakeGenerator{reply: "guard login against expired sessions", delay: 150 * time.Millisecond}
	p := newPipeline(t, Config{Provider: ai.ProviderLocal}, WithGenerator(gen))

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	var (
		wg         sync.WaitGroup
		resA, resB *Result
		errA, errB error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		resA, errA = p.Run(ctxA, fixDiff)
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		resB, errB = p.Run(context.Background(), fixDiff)
	}()
	time.Sleep(30 * time.Millisecond)
	cancelA()
	wg.Wait()

	require.NoError(t, errA)
	assert.True(t, resA.Degraded)
	assert.Contains(t, resA.Reasons, reasonCanceled)
	assert.Equal(t, "fix(auth): resolve issues in login.py", resA.Text())

	require.NoError(t, errB)
	assert.False(t, resB.Degraded, "reasons: %v", resB.Reasons)
	assert.Empty(t, resB.Reasons)
	assert.Equal(t, "fix(auth): guard login against expired sessions", resB.Text())
	assert.Equal(t, int32(1), gen.calls.Load())
}

type closingGenerator struct {
	fakeGenerator
	closed int
}

func (c *closingGenerator) Close() error {
	c.closed++
	return nil
}

func TestPipeline_RenameKeepsPathScope(t *testing.T) {
	scoped := lines(
		"diff --git a/src/auth/old.go b/src/auth/new.go",
		"similarity index 100%",
		"rename from src/auth/old.go",
		"rename to src/auth/new.go",
	)
	tests := map[string]string{
		renameDiff: "chore: update code",
		scoped:     "chore(auth): update code",
	}
	p := newPipeline(t, DefaultConfig())
	for in, want := range tests {
		res, err := p.Run(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, want, res.Text())
		assert.True(t, res.Degraded)
	}
}

func TestPipeline_CloseReleasesGenerator(t *testing.T) {
	gen := &closingGenerator{fakeGenerator: fakeGenerator{reply: "add things"}}
	p := newPipeline(t, Config{Provider: ai.ProviderLocal}, WithGenerator(gen))
	require.NoError(t, p.Close())
	assert.Equal(t, 1, gen.closed)

	require.NoError(t, newPipeline(t, DefaultConfig()).Close())
}

func TestPipeline_NeverCrashes(t *testing.T) {
	inputs := []string{
		"diff --git",
		"diff --git a/x b/x\n",
		"--- a/x\n+++ b/x\n",
		"@@ -1 +1 @@\n-a\n+b\n",
		"--- a/x\n+++ b/x\n@@ -1,100 +1,100 @@\n+only\n",
		"diff --git a/\"quoted name.go\" b/\"quoted name.go\"\n--- a/\"quoted name.go\"\n+++ b/\"quoted name.go\"\n",
		"Binary files a/logo.png and b/logo.png differ\n",
		"\x00\x01\x02",
		strings.Repeat("+", 5000),
	}

	p := newPipeline(t, Config{MaxHeaderLength: 25})
	for _, in := range inputs {
		res, err := p.Run(context.Background(), in)
		if err != nil {
			assert.True(t, rperrors.IsKind(err, rperrors.KindParse), "input %q: %v", in, err)
			continue
		}
		assert.LessOrEqual(t, utf8.RuneCountInString(res.Message.Header()), 25, "input %q", in)
		assert.True(t, res.Message.Type().IsValid())
	}
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "remote"})
	require.Error(t, err)
	assert.True(t, rperrors.IsKind(err, rperrors.KindConfig))
}

func TestNew_BuildsGeneratorFromProvider(t *testing.T) {
	p := newPipeline(t, Config{Provider: ai.ProviderLocal})
	assert.True(t, strings.HasPrefix(p.Generator().Name(), "ollama/"))
	assert.Equal(t, changes.DefaultMaxHeaderLength, p.Config().MaxHeaderLength)
}
