package cache

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		backend string
		wantErr bool
	}{
		{name: "default is memory", cfg: Config{}, backend: BackendMemory},
		{name: "sqlite", cfg: Config{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "nested", "cache.db")}, backend: BackendSQLite},
		{name: "sqlite without path", cfg: Config{Backend: BackendSQLite}, wantErr: true},
		{name: "unknown backend", cfg: Config{Backend: "redis"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, rperrors.IsKind(err, rperrors.KindConfig))
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			assert.Equal(t, tt.backend, store.Stats().Backend)
		})
	}
}

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c.now = clk.now

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte(`{"type":"fix"}`)
	require.NoError(t, c.Set(ctx, "k", value))
	value[0] = 'X'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"type":"fix"}`, string(got), "stored value must not alias the caller's slice")

	clk.t = clk.t.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok, "entry should expire")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Zero(t, stats.Entries)
}

func TestMemory_CleanupAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c.now = clk.now

	require.NoError(t, c.Set(ctx, "old", []byte("1")))
	clk.t = clk.t.Add(90 * time.Second)
	require.NoError(t, c.Set(ctx, "new", []byte("2")))
	require.NoError(t, c.Set(ctx, "gone", []byte("3")))

	c.Cleanup()
	assert.Equal(t, 2, c.Stats().Entries)

	c.Invalidate("gone")
	assert.Equal(t, 1, c.Stats().Entries)

	require.NoError(t, c.Close())
	assert.Zero(t, c.Stats().Entries)
}

func TestSQLite_Roundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := OpenSQLite(path, time.Hour)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "abc", []byte("first")))
	require.NoError(t, c.Set(ctx, "abc", []byte("second")))

	got, ok, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", string(got))
	assert.Equal(t, 1, c.Stats().Entries)
	require.NoError(t, c.Close())

	// entries survive reopening
	c, err = OpenSQLite(path, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	got, ok, err = c.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", string(got))
}

func TestSQLite_Expiry(t *testing.T) {
	ctx := context.Background()
	c, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c.now = clk.now

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	clk.t = clk.t.Add(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Prune(ctx))
	assert.Zero(t, c.Stats().Entries)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestSQLite_OpenFailure(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(string, string) (*sql.DB, error) {
		return nil, errors.New("driver unavailable")
	}

	_, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	require.Error(t, err)
	assert.True(t, rperrors.IsKind(err, rperrors.KindCache))
}
