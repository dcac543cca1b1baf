// Package cache stores generated commit messages keyed by diff hash so that
// repeated runs over the same change skip generation.
package cache

import (
	"context"
	"fmt"
	"time"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// DefaultTTL is how long entries live when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// Store is a best-effort key/value cache with expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Stats() Stats
	Close() error
}

// Stats describes cache usage.
type Stats struct {
	Backend string
	Entries int
	Hits    int64
	Misses  int64
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Path is the sqlite database file.
	Path string
	TTL  time.Duration
}

// Open creates the configured backend.
func Open(cfg Config) (Store, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(cfg.TTL), nil
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, rperrors.Config("cache.Open", "sqlite cache requires a path")
		}
		return OpenSQLite(cfg.Path, cfg.TTL)
	default:
		return nil, rperrors.Config("cache.Open", fmt.Sprintf("unknown cache backend %q", cfg.Backend))
	}
}
