package cache

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLite persists entries across runs in a single-table database.
type SQLite struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
	now    func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_expires_at ON messages(expires_at);`

// OpenSQLite opens or creates the cache database at path and removes
// expired entries.
func OpenSQLite(path string, ttl time.Duration) (*SQLite, error) {
	const op = "cache.OpenSQLite"

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, rperrors.CacheWrap(err, op, "create cache directory")
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, rperrors.CacheWrap(err, op, "open database")
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, rperrors.CacheWrap(err, op, "apply "+pragma)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, rperrors.CacheWrap(err, op, "migrate")
	}

	c := &SQLite{db: db, ttl: ttl, now: time.Now}
	if err := c.Prune(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Get returns the value for key if present and not expired.
func (c *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM messages WHERE key = ? AND expires_at > ?`,
		key, c.now().UnixNano(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, rperrors.CacheWrap(err, "cache.Get", "query")
	}
	c.hits.Add(1)
	return value, true, nil
}

// Set stores value under key, replacing any previous entry.
func (c *SQLite) Set(ctx context.Context, key string, value []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO messages (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, c.now().Add(c.ttl).UnixNano(),
	)
	if err != nil {
		return rperrors.CacheWrap(err, "cache.Set", "insert")
	}
	return nil
}

// Prune deletes expired entries.
func (c *SQLite) Prune(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM messages WHERE expires_at <= ?`, c.now().UnixNano()); err != nil {
		return rperrors.CacheWrap(err, "cache.Prune", "delete expired")
	}
	return nil
}

// Stats returns cache statistics. The entry count is zero when the database
// cannot be read.
func (c *SQLite) Stats() Stats {
	var n int
	_ = c.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	return Stats{
		Backend: BackendSQLite,
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Close closes the database.
func (c *SQLite) Close() error {
	return c.db.Close()
}
