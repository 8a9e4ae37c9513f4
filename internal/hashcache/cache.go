// Package hashcache persists computed fingerprints in SQLite so repeat runs
// over the same files skip the decode and hash work. Entries are keyed by
// file content digest plus (algorithm, version): a changed file or a bumped
// algorithm version never serves a stale hash.
package hashcache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"meeple/internal/imagehash"
	"meeple/internal/logging"
)

// Cache stores hashes in a SQLite database. A Cache opened with an empty
// path is disabled: every lookup misses and every store is a no-op, so
// callers never branch on whether caching is configured.
type Cache struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS hashes (
    file_digest TEXT NOT NULL,
    algorithm   TEXT NOT NULL,
    version     TEXT NOT NULL,
    bits        INTEGER NOT NULL,
    value_hex   TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    PRIMARY KEY (file_digest, algorithm, version)
);
`

// Option configures a Cache.
type Option func(*Cache)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "hashcache")
		}
	}
}

// Open connects to (or creates) the cache database. An empty path returns a
// disabled cache.
func Open(path string, opts ...Option) (*Cache, error) {
	c := &Cache{path: path, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if path == "" {
		return c, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	c.lock = flock.New(path + ".lock")
	if err := c.lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	c.db = db
	return c, nil
}

// Enabled reports whether the cache is backed by a database.
func (c *Cache) Enabled() bool {
	return c != nil && c.db != nil
}

// Close releases the database handle. Safe on a disabled cache.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.db.Close()
}

// Path returns the database file path, empty when disabled.
func (c *Cache) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// FileDigest returns the hex SHA-256 of a file's content, the cache key for
// that file.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get looks up a stored hash. The second return is false on a miss or when
// the cache is disabled.
func (c *Cache) Get(ctx context.Context, fileDigest, algorithm, version string) (imagehash.Hash, bool, error) {
	if !c.Enabled() {
		return imagehash.Hash{}, false, nil
	}
	ctx = ensureContext(ctx)

	var bits int
	var valueHex string
	err := c.db.QueryRowContext(ctx,
		`SELECT bits, value_hex FROM hashes WHERE file_digest = ? AND algorithm = ? AND version = ?`,
		fileDigest, algorithm, version,
	).Scan(&bits, &valueHex)
	if errors.Is(err, sql.ErrNoRows) {
		return imagehash.Hash{}, false, nil
	}
	if err != nil {
		return imagehash.Hash{}, false, fmt.Errorf("cache lookup: %w", err)
	}

	hash, err := imagehash.FromHex(algorithm, version, bits, valueHex)
	if err != nil {
		// A corrupt row must not poison runs; treat it as a miss and let
		// the fresh value overwrite it.
		c.logger.Warn("discarding corrupt cache row",
			logging.String("digest", fileDigest),
			logging.Error(err),
		)
		return imagehash.Hash{}, false, nil
	}
	return hash, true, nil
}

// Put stores one hash, replacing any previous entry for the same key.
func (c *Cache) Put(ctx context.Context, fileDigest string, hash imagehash.Hash) error {
	if !c.Enabled() {
		return nil
	}
	if fileDigest == "" {
		return errors.New("file digest required")
	}
	ctx = ensureContext(ctx)
	return execWithRetry(ctx, c.db,
		`INSERT OR REPLACE INTO hashes (file_digest, algorithm, version, bits, value_hex, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fileDigest, hash.Algorithm, hash.Version, hash.Bits, hash.Hex(), time.Now().UTC().Format(time.RFC3339),
	)
}

// Stats summarizes cache contents for the CLI.
type Stats struct {
	Path    string
	Entries int64
	// PerAlgorithm counts entries by "algorithm/version".
	PerAlgorithm map[string]int64
}

// Snapshot reports entry counts. Disabled caches report zero entries.
func (c *Cache) Snapshot(ctx context.Context) (Stats, error) {
	stats := Stats{Path: c.Path(), PerAlgorithm: make(map[string]int64)}
	if !c.Enabled() {
		return stats, nil
	}
	ctx = ensureContext(ctx)

	rows, err := c.db.QueryContext(ctx,
		`SELECT algorithm, version, COUNT(*) FROM hashes GROUP BY algorithm, version ORDER BY algorithm, version`)
	if err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var algorithm, version string
		var count int64
		if err := rows.Scan(&algorithm, &version, &count); err != nil {
			return stats, err
		}
		stats.PerAlgorithm[algorithm+"/"+version] = count
		stats.Entries += count
	}
	return stats, rows.Err()
}

// Clear removes every entry. The flock is held for the duration so a clear
// never races another process's writes.
func (c *Cache) Clear(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	ctx = ensureContext(ctx)

	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()

	if err := execWithRetry(ctx, c.db, `DELETE FROM hashes`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	c.logger.Info("cache cleared", logging.String("path", c.path))
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func execWithRetry(ctx context.Context, db *sql.DB, query string, args ...any) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
