// Package tzcache keeps a small on-disk map from symbol to exchange time zone.
//
// The database is shared by every worker of a run. It is created once by the
// parent before fan-out, under an inter-process file lock, so that concurrent
// runs (matrix jobs on one runner) never race on schema creation.
package tzcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const (
	// DBName is the database file created inside the cache directory.
	DBName = "tkr-tz.db"

	lockRetryDelay = 100 * time.Millisecond
)

const schema = `CREATE TABLE IF NOT EXISTS _tz_kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Store is a symbol → IANA time zone cache backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}

	dsn := "file:" + filepath.Join(dir, DBName) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", DBName, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tz table: %w", err)
	}
	return &Store{db: db}, nil
}

// Prepare creates the cache in dir while holding <dir>/tkr-tz.db.lock.
// It waits at most timeout for the lock.
func Prepare(ctx context.Context, dir string, timeout time.Duration, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}

	lock := flock.New(filepath.Join(dir, DBName+".lock"))
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("locking %s: not acquired within %s", lock.Path(), timeout)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("releasing cache lock", "path", lock.Path(), "error", err)
		}
	}()

	s, err := Open(dir)
	if err != nil {
		return nil, err
	}
	logger.Debug("timezone cache ready", "path", filepath.Join(dir, DBName))
	return s, nil
}

// Lookup returns the cached zone for symbol.
func (s *Store) Lookup(ctx context.Context, symbol string) (string, bool) {
	var tz string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM _tz_kv WHERE key = ?`, symbol).Scan(&tz)
	if err != nil {
		return "", false
	}
	return tz, tz != ""
}

// All returns every cached symbol and its zone.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM _tz_kv`)
	if err != nil {
		return nil, fmt.Errorf("reading tz table: %w", err)
	}
	defer rows.Close()

	zones := make(map[string]string)
	for rows.Next() {
		var symbol, tz string
		if err := rows.Scan(&symbol, &tz); err != nil {
			return nil, fmt.Errorf("scanning tz row: %w", err)
		}
		zones[symbol] = tz
	}
	return zones, rows.Err()
}

// Save records the zone for symbol, replacing any earlier value.
func (s *Store) Save(ctx context.Context, symbol, tz string) error {
	if symbol == "" || tz == "" {
		return errors.New("symbol and zone are required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO _tz_kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, symbol, tz)
	if err != nil {
		return fmt.Errorf("saving zone for %s: %w", symbol, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
