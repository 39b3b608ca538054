// Package store persists Fieldline's state: tenants, admin accounts, API
// keys, rate-limit counters, and the CRM records the gateway tools operate
// on. SQLite (via modernc) is the default backend; a Postgres DSN selects
// the pgx driver instead. Rate-limit counters live here rather than in
// process memory so that correctness survives horizontal scaling.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store wraps the shared relational database.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New opens a store using the given driver ("sqlite" or "postgres") and DSN,
// and runs migrations. For sqlite, pass ":memory:" for an in-memory database.
func New(driver, dsn string) (*Store, error) {
	var db *sqlx.DB
	var err error

	switch driver {
	case "sqlite":
		if dsn == ":memory:" {
			dsn = ":memory:?_journal_mode=WAL"
		} else {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
		db, err = sqlx.Connect("sqlite", dsn)
		if err == nil {
			// SQLite doesn't support concurrent writers; a single
			// connection also serializes the rate-counter upsert.
			db.SetMaxOpenConns(1)
			if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
				return nil, fmt.Errorf("enable foreign keys: %w", err)
			}
		}
	case "postgres":
		db, err = sqlx.Connect("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q (want sqlite or postgres)", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// OpenDir opens a file-backed SQLite store under dataDir, creating the
// directory if needed. Used by the CLI when no DSN is configured.
func OpenDir(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return New("sqlite", filepath.Join(dataDir, "fieldline.db"))
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind converts '?' placeholders to the driver's bindvar style.
func (s *Store) rebind(q string) string {
	return s.db.Rebind(q)
}
