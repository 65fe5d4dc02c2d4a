// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface.
//
// Connections come from a *sqlx.DB pool. Each request borrows one of
// them through Acquire and gives it back with Session.Close. SQL text
// is built with squirrel and rows are scanned into types.* structs by
// sqlx, using the db:"..." tags.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aanand-mishra/users-api/internal/config"
	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/jmoiron/sqlx"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	_ "github.com/mattn/go-sqlite3"
)

// schema creates the user_account, address and user_address tables.
//
//go:embed schema.sql
var schema string

// SQLite is the concrete implementation of storage.Store.
// A single *sqlx.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	db  *sqlx.DB
	obs *observer
}

var _ storage.Store = (*SQLite)(nil)

// New opens the SQLite database at cfg.StoragePath, applies the schema
// and returns a ready-to-use *SQLite.
//
// Foreign keys are switched on for every pooled connection so the
// ON DELETE CASCADE clauses on user_address are enforced.
//
// An in-memory database lives on a single connection: every new
// connection would open its own empty database. For such paths the
// pool is pinned to one connection that is never closed while idle.
func New(cfg *config.Config, opts ...Option) (*SQLite, error) {
	if err := ensureDir(cfg.StoragePath); err != nil {
		return nil, fmt.Errorf("sqlite.New: %w", err)
	}

	db, err := sqlx.Open("sqlite3", dsn(cfg.StoragePath))
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if isMemory(cfg.StoragePath) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	// CREATE ... IF NOT EXISTS is idempotent, so this is safe to run on
	// every startup.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: apply schema: %w", err)
	}

	s := &SQLite{db: db, obs: newObserver()}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Acquire borrows a dedicated connection from the pool for the lifetime
// of one request.
func (s *SQLite) Acquire(ctx context.Context) (storage.Session, error) {
	return s.acquire(ctx)
}

func (s *SQLite) acquire(ctx context.Context) (*Session, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("Acquire: conn: %w", err)
	}
	return &Session{conn: conn, obs: s.obs}, nil
}

// Ping verifies a connection to the database can be established.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("Ping: %w", err)
	}
	return nil
}

// Close closes the pool. Borrowed connections are closed as they are
// returned.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// dsn appends the driver parameters every connection needs:
// _foreign_keys enables referential actions, _busy_timeout makes
// concurrent writers wait for the lock instead of failing at once.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// isMemory reports whether path names an in-memory database, either
// ":memory:" or a URI with mode=memory.
func isMemory(path string) bool {
	file, query, _ := strings.Cut(path, "?")
	if file == ":memory:" || file == "file::memory:" {
		return true
	}
	values, err := url.ParseQuery(query)
	return err == nil && values.Get("mode") == "memory"
}

// ensureDir creates the parent directory of a file-backed database.
func ensureDir(path string) error {
	if isMemory(path) || strings.HasPrefix(path, "file:") {
		return nil
	}
	file, _, _ := strings.Cut(path, "?")
	dir := filepath.Dir(file)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return nil
}
