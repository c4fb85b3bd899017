// Package sqlite persists console entities as JSON documents in a local
// SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/repository"
)

const (
	sqliteDriverName   = "sqlite"
	defaultBusyTimeout = 5 * time.Second
)

var migrations = [...]string{
	`CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS destinations (
		id TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS job_history (
		id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		body BLOB NOT NULL,
		PRIMARY KEY (job_id, id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_job_history_started ON job_history(job_id, started_at);`,
	`CREATE TABLE IF NOT EXISTS job_logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		history_id TEXT NOT NULL,
		body BLOB NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_job_logs_run ON job_logs(job_id, history_id, seq);`,
	`CREATE TABLE IF NOT EXISTS releases (
		version TEXT PRIMARY KEY,
		published_at INTEGER NOT NULL,
		body BLOB NOT NULL
	);`,
}

// DB wraps the SQLite connection.
type DB struct {
	sql *sql.DB
}

// Open creates the database file at path when missing and applies the
// schema.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("sqlite: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("sqlite: ensure data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", filepath.ToSlash(path), int(defaultBusyTimeout/time.Millisecond))
	conn, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;"} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("sqlite: configure: %w", err)
		}
	}
	for _, stmt := range migrations {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("sqlite: apply migration: %w", err)
		}
	}
	return &DB{sql: conn}, nil
}

// Close shuts down the connection.
func (db *DB) Close() error {
	if db == nil || db.sql == nil {
		return nil
	}
	return db.sql.Close()
}

// PingContext checks the connection.
func (db *DB) PingContext(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// NewBackend assembles a backend over db. Closing the backend closes db.
func NewBackend(db *DB, opts ...Option) repository.Backend {
	return repository.Backend{
		Name:         "sqlite",
		Sources:      NewTable[domain.Source](db, "sources", opts...),
		Destinations: NewTable[domain.Destination](db, "destinations", opts...),
		Jobs:         NewTable[domain.Job](db, "jobs", opts...),
		JobLog:       &JobLog{db: db},
		Releases:     &Releases{db: db},
		Close:        db.Close,
	}
}

// Option configures tables.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDs overrides id generation.
func WithIDs(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

// codeError matches modernc.org/sqlite error types exposed by the driver.
type codeError interface {
	Code() int
}

func isConstraint(err error) bool {
	var coder codeError
	if errors.As(err, &coder) {
		return coder.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func defaultOptions(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
