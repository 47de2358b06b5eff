package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/yourusername/kyotei-predictor/internal/config"
)

// TimestampLayout is how timestamps are stored in SQLite. It is fixed width
// and always UTC so text comparison orders the same as time comparison.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteDB wraps a database/sql handle on a single SQLite file
type SQLiteDB struct {
	db   *sql.DB
	path string
}

// NewSQLiteDB opens (and creates if needed) the SQLite database at path.
// ":memory:" opens a private in-memory database.
func NewSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &SQLiteDB{db: db, path: path}, nil
}

// Driver returns the configured driver name
func (s *SQLiteDB) Driver() string {
	return config.DriverSQLite
}

// Path returns the database file path
func (s *SQLiteDB) Path() string {
	return s.path
}

// Ping verifies database connectivity
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate creates the predictions and results tables if they do not exist.
// The statements apply in a single transaction.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range sqliteSchema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}

// WithTransaction runs fn inside a transaction with automatic rollback on error
func (s *SQLiteDB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SQL returns the underlying handle
func (s *SQLiteDB) SQL() *sql.DB {
	return s.db
}

// FormatTimestamp renders t in the stored text form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a stored timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// IsSQLiteUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY violation.
func IsSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
