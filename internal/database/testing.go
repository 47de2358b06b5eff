package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// PostgresTestDSNEnv names the variable holding a Postgres DSN for integration tests.
const PostgresTestDSNEnv = "KYOTEI_TEST_POSTGRES_DSN"

// SetupTestSQLite creates a migrated SQLite database in a temp directory.
// It is closed when the test finishes.
func SetupTestSQLite(t *testing.T) *SQLiteDB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewSQLiteDB(ctx, filepath.Join(t.TempDir(), "accuracy_tracker.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
	})
	return db
}

// SetupTestPostgres connects to the database named by KYOTEI_TEST_POSTGRES_DSN
// and empties both tables. The test is skipped when the variable is unset.
func SetupTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	dsn := os.Getenv(PostgresTestDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresTestDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := NewPostgresDBFromDSN(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if _, err := db.pool.Exec(ctx, "TRUNCATE predictions, results RESTART IDENTITY"); err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
