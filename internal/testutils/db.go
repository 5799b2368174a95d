// Package testutils provides shared helpers for integration tests that need
// a real database. Tests run inside a transaction that is rolled back on
// cleanup, so they can run in parallel without interfering with each other
// and without leaving state behind.
package testutils

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault-api/migrations"
)

// migrationsOnce ensures migrations run at most once per test binary.
var migrationsOnce sync.Once

// IsIntegrationTestEnvironment reports whether a test database is available.
// Integration tests should skip when it returns false.
func IsIntegrationTestEnvironment() bool {
	return os.Getenv("DATABASE_URL") != ""
}

// GetTestDB opens a connection to the test database named by DATABASE_URL,
// applies migrations, and registers cleanup. Callers must have already
// checked IsIntegrationTestEnvironment.
func GetTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL environment variable is required for this test")
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, db.Ping(), "failed to ping test database")

	var migrateErr error
	migrationsOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		if migrateErr = goose.SetDialect("postgres"); migrateErr != nil {
			return
		}
		migrateErr = goose.Up(db, ".")
	})
	require.NoError(t, migrateErr, "failed to apply migrations to test database")

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	return db
}

// WithTx runs fn inside a transaction that is always rolled back, giving the
// test a private, self-cleaning view of the database.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "failed to begin test transaction")

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			t.Errorf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// MustInsertUser inserts a user directly and returns its assigned ID.
func MustInsertUser(t *testing.T, tx *sql.Tx, email, hashedPassword string) int64 {
	t.Helper()

	var id int64
	err := tx.QueryRowContext(
		context.Background(),
		`INSERT INTO users (email, hashed_password) VALUES ($1, $2) RETURNING id`,
		email, hashedPassword,
	).Scan(&id)
	require.NoError(t, err, "failed to insert test user")
	return id
}

// MustInsertTask inserts a task directly and returns its assigned ID.
func MustInsertTask(t *testing.T, tx *sql.Tx, ownerID int64, title, description string) int64 {
	t.Helper()

	desc := sql.NullString{String: description, Valid: description != ""}
	var id int64
	err := tx.QueryRowContext(
		context.Background(),
		`INSERT INTO tasks (title, description, owner_id) VALUES ($1, $2, $3) RETURNING id`,
		title, desc, ownerID,
	).Scan(&id)
	require.NoError(t, err, "failed to insert test task")
	return id
}
