package authz

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

// testPostgresEnv names the DSN consulted by database-backed tests.
const testPostgresEnv = "AUTHD_TEST_POSTGRES"

// RequireDatabase opens the Postgres instance named by
// AUTHD_TEST_POSTGRES and skips the test when none is configured or
// reachable. The connection is closed when the test finishes; callers
// run migrations themselves so each test controls its schema setup.
func RequireDatabase(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv(testPostgresEnv)
	if dsn == "" {
		t.Skipf("set %s to run database tests", testPostgresEnv)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Skipf("open test database: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("test database not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}
