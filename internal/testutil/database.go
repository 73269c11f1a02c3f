package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fairdial/leadline-backend/internal/infrastructure/config"
	"github.com/fairdial/leadline-backend/internal/infrastructure/database"
	"github.com/fairdial/leadline-backend/internal/testutil/containers"
)

// TestDB is a containerized postgres with the production migrations
// applied. Starting one costs a few seconds, so suites share a single
// TestDB and call Reset between tests.
type TestDB struct {
	t    *testing.T
	Pool *database.Pool
	URL  string
}

// NewTestDB starts postgres, migrates it, and opens the application pool.
// Everything is torn down through t.Cleanup.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := containers.NewPostgresContainer(ctx)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		termCtx, termCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer termCancel()
		if err := pg.Terminate(termCtx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	MigrateUp(t, pg.ConnectionString)

	pool, err := database.NewPool(ctx, &config.DatabaseConfig{
		URL:      pg.ConnectionString,
		MaxConns: 8,
	}, zap.NewNop())
	require.NoError(t, err, "open database pool")
	t.Cleanup(pool.Close)

	return &TestDB{t: t, Pool: pool, URL: pg.ConnectionString}
}

// MigrateUp applies every migration from the repository migrations
// directory, the same files cmd/migrate ships.
func MigrateUp(t *testing.T, url string) {
	t.Helper()

	db, err := sql.Open("postgres", url)
	require.NoError(t, err, "open migration connection")
	defer db.Close()

	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	require.NoError(t, err, "init migration driver")

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir(t), "postgres", driver)
	require.NoError(t, err, "init migrator")
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("apply migrations: %v", err)
	}
}

// migrationsDir resolves the migrations directory relative to this source
// file so callers work from any package.
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok, "resolve caller path")
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

// Reset empties the routing tables. The schema and enum types survive, so
// the container cost is paid once per suite.
func (db *TestDB) Reset(ctx context.Context) {
	db.t.Helper()
	_, err := db.Pool.Exec(ctx,
		`TRUNCATE assignments, daily_counters, rr_pointers, caller_states, leads, callers CASCADE`)
	require.NoError(db.t, err)
}
