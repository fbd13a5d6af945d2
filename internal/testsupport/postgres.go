//go:build integration

// Package testsupport starts throwaway infrastructure for integration tests.
package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// StartPostgres launches a Postgres container, applies every *.up.sql
// migration and returns a pool closed when the test ends.
func StartPostgres(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("fittrack"),
		postgrescontainer.WithUsername("fittrack"),
		postgrescontainer.WithPassword("fittrack"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	runMigrations(ctx, t, pool)
	return pool
}

func runMigrations(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	migrationsDir := filepath.Join(filepath.Dir(file), "../../db/migrations")

	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "expected at least one migration .up.sql file")
	sort.Strings(files)

	for _, f := range files {
		contents, readErr := os.ReadFile(f)
		require.NoErrorf(t, readErr, "read migration %s", f)
		_, execErr := pool.Exec(ctx, string(contents))
		require.NoErrorf(t, execErr, "execute migration %s", f)
	}
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
