package e2e_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	pgOnce    sync.Once
	pgDSN     string
	pgErr     error
	pgCleanup func()
)

// postgresBackend returns a backend on a PostgreSQL container shared by
// every test in the run. Stacks keep apart through their own table names.
func postgresBackend(t *testing.T) backend {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres e2e in short mode")
	}

	pgOnce.Do(func() {
		ctx := context.Background()

		container, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("sitehost"),
			pgcontainer.WithUsername("sitehost"),
			pgcontainer.WithPassword("sitehost"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			pgErr = err
			return
		}
		pgCleanup = func() { _ = testcontainers.TerminateContainer(container) }

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			pgErr = err
			return
		}

		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			pgErr = err
			return
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			pgErr = err
			return
		}
		pgDSN = dsn
	})

	if pgErr != nil {
		t.Fatalf("failed to start postgres container: %v", pgErr)
	}
	return backend{dbType: "postgres", dsn: pgDSN}
}
