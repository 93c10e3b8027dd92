//go:build integration

// Package pgtest starts a throwaway PostgreSQL container with the service
// schema applied. Only integration tests import it.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"purchases/db"
	"purchases/internal/infrastructure/storage/postgres"
)

// DB is a migrated test database.
type DB struct {
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	DSN       string
}

// New starts a PostgreSQL container, applies db.Schema and registers cleanup.
func New(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("purchases_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, db.Schema)
	require.NoError(t, err, "Failed to apply schema")

	return &DB{Pool: pool, TxManager: postgres.NewTxManager(pool), DSN: dsn}
}

// Count returns SELECT COUNT(*) of table filtered by where (may be empty).
func (d *DB) Count(t *testing.T, table, where string, args ...any) int {
	t.Helper()
	sql := "SELECT COUNT(*) FROM " + table
	if where != "" {
		sql += " WHERE " + where
	}
	var n int
	require.NoError(t, d.Pool.QueryRow(context.Background(), sql, args...).Scan(&n))
	return n
}
