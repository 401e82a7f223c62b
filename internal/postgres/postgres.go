// Package postgres provides the PostgreSQL-backed settings repository.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS device_settings (
	device_id           TEXT PRIMARY KEY,
	monitored_packages  TEXT[] NOT NULL DEFAULT '{}',
	max_quota           INT NOT NULL,
	window_ms           BIGINT NOT NULL,
	breathing_sec       INT NOT NULL,
	quick_task_sec      INT NOT NULL,
	intention_default_ms BIGINT NOT NULL,
	timezone            TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Connect creates a pgx pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected", "max_conns", poolCfg.MaxConns)
	return pool, nil
}

// RunMigrations applies the schema. Idempotent, safe on every startup.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations applied")
	return nil
}
