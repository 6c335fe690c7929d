package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectDB initializes the Postgres connection pool.
func ConnectDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 0
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	slog.Info("connected to Postgres")
	return pool, nil
}

// EnsureSchema creates the saga, event-log and outbox tables if they do
// not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sagas (
			tx_id        TEXT PRIMARY KEY,
			status       TEXT NOT NULL,
			from_account TEXT NOT NULL,
			to_account   TEXT NOT NULL,
			amount       BIGINT NOT NULL,
			started      TIMESTAMPTZ NOT NULL,
			ended        TIMESTAMPTZ,
			duration_ms  BIGINT NOT NULL DEFAULT 0,
			history      JSONB NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS account_events (
			account_id TEXT NOT NULL,
			seq        INT NOT NULL,
			kind       TEXT NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (account_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			id         TEXT PRIMARY KEY,
			tx_id      TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
