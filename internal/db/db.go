// Package db implements the bill store on PostgreSQL. Bills are stored as
// one row each with the participant list in a JSONB column, which gives the
// conditional-append semantics the service relies on without application
// locks.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nack098/adasplit/internal/config"
)

// Connect creates the PostgreSQL connection pool.
func Connect(ctx context.Context, cfg config.PostgreSQLConfig) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable search_path=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.Schema,
	)

	connectConf, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse PostgreSQL config: %w", err)
	}

	connectConf.MaxConns = int32(cfg.PoolMaxConns)
	connectConf.HealthCheckPeriod = 15 * time.Second
	connectConf.ConnConfig.ConnectTimeout = 5 * time.Second

	// Set timezone to PGX runtime
	if s := os.Getenv("TZ"); s != "" {
		connectConf.ConnConfig.RuntimeParams["timezone"] = s
	}

	pool, err := pgxpool.NewWithConfig(ctx, connectConf)
	if err != nil {
		return nil, fmt.Errorf("create PostgreSQL connection pool: %w", err)
	}

	slog.Info("Connected to PostgreSQL", "host", cfg.Host, "database", cfg.DBName)
	return pool, nil
}

// Migrate sets up the database schema. All statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("Starting database migration")

	billsSchema := `
    CREATE TABLE IF NOT EXISTS bills (
        id UUID PRIMARY KEY,
        creator_address TEXT NOT NULL,
        escrow_address TEXT NOT NULL,
        title VARCHAR(100) NOT NULL,
        description VARCHAR(500) NOT NULL DEFAULT '',
        total_amount NUMERIC(20, 6) NOT NULL,
        participant_count INT NOT NULL,
        amount_per_participant NUMERIC(20, 6) NOT NULL,
        currency VARCHAR(10) NOT NULL DEFAULT 'ADA',
        status VARCHAR(16) NOT NULL DEFAULT 'pending',
        participants JSONB NOT NULL DEFAULT '[]'::jsonb,
        settlement_tx_hash TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_bills_creator_address ON bills(creator_address, created_at DESC);
    CREATE INDEX IF NOT EXISTS idx_bills_status ON bills(status, created_at DESC);
    CREATE INDEX IF NOT EXISTS idx_bills_participants ON bills USING GIN (participants jsonb_path_ops);`
	if _, err := pool.Exec(ctx, billsSchema); err != nil {
		return fmt.Errorf("migrate bills table: %w", err)
	}

	slog.Info("Database migration completed")
	return nil
}
