// Package database connects to the Postgres record store and applies its schema.
//
// Postgres is an alternative to DynamoDB for the artifact records (RECORD_STORE=postgres).
// The schema lives in migrations/ and is embedded in the binary; it is applied with
// goose, either at server startup or with `download-server migrate`.
package database

import (
	"context"
	"fmt"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates a connection pool from the DATABASE_URL and DB_* settings and checks it is reachable.
func NewPool(ctx context.Context, cfg *config.ServerEnvironment) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.DBMaxConnections
	poolConfig.MinConns = cfg.DBMinConnections
	poolConfig.MaxConnLifetime = cfg.DBMaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.DBMaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.DBConnectTimeout

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DatabasePingTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database via pool: %w", err)
	}
	return pool, nil
}

// IsDatabaseRunning is used by the readiness check.
func IsDatabaseRunning(ctx context.Context, pool *pgxpool.Pool) error {
	var one int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	return nil
}
