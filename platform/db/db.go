// Package db opens the PostgreSQL pool and applies the embedded migrations.
package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"govcon_outreach_backend/platform/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Application names reported in pg_stat_activity, one per binary.
const (
	AppAPI          = "govcon-api"
	AppScheduler    = "govcon-scheduler"
	AppRegistrySync = "govcon-registry-sync"
)

// NewPool opens a pool tagged with appName and checks it with a ping.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := PoolConfig(cfg, appName)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open %s pool: %w", appName, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PoolConfig parses the database URL and applies the pool limits. Sync runs
// hold a connection per upsert worker, so MaxConns comes from config while
// the idle floor stays small. Every session gets the configured statement
// timeout so one stuck sync query cannot hold a row lock indefinitely.
func PoolConfig(cfg config.DatabaseConfig, appName string) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	maxConns := int32(max(cfg.GetDatabaseMaxConns(), 1))
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = min(2, maxConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 15 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	params := poolConfig.ConnConfig.RuntimeParams
	if appName != "" {
		params["application_name"] = appName
	}
	if timeout := cfg.GetDatabaseStatementTimeout(); timeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(timeout.Milliseconds(), 10)
	}

	return poolConfig, nil
}
