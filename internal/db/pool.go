package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the Postgres pool for one process. Zero values keep the
// defaults below.
type PoolOptions struct {
	// AppName is reported as application_name so the api, bot and worker
	// can be told apart in pg_stat_activity.
	AppName  string
	MaxConns int32
}

const defaultMaxConns = 10

// Connect opens the Postgres pool used by the economy store and checks it
// with a ping.
func Connect(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(databaseURL, opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

func poolConfig(databaseURL string, opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	// Chat traffic is bursty but small.
	cfg.MaxConns = defaultMaxConns
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	params := cfg.ConnConfig.RuntimeParams
	if opts.AppName != "" {
		params["application_name"] = opts.AppName
	}
	// Every economy query is schema qualified; this covers ad hoc ones.
	if _, ok := params["search_path"]; !ok {
		params["search_path"] = "economy,public"
	}
	return cfg, nil
}
