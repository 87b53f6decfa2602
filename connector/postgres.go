package connector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/Konsultn-Engineering/txscope/database"
	"github.com/Konsultn-Engineering/txscope/logging"
)

// PgxPoolConfig translates c into a pgxpool configuration with pool defaults
// applied.
func (c Config) PgxPoolConfig() (*pgxpool.Config, error) {
	cfg := c.withDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = int32(cfg.Pool.MaxOpen)
	poolCfg.MinConns = int32(min(cfg.Pool.MaxIdle, cfg.Pool.MaxOpen))
	poolCfg.MaxConnLifetime = cfg.Pool.MaxLifetime
	poolCfg.MaxConnIdleTime = cfg.Pool.MaxIdleTime
	if cfg.Pool.HealthCheckFreq > 0 {
		poolCfg.HealthCheckPeriod = cfg.Pool.HealthCheckFreq
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	return poolCfg, nil
}

// Open validates cfg, creates a pgx pool and verifies it with a ping,
// retrying according to cfg.Retry. Connection errors are returned as the
// driver reported them.
func Open(ctx context.Context, cfg Config) (*database.PgxPool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	poolCfg, err := cfg.PgxPoolConfig()
	if err != nil {
		return nil, err
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	var pool *pgxpool.Pool
	connect := func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	}

	if cfg.Retry != nil {
		err = retryConnect(ctx, cfg.Retry, connect)
	} else {
		err = connect(ctx)
	}
	if err != nil {
		logging.Warn().Err(err).Str("host", poolCfg.ConnConfig.Host).Msg("postgres connection failed")
		return nil, err
	}

	logging.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Str("database", poolCfg.ConnConfig.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("postgres pool ready")

	return database.NewPgxPool(pool), nil
}

// OpenSQL opens a pgx pool and exposes it through database/sql.
func OpenSQL(ctx context.Context, cfg Config) (*database.SQLPool, error) {
	pool, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return database.NewSQLPool(stdlib.OpenDBFromPool(pool.Raw()), nil), nil
}

// Connect opens cfg and registers the pool under name in r.
func Connect(ctx context.Context, r *Registry, name string, cfg Config) (*database.PgxPool, error) {
	pool, err := Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool %s: %w", name, err)
	}
	r.Register(name, pool)
	return pool, nil
}

// Health pings every registered pool that supports it and returns the first
// failure.
func Health(ctx context.Context, r *Registry) error {
	for _, name := range r.Names() {
		pool, err := r.Pool(name)
		if err != nil {
			continue
		}
		pinger, ok := pool.(interface{ Ping(context.Context) error })
		if !ok {
			continue
		}
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("pool %s: %w", name, err)
		}
	}
	return nil
}
