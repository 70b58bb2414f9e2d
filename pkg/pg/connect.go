package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool and pings it, retrying per cfg. The wait grows by
// ConnectBackoff after every failed attempt.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrBadConfig, err)
	}
	pc.MaxConns, pc.MinConns = cfg.MaxConns, cfg.MinConns
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.MaxConnLifetime = cfg.MaxConnLifetime

	var lastErr error
	for attempt := 1; attempt <= max(cfg.ConnectAttempts, 1); attempt++ {
		pool, err := open(ctx, pc)
		if err == nil {
			return pool, nil
		}
		lastErr = err

		t := time.NewTimer(time.Duration(attempt) * cfg.ConnectBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Join(ErrConnect, ctx.Err())
		case <-t.C:
		}
	}
	return nil, errors.Join(ErrConnect, lastErr)
}

func open(ctx context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Healthcheck adapts a pool to httpserver.Check.
func Healthcheck(p interface{ Ping(context.Context) error }) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Join(ErrUnhealthy, err)
		}
		return nil
	}
}
