package snapshot

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps the Postgres connection pool behind nil-safe methods. The
// pool is optional; deployments without a DATABASE_URL run on the
// filesystem store instead, and a nil *Pool pings as healthy.
type Pool struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*Pool, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	// Verify connectivity early.
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}

	return &Pool{pool: p}, nil
}

func (p *Pool) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return nil
	}
	return p.pool.Ping(ctx)
}

// DB exposes the underlying pool for query execution. Nil-safe; callers
// must treat a nil result as "no database configured".
func (p *Pool) DB() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.pool
}
