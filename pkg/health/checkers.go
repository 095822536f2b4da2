package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GoroutineCountCheck fails when the process runs more than limit goroutines.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds %d", n, limit)
		}
		return nil
	}
}

// PoolCheck pings the database through pool.
func PoolCheck(pool *pgxpool.Pool) CheckFunc {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// PoolSaturationCheck fails when every pool connection is checked out and
// callers are queueing for one.
func PoolSaturationCheck(pool *pgxpool.Pool) CheckFunc {
	return func(context.Context) error {
		s := pool.Stat()
		if s.AcquiredConns() >= s.MaxConns() && s.EmptyAcquireCount() > 0 {
			return errors.Errorf("pool saturated: %d/%d connections acquired", s.AcquiredConns(), s.MaxConns())
		}
		return nil
	}
}
