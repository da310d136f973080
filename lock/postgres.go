package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGAdvisoryLock is a Locker backed by session-level PostgreSQL advisory
// locks. Each held lock pins one pooled connection until released; ttl is
// not supported and the lock lasts until release or session end.
type PGAdvisoryLock struct {
	pool *pgxpool.Pool
}

func NewPGAdvisoryLock(pool *pgxpool.Pool) *PGAdvisoryLock {
	return &PGAdvisoryLock{pool: pool}
}

// Acquire implements Locker.
func (l *PGAdvisoryLock) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection for %s: %w", key, err)
	}
	id := keyID(key)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", id); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire lock for %s: %w", key, err)
	}
	return unlocker(conn, id), nil
}

// TryAcquire implements Locker.
func (l *PGAdvisoryLock) TryAcquire(ctx context.Context, key string, _ time.Duration) (func(), bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock connection for %s: %w", key, err)
	}
	id := keyID(key)
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try lock for %s: %w", key, err)
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	return unlocker(conn, id), true, nil
}

func unlocker(conn *pgxpool.Conn, id int64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", id)
			conn.Release()
		})
	}
}
