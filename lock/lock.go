// Package lock provides the per-key mutual exclusion used around ETag
// bookkeeping, with in-process, Redis and PostgreSQL implementations.
package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// Locker serialises work on a key across goroutines or processes.
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done. A
	// positive ttl bounds how long the lock survives a crashed holder.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
	// TryAcquire returns acquired=false instead of waiting.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// InMemoryLock is a Locker for single-process deployments and tests.
type InMemoryLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu      sync.Mutex
	waiters chan struct{}
	held    bool
}

func NewInMemoryLock() *InMemoryLock {
	return &InMemoryLock{locks: make(map[string]*lockEntry)}
}

func (l *InMemoryLock) entry(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{waiters: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	return e
}

func (e *lockEntry) tryHold() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.held {
		return false
	}
	e.held = true
	return true
}

func (e *lockEntry) releaser(ctx context.Context, ttl time.Duration) func() {
	var once sync.Once
	release := func() {
		once.Do(func() {
			e.mu.Lock()
			e.held = false
			e.mu.Unlock()
			select {
			case e.waiters <- struct{}{}:
			default:
			}
		})
	}
	if ttl > 0 {
		go func() {
			timer := time.NewTimer(ttl)
			defer timer.Stop()
			select {
			case <-timer.C:
				release()
			case <-ctx.Done():
			}
		}()
	}
	return release
}

// Acquire implements Locker.
func (l *InMemoryLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	e := l.entry(key)
	for {
		if e.tryHold() {
			return e.releaser(ctx, ttl), nil
		}
		select {
		case <-e.waiters:
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock for %s: %w", key, ctx.Err())
		}
	}
}

// TryAcquire implements Locker.
func (l *InMemoryLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	e := l.entry(key)
	if !e.tryHold() {
		return nil, false, nil
	}
	return e.releaser(ctx, ttl), true, nil
}

// keyID maps a lock key onto the int64 space of advisory locks.
func keyID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
