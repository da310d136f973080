package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a Locker shared by every replica talking to the same Redis.
// Locks are plain keys set with NX and a PX expiry.
type RedisLock struct {
	client     redis.UniversalClient
	prefix     string
	pollEvery  time.Duration
	defaultTTL time.Duration
}

// RedisLockOption configures a RedisLock.
type RedisLockOption func(*RedisLock)

// WithLockPrefix namespaces lock keys.
func WithLockPrefix(p string) RedisLockOption {
	return func(l *RedisLock) { l.prefix = p }
}

// WithPollInterval sets how often a blocked Acquire retries.
func WithPollInterval(d time.Duration) RedisLockOption {
	return func(l *RedisLock) { l.pollEvery = d }
}

func NewRedisLock(client redis.UniversalClient, opts ...RedisLockOption) *RedisLock {
	l := &RedisLock{
		client:     client,
		prefix:     "pipelineapi:lock:",
		pollEvery:  25 * time.Millisecond,
		defaultTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire implements Locker.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ticker := time.NewTicker(l.pollEvery)
	defer ticker.Stop()
	for {
		release, ok, err := l.TryAcquire(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock for %s: %w", key, ctx.Err())
		}
	}
}

// TryAcquire implements Locker. Without a ttl the lock falls back to a
// default expiry so a crashed holder cannot wedge the key forever.
func (l *RedisLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	token := uuid.NewString()
	redisKey := l.prefix + key
	err := l.client.SetArgs(ctx, redisKey, token, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	release := func() {
		_ = releaseScript.Run(context.Background(), l.client, []string{redisKey}, token).Err()
	}
	return release, true, nil
}
