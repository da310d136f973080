// Package cache keeps the content hashes behind pipeline ETags.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/GoCodeAlone/pipelineapi/lock"
)

// Store holds content hashes by key. Entries are overwritten, never evicted.
type Store interface {
	Get(ctx context.Context, key string) (hash string, ok bool, err error)
	Set(ctx context.Context, key, hash string) error
}

// Key returns the cache key for a pipeline name.
func Key(pipelineName string) string { return strings.ToLower(pipelineName) }

// Fingerprint hashes the canonical encoding of a document.
func Fingerprint(canonical []byte) string {
	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:])
}

// HeaderValue turns a stored hash into the quoted ETag header value.
func HeaderValue(hash string) string {
	sum := md5.Sum([]byte(hash))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// Matches reports whether an If-None-Match header names etag. Quoted and
// bare values, weak validators, comma separated lists and "*" are all
// accepted.
func Matches(header, etag string) bool {
	want := strings.Trim(etag, `"`)
	for _, candidate := range strings.Split(header, ",") {
		c := strings.TrimSpace(candidate)
		if c == "" {
			continue
		}
		if c == "*" {
			return true
		}
		c = strings.TrimPrefix(c, "W/")
		if strings.Trim(c, `"`) == want {
			return true
		}
	}
	return false
}

// MatchesStrong reports whether an If-Match header carries exactly etag.
// Only quoted strong validators count; "*" and W/ values never match.
func MatchesStrong(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimSpace(candidate) == etag {
			return true
		}
	}
	return false
}

// ComputeFunc produces the current hash of a resource when no entry exists.
type ComputeFunc func(ctx context.Context) (string, error)

// ETags coordinates hash lookups and updates under a per-key lock so a
// get-or-compute never interleaves with a compare-and-overwrite.
type ETags struct {
	store   Store
	locker  lock.Locker
	lockTTL time.Duration

	hits       atomic.Int64
	misses     atomic.Int64
	overwrites atomic.Int64
}

// Option configures ETags.
type Option func(*ETags)

// WithLockTTL bounds how long a crashed holder can keep a key locked.
func WithLockTTL(d time.Duration) Option {
	return func(e *ETags) { e.lockTTL = d }
}

// NewETags wires a hash store to a locker.
func NewETags(store Store, locker lock.Locker, opts ...Option) *ETags {
	e := &ETags{store: store, locker: locker, lockTTL: 30 * time.Second}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ETags) acquire(ctx context.Context, key string) (func(), error) {
	release, err := e.locker.Acquire(ctx, "etag:"+key, e.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock etag %s: %w", key, err)
	}
	return release, nil
}

// getOrComputeLocked expects the key lock to be held.
func (e *ETags) getOrComputeLocked(ctx context.Context, key string, compute ComputeFunc) (string, error) {
	hash, ok, err := e.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read etag %s: %w", key, err)
	}
	if ok {
		e.hits.Add(1)
		return hash, nil
	}
	e.misses.Add(1)
	hash, err = compute(ctx)
	if err != nil {
		return "", err
	}
	if err := e.store.Set(ctx, key, hash); err != nil {
		return "", fmt.Errorf("write etag %s: %w", key, err)
	}
	return hash, nil
}

// GetOrCompute returns the stored hash for the pipeline, computing and
// storing it on first use.
func (e *ETags) GetOrCompute(ctx context.Context, pipelineName string, compute ComputeFunc) (string, error) {
	key := Key(pipelineName)
	release, err := e.acquire(ctx, key)
	if err != nil {
		return "", err
	}
	defer release()
	return e.getOrComputeLocked(ctx, key, compute)
}

// Transact holds the key lock while fn inspects the current hash and
// performs its update. A non-empty hash returned by fn replaces the entry;
// an error or empty hash leaves it untouched.
func (e *ETags) Transact(ctx context.Context, pipelineName string, compute ComputeFunc, fn func(current string) (next string, err error)) error {
	key := Key(pipelineName)
	release, err := e.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	current, err := e.getOrComputeLocked(ctx, key, compute)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == "" {
		return nil
	}
	if err := e.store.Set(ctx, key, next); err != nil {
		return fmt.Errorf("write etag %s: %w", key, err)
	}
	e.overwrites.Add(1)
	return nil
}

// Overwrite replaces the entry for a pipeline that changed out of band.
func (e *ETags) Overwrite(ctx context.Context, pipelineName, hash string) error {
	key := Key(pipelineName)
	release, err := e.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	if err := e.store.Set(ctx, key, hash); err != nil {
		return fmt.Errorf("write etag %s: %w", key, err)
	}
	e.overwrites.Add(1)
	return nil
}

// Stats holds counters since process start.
type Stats struct {
	Hits       int64
	Misses     int64
	Overwrites int64
}

func (e *ETags) Stats() Stats {
	return Stats{
		Hits:       e.hits.Load(),
		Misses:     e.misses.Load(),
		Overwrites: e.overwrites.Load(),
	}
}
