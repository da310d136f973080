package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestInMemoryLockSerialisesKey(t *testing.T) {
	l := NewInMemoryLock()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "pipeline1", 0)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
}

func TestInMemoryLockIndependentKeys(t *testing.T) {
	l := NewInMemoryLock()
	r1, ok, _ := l.TryAcquire(context.Background(), "a", 0)
	if !ok {
		t.Fatal("expected to acquire a")
	}
	defer r1()
	r2, ok, _ := l.TryAcquire(context.Background(), "b", 0)
	if !ok {
		t.Fatal("expected to acquire b while a is held")
	}
	r2()
	if _, ok, _ := l.TryAcquire(context.Background(), "a", 0); ok {
		t.Fatal("expected a to still be held")
	}
}

func TestInMemoryLockAcquireHonoursContext(t *testing.T) {
	l := NewInMemoryLock()
	release, _ := l.Acquire(context.Background(), "k", 0)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "k", 0); err == nil {
		t.Fatal("expected context error")
	}
}

func TestInMemoryLockTTLReleases(t *testing.T) {
	l := NewInMemoryLock()
	if _, err := l.Acquire(context.Background(), "k", 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := l.Acquire(ctx, "k", 0)
	if err != nil {
		t.Fatalf("expected ttl to free the lock: %v", err)
	}
	release()
}

func TestRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLock(client, WithLockPrefix("test:"), WithPollInterval(5*time.Millisecond))
	ctx := context.Background()

	release, ok, err := l.TryAcquire(ctx, "pipeline1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected lock, got ok=%v err=%v", ok, err)
	}
	if !mr.Exists("test:pipeline1") {
		t.Fatal("expected lock key in redis")
	}
	if _, ok, _ := l.TryAcquire(ctx, "pipeline1", time.Minute); ok {
		t.Fatal("expected second TryAcquire to fail")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r, err := l.Acquire(ctx, "pipeline1", time.Minute)
		if err != nil {
			t.Errorf("acquire after release: %v", err)
			return
		}
		r()
	}()
	time.Sleep(20 * time.Millisecond)
	release()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
	if mr.Exists("test:pipeline1") {
		t.Fatal("expected lock key to be removed")
	}
}

func TestRedisLockReleaseKeepsForeignToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLock(client, WithLockPrefix(""))
	release, ok, _ := l.TryAcquire(context.Background(), "k", time.Minute)
	if !ok {
		t.Fatal("expected lock")
	}
	// Simulate expiry followed by another holder.
	if err := mr.Set("k", "someone-else"); err != nil {
		t.Fatal(err)
	}
	release()
	if got, _ := mr.Get("k"); got != "someone-else" {
		t.Fatalf("expected foreign lock to survive, got %q", got)
	}
}

func TestKeyIDStable(t *testing.T) {
	if keyID("pipeline1") != keyID("pipeline1") {
		t.Fatal("expected stable ids")
	}
	if keyID("a") == keyID("b") {
		t.Fatal("expected distinct ids")
	}
}
