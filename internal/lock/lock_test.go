package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNoopLockerAlwaysGrants(t *testing.T) {
	var l Locker = NoopLocker{}
	for i := 0; i < 2; i++ {
		release, ok, err := l.Acquire(context.Background(), "lock:test", time.Second)
		if err != nil || !ok {
			t.Fatalf("expected lease, got ok=%v err=%v", ok, err)
		}
		if err := release(context.Background()); err != nil {
			t.Fatalf("release: %v", err)
		}
	}
}

func TestRedisLockerReportsConnectionErrors(t *testing.T) {
	l := NewRedisLocker("127.0.0.1:1", "", 0)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, ok, err := l.Acquire(ctx, "lock:test", time.Second)
	if err == nil || ok {
		t.Fatalf("expected connection error, got ok=%v err=%v", ok, err)
	}
}

func TestRedisLockerLeaseLifecycle(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis lock test")
	}
	l := NewRedisLocker(addr, os.Getenv("REDIS_PASSWORD"), 0)
	defer l.Close()

	ctx := context.Background()
	if err := l.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	key := "lock:test:" + uuid.NewString()
	defer l.client.Del(ctx, key)

	release, ok, err := l.Acquire(ctx, key, 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected first lease, got ok=%v err=%v", ok, err)
	}
	if ttl := l.client.PTTL(ctx, key).Val(); ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("expected lease ttl within 10s, got %v", ttl)
	}

	if _, ok, err := l.Acquire(ctx, key, 10*time.Second); err != nil || ok {
		t.Fatalf("expected lease to be refused while held, got ok=%v err=%v", ok, err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if n := l.client.Exists(ctx, key).Val(); n != 0 {
		t.Fatalf("expected key deleted after release, exists=%d", n)
	}

	release, ok, err = l.Acquire(ctx, key, 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected lease after release, got ok=%v err=%v", ok, err)
	}

	// the lease expired and another process took it; our release must not delete theirs
	if err := l.client.Set(ctx, key, "other-holder", 10*time.Second).Err(); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if got := l.client.Get(ctx, key).Val(); got != "other-holder" {
		t.Fatalf("stale release removed another holder's lease, value=%q", got)
	}
}
