package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, rate, burst float64) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisLimiter(rdb, "test:ratelimit", rate, burst), mr
}

func TestAllow_WithinBurst(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("allow #%d: %v", i, err)
		}
		if !ok {
			t.Fatalf("request %d within burst must be allowed", i)
		}
	}

	ok, err := limiter.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("allow after burst: %v", err)
	}
	if ok {
		t.Fatalf("request beyond burst must be denied")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 1)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "1.2.3.4"); !ok {
		t.Fatalf("first request for key A must be allowed")
	}
	if ok, _ := limiter.Allow(ctx, "1.2.3.4"); ok {
		t.Fatalf("second request for key A must be denied")
	}
	if ok, _ := limiter.Allow(ctx, "5.6.7.8"); !ok {
		t.Fatalf("key B has its own bucket and must be allowed")
	}
}

func TestAllow_RefillsOverTime(t *testing.T) {
	limiter, _ := newTestLimiter(t, 100, 1)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "1.2.3.4"); !ok {
		t.Fatalf("first request must be allowed")
	}
	if ok, _ := limiter.Allow(ctx, "1.2.3.4"); ok {
		t.Fatalf("bucket must be empty immediately after")
	}

	// 100 tokens/s 的补充速率，50ms 后必然恢复
	time.Sleep(50 * time.Millisecond)
	if ok, err := limiter.Allow(ctx, "1.2.3.4"); err != nil || !ok {
		t.Fatalf("expected bucket refilled, ok=%v err=%v", ok, err)
	}
}

func TestAllow_DisabledWhenRateZero(t *testing.T) {
	limiter, _ := newTestLimiter(t, 0, 0)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, err := limiter.Allow(ctx, "1.2.3.4")
		if err != nil || !ok {
			t.Fatalf("disabled limiter must always allow, ok=%v err=%v", ok, err)
		}
	}
}

func TestAllow_NilLimiter(t *testing.T) {
	var limiter *Limiter
	ok, err := limiter.Allow(context.Background(), "1.2.3.4")
	if err != nil || !ok {
		t.Fatalf("nil limiter must allow, ok=%v err=%v", ok, err)
	}
}

func TestAllow_RedisDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, 1)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "1.2.3.4")
	if err == nil {
		t.Fatalf("expected error when redis is unreachable")
	}
}
