package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed (within burst)", i)
		}
	}

	if limiter.Allow() {
		t.Fatal("request should be rate-limited after burst exhausted")
	}

	// 10 req/s refills one token per 100ms
	time.Sleep(110 * time.Millisecond)

	if !limiter.Allow() {
		t.Fatal("request should be allowed after token replenishment")
	}
}

func TestWait(t *testing.T) {
	limiter := New(10, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first request should succeed: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("second request should succeed after waiting: %v", err)
	}
	elapsed := time.Since(start)

	// ~100ms expected at 10 req/s; allow margin for timing jitter
	if elapsed < 50*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Fatalf("wait time %v outside expected range 50ms-200ms", elapsed)
	}
}

func TestWaitContextCancellation(t *testing.T) {
	limiter := New(1, 1)

	if !limiter.Allow() {
		t.Fatal("first request should be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("Wait() should return error when context is cancelled")
	}
}

func TestTokens(t *testing.T) {
	limiter := New(10, 10)

	initial := limiter.Tokens()
	if initial < 9 || initial > 10 {
		t.Fatalf("initial tokens %f outside expected range 9-10", initial)
	}

	for i := 0; i < 5; i++ {
		limiter.Allow()
	}

	remaining := limiter.Tokens()
	if remaining < 4 || remaining > 6 {
		t.Fatalf("remaining tokens %f outside expected range 4-6", remaining)
	}
}

func TestUnlimitedRate(t *testing.T) {
	limiter := New(0, 0)

	for i := 0; i < 1000; i++ {
		if !limiter.Allow() {
			t.Fatalf("unlimited limiter should allow request %d", i)
		}
	}
}

func BenchmarkAllowParallel(b *testing.B) {
	limiter := New(1_000_000, 1_000_000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			limiter.Allow()
		}
	})
}
