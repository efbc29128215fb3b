package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiter_NoBlockWhenZeroRPS(t *testing.T) {
	limiter := NewLimiter(0, 0.5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("limiter with 0 RPS should not block")
	}
	if limiter.Interval() != 0 {
		t.Errorf("expected zero interval, got %v", limiter.Interval())
	}
}

func TestLimiter_NilNeverBlocks(t *testing.T) {
	var limiter *Limiter
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLimiter_Spacing(t *testing.T) {
	limiter := NewLimiter(20, 0) // 50ms interval
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	duration := time.Since(start)

	// The first slot is immediate, the next two are 50ms apart.
	if duration < 90*time.Millisecond || duration > 250*time.Millisecond {
		t.Errorf("expected about 100ms for three waits, took %v", duration)
	}
}

func TestLimiter_ConcurrentCallersQueue(t *testing.T) {
	limiter := NewLimiter(50, 0) // 20ms interval
	ctx := context.Background()

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.Wait(ctx)
		}()
	}
	wg.Wait()

	if d := time.Since(start); d < 70*time.Millisecond {
		t.Errorf("five callers at 20ms spacing should take at least 80ms, took %v", d)
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatalf("expected context canceled error")
	}

	// A waiter blocked on a far slot gives up when its context expires.
	_ = limiter.Wait(context.Background())
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := limiter.Wait(ctx); err == nil {
		t.Fatalf("expected deadline error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("waiter did not honour its deadline")
	}
}

func TestLimiter_Jitter(t *testing.T) {
	limiter := NewLimiter(10, 0.5) // 100ms interval, up to +50ms
	ctx := context.Background()

	_ = limiter.Wait(ctx)

	start := time.Now()
	_ = limiter.Wait(ctx)
	duration := time.Since(start)

	// Allow some slack for goroutine scheduling.
	if duration < 50*time.Millisecond || duration > 300*time.Millisecond {
		t.Errorf("expected jittered wait roughly between 100ms and 150ms, took %v", duration)
	}
}
