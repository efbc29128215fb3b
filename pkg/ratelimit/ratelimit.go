package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Limiter spaces operations at a fixed rate with optional positive jitter.
// Each Wait reserves the next free slot, so concurrent callers queue in
// arrival order. It is safe for concurrent use; a nil Limiter never blocks.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	jitter   float64 // 0.0 to 1.0, fraction of interval
	next     time.Time
}

// NewLimiter creates a limiter allowing rps operations per second. If rps is
// <= 0, the limiter does not block. Jitter is clamped to [0, 1].
func NewLimiter(rps float64, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	l := &Limiter{jitter: jitter}
	if rps > 0 {
		l.interval = time.Duration(float64(time.Second) / rps)
	}
	return l
}

// Interval returns the spacing between slots, zero when unlimited.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Wait blocks until the caller's slot arrives or ctx is done. A slot
// reserved by a cancelled caller is not handed back.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l == nil || l.interval <= 0 {
		return nil
	}

	delay := l.reserve(time.Now())
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reserve claims the next slot and returns how long to wait for it.
func (l *Limiter) reserve(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	at := l.next
	if at.Before(now) {
		at = now
	}
	l.next = at.Add(l.interval)

	delay := at.Sub(now)
	if l.jitter > 0 {
		delay += time.Duration(rand.Float64() * l.jitter * float64(l.interval))
	}
	return delay
}
