// Package limiter provides per-provider rate limiting for LLM calls.
//
// Each provider gets a token bucket refilled at a fixed rate. Wait blocks
// until a slot is available or the context is done, which keeps burst retries
// from tripping provider rate limits in the first place.
package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// bucket is a token bucket with lazy refill.
type bucket struct {
	lastRefill time.Time
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
}

// Limiter rate-limits calls keyed by provider name.
type Limiter struct {
	buckets  map[string]*bucket
	mu       sync.Mutex
	capacity float64
	rate     float64
}

// New creates a limiter allowing capacity burst calls refilled at ratePerMin
// calls per minute per provider.
func New(capacity int, ratePerMin float64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	if ratePerMin <= 0 {
		ratePerMin = 60
	}
	return &Limiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(capacity),
		rate:     ratePerMin / 60.0,
	}
}

// reserve takes a token if available, otherwise returns the wait duration
// until one becomes available.
func (l *Limiter) reserve(provider string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[provider]
	if !ok {
		b = &bucket{tokens: l.capacity, capacity: l.capacity, refillRate: l.rate, lastRefill: now}
		l.buckets[provider] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
	return false, wait
}

// Wait blocks until the provider has capacity for one call.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	for {
		ok, wait := l.reserve(provider, time.Now())
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit wait for %s interrupted: %w", provider, ctx.Err())
		case <-timer.C:
		}
	}
}

// Allow reports whether a call may proceed right now without blocking.
func (l *Limiter) Allow(provider string) bool {
	ok, _ := l.reserve(provider, time.Now())
	return ok
}
