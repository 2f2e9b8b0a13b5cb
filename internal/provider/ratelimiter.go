package provider

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every outbound call to a data
// source. CoinGecko's free tier tolerates short bursts but not sustained
// traffic, so tokens refill one per interval rather than all at once.
type RateLimiter struct {
	mu             sync.Mutex
	tokens         int
	maxTokens      int
	refillInterval time.Duration
	lastRefill     time.Time
}

// NewRateLimiter creates a bucket holding maxTokens, refilled one token
// per refillInterval.
func NewRateLimiter(maxTokens int, refillInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillInterval: refillInterval,
		lastRefill:     time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.tryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.refillInterval):
		}
	}
}

// Allow takes a token if one is available without blocking. It is meant
// for request admission where callers reject rather than queue.
func (r *RateLimiter) Allow() bool {
	return r.tryAcquire()
}

func (r *RateLimiter) tryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	if r.tokens == 0 {
		return false
	}
	r.tokens--
	return true
}

// refill credits whole elapsed intervals since the last refill, capped at
// the bucket size. Caller must hold mu.
func (r *RateLimiter) refill() {
	elapsed := time.Since(r.lastRefill)
	earned := int(elapsed / r.refillInterval)
	if earned == 0 {
		return
	}
	r.tokens += earned
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefill = r.lastRefill.Add(time.Duration(earned) * r.refillInterval)
}
