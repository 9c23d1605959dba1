package recognize

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously at a per-minute rate.
type RateLimiter struct {
	mu         sync.Mutex
	perMinute  int
	tokens     float64
	lastUpdate time.Time
	waited     time.Duration
}

// NewRateLimiter allows perMinute requests per minute with a full bucket.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		perMinute:  perMinute,
		tokens:     float64(perMinute),
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		perSecond := float64(r.perMinute) / 60
		wait := time.Duration((1 - r.tokens) / perSecond * float64(time.Second))
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		}
	}
}

// Waited reports the total time spent blocked in Wait.
func (r *RateLimiter) Waited() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waited
}

func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now
	r.tokens += elapsed * float64(r.perMinute) / 60
	if limit := float64(r.perMinute); r.tokens > limit {
		r.tokens = limit
	}
}
