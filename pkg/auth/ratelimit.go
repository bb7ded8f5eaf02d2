package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter checks whether an authenticated caller may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, claims Claims) error
}

// InProcessLimiter is a fixed-window rate limiter that tracks request
// counts per subject in memory.
type InProcessLimiter struct {
	rpm      int
	window   time.Duration
	now      func() time.Time
	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a limiter allowing requestsPerMinute requests
// per subject. A value <= 0 disables limiting.
func NewInProcessLimiter(requestsPerMinute int) *InProcessLimiter {
	return &InProcessLimiter{
		rpm:      requestsPerMinute,
		window:   time.Minute,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// Allow checks if the request is within the rate limit.
// Callers without a subject share the "anonymous" bucket.
func (l *InProcessLimiter) Allow(_ context.Context, claims Claims) error {
	if l.rpm <= 0 {
		return nil
	}

	key := claims.Subject()
	if key == "" {
		key = "anonymous"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= l.window {
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > l.rpm {
		return ErrTooManyRequests
	}

	return nil
}
