package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a keyed token-bucket limiter. Buckets are created lazily on
// first use and start full.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*bucket
	now func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{m: make(map[string]*bucket), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one token for key if available. capacity and
// refillPerSec apply on the bucket's first use; later calls reuse the
// existing bucket.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
