// Package ratelimit implements per-key token bucket admission control.
package ratelimit

import (
	"time"

	"github.com/chris/payment-decisions/pkg/keyed"
	"golang.org/x/time/rate"
)

const (
	DefaultCapacity        = 5
	DefaultRefillPerSecond = 5.0

	// RetryAfter is the hint returned to callers whose request was denied.
	RetryAfter = time.Second

	// UnknownKey is the shared bucket for callers that cannot be identified.
	UnknownKey = "unknown"
)

// Limiter holds one continuously refilling token bucket per key.
// A bucket starts full and never holds more than its capacity.
type Limiter struct {
	buckets *keyed.Registry[*rate.Limiter]
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter with the given capacity and refill rate in tokens per second.
func New(capacity int, refillPerSecond float64, opts ...Option) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if refillPerSecond <= 0 {
		refillPerSecond = DefaultRefillPerSecond
	}
	l := &Limiter{now: time.Now}
	l.buckets = keyed.New(func(string) *rate.Limiter {
		return rate.NewLimiter(rate.Limit(refillPerSecond), capacity)
	})
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one token from key's bucket, returning false without
// consuming anything when less than one token is available.
func (l *Limiter) Allow(key string) bool {
	return l.buckets.GetOrCreate(key).AllowN(l.now(), 1)
}

// Tokens reports the tokens currently available for key.
func (l *Limiter) Tokens(key string) float64 {
	return l.buckets.GetOrCreate(key).TokensAt(l.now())
}
