// Package retry runs operations under a bounded, fixed-delay retry policy and
// reports every attempt back to the caller.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultMaxAttempts = 2
	DefaultDelay       = 50 * time.Millisecond
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first one.
	MaxAttempts int
	// Delay is the fixed pause between two attempts. There is no pause after the last one.
	Delay time.Duration
	// Retryable decides whether a failure may be retried. Nil retries every error.
	Retryable func(error) bool
}

// DefaultPolicy returns the policy used for signal lookups.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
}

// Attempt records the outcome of a single try.
type Attempt struct {
	Number int
	Err    error
}

// Result is the outcome of Run: the value on success, and the attempts made either way.
type Result[T any] struct {
	Value    T
	Attempts []Attempt
	Err      error
}

// Succeeded reports whether one of the attempts succeeded.
func (r Result[T]) Succeeded() bool {
	return r.Err == nil
}

// Run executes op under p. Cancellation of ctx does not cut the retry budget
// short; the retries are bounded by the policy alone.
func Run[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) Result[T] {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	ctx = context.WithoutCancel(ctx)

	var res Result[T]
	attempt := 0
	value, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(ctx)
		res.Attempts = append(res.Attempts, Attempt{Number: attempt, Err: err})
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	res.Value = value
	res.Err = err
	return res
}
