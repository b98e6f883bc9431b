// Package retry runs an operation a bounded number of times with a fixed delay.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried operation.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Default is three attempts one second apart.
var Default = Policy{Attempts: 3, Delay: time.Second}

// Retryable decides whether a failed attempt should be tried again.
type Retryable func(error) bool

// Always retries every error.
func Always(error) bool { return true }

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts run out
// or ctx is done. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, retryable Retryable, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, retryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, retryable Retryable, op func(ctx context.Context) (T, error)) (T, error) {
	if retryable == nil {
		retryable = Always
	}
	return backoff.RetryWithData(func() (T, error) {
		v, err := op(ctx)
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, p.backOff(ctx))
}
