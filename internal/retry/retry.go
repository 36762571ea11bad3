// Package retry runs a call under a fixed attempt budget.
//
// Components own their retry budget: the camera tree builder, the shot
// decomposer and the reference selector each wrap their judgment calls in Do.
// Attempts follow each other without delay; transports apply their own
// rate-limit handling. When a timeout is configured each attempt runs under
// it, and an attempt that ignores its context is abandoned at the deadline.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultAttempts is the total number of attempts, including the first.
const DefaultAttempts = 3

// Policy configures an attempt loop.
type Policy struct {
	// Attempts is the total attempt budget. Values below 1 mean DefaultAttempts.
	Attempts int
	// Timeout bounds each attempt. Zero leaves the parent deadline in charge.
	Timeout time.Duration
	// OnRetry runs after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// ExhaustedError reports that every attempt failed.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying. Do returns it after the current attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Attempts extracts the attempt count from an exhausted error chain, or 1.
func Attempts(err error) int {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Attempts
	}
	return 1
}

// Do calls fn until it succeeds, the budget runs out, or ctx ends.
func Do(ctx context.Context, policy Policy, op string, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, policy, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, policy Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = DefaultAttempts
	}

	var (
		calls   int
		lastErr error
	)
	operation := func() (T, error) {
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}
		calls++
		value, err := runAttempt(ctx, policy.Timeout, fn)
		if err != nil {
			lastErr = err
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				lastErr = perm.Err
			}
		}
		return value, err
	}
	notify := func(err error, _ time.Duration) {
		if policy.OnRetry != nil {
			policy.OnRetry(calls, err)
		}
	}

	schedule := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(attempts-1)), ctx)
	value, err := backoff.RetryNotifyWithData[T](operation, schedule, notify)
	if err == nil {
		return value, nil
	}
	if lastErr == nil {
		return zero, err
	}
	return zero, &ExhaustedError{Op: op, Attempts: calls, Err: lastErr}
}

type outcome[T any] struct {
	value T
	err   error
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		value, err := fn(attemptCtx)
		done <- outcome[T]{value: value, err: err}
	}()
	select {
	case res := <-done:
		return res.value, res.err
	case <-attemptCtx.Done():
		var zero T
		return zero, fmt.Errorf("attempt abandoned: %w", attemptCtx.Err())
	}
}
