// Package retry runs provider calls under a per-attempt timeout inside an
// exponential backoff loop.
package retry

import (
	"context"
	"fmt"
	"time"

	"kokoro/src/config"
	kerrors "kokoro/src/errors"
)

// Policy bounds one provider class. MaxRetries counts retries, so a call is
// attempted at most MaxRetries+1 times.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration

	// Sleep waits between attempts. Nil means a timer that returns early
	// when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry, when set, is told about every failed attempt that will be retried.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// FromConfig converts a settings retry block into a Policy.
func FromConfig(c config.RetryConfig) Policy {
	return Policy{
		Timeout:    c.Timeout.Duration,
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.BaseDelay.Duration,
	}
}

// Backoff is the delay after the given zero-based attempt: base * 2^attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	return base << uint(attempt)
}

// Do calls fn until it succeeds, returns a non-retryable error, the parent
// context ends or the attempts run out. The last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		v, err := WithTimeout(ctx, p.Timeout, fn)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !kerrors.IsRetryable(err) || attempt == p.MaxRetries || ctx.Err() != nil {
			break
		}

		delay := Backoff(p.BaseDelay, attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			break
		}
	}
	return zero, lastErr
}

// WithTimeout runs fn against an attempt context that expires after timeout.
// When the deadline passes first, WithTimeout returns ErrProviderTimeout
// without waiting; whatever fn produces later is dropped.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(attemptCtx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %s", kerrors.ErrProviderTimeout, timeout)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
