package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultCallTimeout bounds a single provider call when no deadline is configured.
const DefaultCallTimeout = 5 * time.Second

// ErrTimeout is returned when a provider call does not settle before its deadline.
var ErrTimeout = errors.New("provider call timed out")

// PanicError wraps a panic raised inside a provider call.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("provider call panicked: %v", e.Value)
}

// Call runs fn with its own deadline derived from ctx. The caller stops
// waiting when the deadline expires even if fn ignores its context; in that
// case the result of fn is discarded. Deadline expiry is reported as
// ErrTimeout, a panic inside fn as *PanicError.
func Call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	// Buffered so an abandoned call can still complete.
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: &PanicError{Value: r}}
			}
		}()
		v, err := fn(callCtx)
		done <- result{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, r.err)
		}
		return r.value, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

// Settle runs Call and substitutes fallback on any failure. The failure is
// still returned so callers can report it, but the value is always usable.
func Settle[T any](ctx context.Context, timeout time.Duration, fallback T, fn func(context.Context) (T, error)) (T, error) {
	v, err := Call(ctx, timeout, fn)
	if err != nil {
		return fallback, err
	}
	return v, nil
}
