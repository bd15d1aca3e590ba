package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports an operation that overran its limit. It unwraps to
// context.DeadlineExceeded.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %v", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// WithTimeout runs fn under a context bounded by timeout and returns as soon
// as the limit passes, even when fn ignores its context. A non-positive
// timeout runs fn unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(bounded) }()

	select {
	case err := <-done:
		return err
	case <-bounded.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return &TimeoutError{Op: op, Limit: timeout}
	}
}
