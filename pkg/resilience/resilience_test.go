package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
		OnStateChange: func(_ string, _, to State) {
			transitions = append(transitions, to)
		},
	})

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []State{StateOpen}, transitions)
}

func TestCircuitBreakerRecovers(t *testing.T) {
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     20 * time.Millisecond,
	})
	require.Error(t, cb.Execute(func() error { return errBoom }))
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.GetState())
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int
		attempts  int
		wantErr   bool
		wantCalls int
	}{
		{"first try", 0, 3, false, 1},
		{"succeeds on third", 2, 3, false, 3},
		{"exhausts attempts", 5, 3, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), "op", RetryConfig{
				MaxAttempts:  tt.attempts,
				InitialDelay: time.Millisecond,
				MaxDelay:     2 * time.Millisecond,
			}, func(context.Context) error {
				calls++
				if calls <= tt.failFirst {
					return errBoom
				}
				return nil
			})
			if tt.wantErr {
				assert.ErrorIs(t, err, errBoom)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, "op", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return errBoom
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryPermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return Permanent(fmt.Errorf("decode: %w", errBoom))
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, "decode: boom", err.Error())
	assert.Equal(t, 1, calls)
	assert.NoError(t, Permanent(nil))
}

func TestWithTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "slow", te.Op)

	err = WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)

	err = WithTimeout(context.Background(), 0, "unbounded", func(ctx context.Context) error {
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
}
