package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
		ShouldRetry: func(err error, _ int) bool {
			return errors.Is(err, errTransient)
		},
	}
}

func TestRetryExecutor_Execute(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{name: "first call succeeds", failures: nil, attempts: 3, wantCalls: 1},
		{name: "succeeds after retries", failures: []error{errTransient, errTransient}, attempts: 3, wantCalls: 3},
		{name: "gives up after max attempts", failures: []error{errTransient, errTransient, errTransient}, attempts: 3, wantCalls: 3, wantErr: errTransient},
		{name: "permanent error not retried", failures: []error{errors.New("denied")}, attempts: 3, wantCalls: 1, wantErr: errors.New("denied")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := NewRetryExecutor(NewExponentialBackoffPolicy(fastConfig(tt.attempts)))
			var retries int
			executor.SetOnRetryCallback(func(int, time.Duration, error) { retries++ })

			calls := 0
			err := executor.Execute(context.Background(), func(context.Context) error {
				defer func() { calls++ }()
				if calls < len(tt.failures) {
					return tt.failures[calls]
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantCalls-1, retries)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryExecutor_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := NewRetryExecutor(NewExponentialBackoffPolicy(fastConfig(3)))
	err := executor.Execute(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExponentialBackoffPolicy_NextDelay(t *testing.T) {
	p := NewExponentialBackoffPolicy(RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2,
		Jitter:       0,
	})
	p.cfg.Jitter = 0

	assert.Equal(t, 10*time.Millisecond, p.NextDelay(0))
	assert.Equal(t, 20*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, 40*time.Millisecond, p.NextDelay(2))
	assert.Equal(t, 50*time.Millisecond, p.NextDelay(3))
	assert.Equal(t, time.Duration(0), p.NextDelay(-1))
	assert.Equal(t, 5, p.MaxAttempts())
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("denied"), want: false},
		{name: "timeout", err: timeoutError{}, want: true},
		{name: "wrapped timeout", err: fmt.Errorf("kms: %w", timeoutError{}), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}
