// Package reliability retries calls to remote key services.
package reliability

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"
)

// RetryPolicy decides whether and when an operation is attempted again.
// Attempts are numbered from 0.
type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
	ShouldRetry(err error, attempt int) bool
	// MaxAttempts includes the first attempt.
	MaxAttempts() int
}

// RetryConfig tunes ExponentialBackoffPolicy. Zero fields take the value
// of DefaultRetryConfig.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is the fraction of the delay that is randomised.
	Jitter      float64
	ShouldRetry func(error, int) bool
}

// DefaultRetryConfig retries any error three times, starting at 100ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
		ShouldRetry:  func(err error, _ int) bool { return err != nil },
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		c.Jitter = def.Jitter
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = def.ShouldRetry
	}
	return c
}

// ExponentialBackoffPolicy doubles (by Multiplier) the delay after every
// failed attempt, up to MaxDelay.
type ExponentialBackoffPolicy struct {
	cfg RetryConfig
}

func NewExponentialBackoffPolicy(config RetryConfig) *ExponentialBackoffPolicy {
	return &ExponentialBackoffPolicy{cfg: config.withDefaults()}
}

func (p *ExponentialBackoffPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	delay := math.Min(
		float64(p.cfg.InitialDelay)*math.Pow(p.cfg.Multiplier, float64(attempt)),
		float64(p.cfg.MaxDelay),
	)
	if p.cfg.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.cfg.Jitter
	}
	return time.Duration(math.Max(delay, 0))
}

func (p *ExponentialBackoffPolicy) ShouldRetry(err error, attempt int) bool {
	return attempt < p.cfg.MaxAttempts-1 && p.cfg.ShouldRetry(err, attempt)
}

func (p *ExponentialBackoffPolicy) MaxAttempts() int {
	return p.cfg.MaxAttempts
}

// Transient reports whether err is a network timeout. Key services that
// time out usually answer the next call.
func Transient(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// RetryExecutor runs operations under a RetryPolicy.
type RetryExecutor struct {
	policy  RetryPolicy
	onRetry func(attempt int, delay time.Duration, err error)
}

func NewRetryExecutor(policy RetryPolicy) *RetryExecutor {
	return &RetryExecutor{
		policy:  policy,
		onRetry: func(int, time.Duration, error) {},
	}
}

// SetOnRetryCallback registers a function called before every retry.
func (r *RetryExecutor) SetOnRetryCallback(callback func(attempt int, delay time.Duration, err error)) {
	if callback != nil {
		r.onRetry = callback
	}
}

// Execute runs operation until it succeeds, the policy gives up or ctx is
// done. The error of the last attempt is returned unchanged.
func (r *RetryExecutor) Execute(ctx context.Context, operation func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = operation(ctx); lastErr == nil {
			return nil
		}
		if !r.policy.ShouldRetry(lastErr, attempt) {
			return lastErr
		}

		delay := r.policy.NextDelay(attempt)
		r.onRetry(attempt+1, delay, lastErr)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
