package hint

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig bounds how long a capacity-exhausted generator is retried.
type RetryConfig struct {
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the wait after each retry.
	BackoffFactor float64

	// JitterFactor is the maximum jitter as a fraction of the wait (0-1).
	JitterFactor float64

	// Deadline bounds the whole call, waits included.
	Deadline time.Duration

	// MaxAttempts caps attempts including the first. Zero means only the deadline applies.
	MaxAttempts int
}

// DefaultRetryConfig waits 1s, doubling up to 60s, for at most five minutes.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     60 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
		Deadline:       5 * time.Minute,
	}
}

// Validate rejects configurations that would spin or never back off.
func (c RetryConfig) Validate() error {
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("retry: initial backoff must be > 0")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("retry: max backoff must be >= initial backoff")
	}
	if c.BackoffFactor < 1.0 {
		return fmt.Errorf("retry: backoff factor must be >= 1")
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return fmt.Errorf("retry: jitter factor must be within [0, 1]")
	}
	if c.Deadline <= 0 {
		return fmt.Errorf("retry: deadline must be > 0")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("retry: max attempts must be >= 0")
	}
	return nil
}

// RetryResult describes how a retried call went.
type RetryResult struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
}

// IsRetryable reports whether err is a transient capacity failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCapacityExhausted)
}

// Retry calls fn until it succeeds, fails with a non-retryable error, runs out of
// attempts, or the deadline passes.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) error) (RetryResult, error) {
	start := time.Now()
	result := RetryResult{}

	ctx, cancel := context.WithTimeout(ctx, cfg.Deadline)
	defer cancel()

	backoff := cfg.InitialBackoff
	for attempt := 1; cfg.MaxAttempts == 0 || attempt <= cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.LastError = err
			break
		}

		err := fn(ctx, attempt)
		if err == nil {
			result.LastError = nil
			result.TotalDuration = time.Since(start)
			return result, nil
		}
		result.LastError = err

		if !IsRetryable(err) {
			break
		}
		if cfg.MaxAttempts != 0 && attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(calculateBackoff(backoff, cfg.JitterFactor))
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastError = fmt.Errorf("%w (last: %w)", ctx.Err(), err)
			result.TotalDuration = time.Since(start)
			return result, result.LastError
		case <-timer.C:
		}

		backoff = nextBackoff(backoff, cfg.BackoffFactor, cfg.MaxBackoff)
	}

	result.TotalDuration = time.Since(start)
	return result, result.LastError
}

func calculateBackoff(base time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return base
	}
	// Range [base*(1-jitter), base*(1+jitter)].
	jitter := (rand.Float64()*2 - 1) * jitterFactor
	return time.Duration(float64(base) * (1.0 + jitter))
}

func nextBackoff(current time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		return max
	}
	return next
}
