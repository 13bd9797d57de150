package hint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_MaxAttempts(t *testing.T) {
	cfg := fastRetry()
	cfg.MaxAttempts = 3
	var calls int
	res, err := Retry(context.Background(), cfg, func(context.Context, int) error {
		calls++
		return ErrCapacityExhausted
	})
	assert.ErrorIs(t, err, ErrCapacityExhausted)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, res.Attempts)
}

func TestRetry_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, fastRetry(), func(context.Context, int) error {
		t.Fatal("must not be called")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_NonRetryable(t *testing.T) {
	boom := errors.New("boom")
	res, err := Retry(context.Background(), fastRetry(), func(context.Context, int) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, res.Attempts)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 2, time.Minute))
	assert.Equal(t, time.Minute, nextBackoff(40*time.Second, 2, time.Minute))
	assert.Equal(t, time.Second, calculateBackoff(time.Second, 0))
	for i := 0; i < 100; i++ {
		d := calculateBackoff(time.Second, 0.2)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultRetryConfig().Validate())
	bad := []RetryConfig{
		{},
		{InitialBackoff: time.Second, MaxBackoff: time.Millisecond, BackoffFactor: 2, Deadline: time.Second},
		{InitialBackoff: time.Second, MaxBackoff: time.Second, BackoffFactor: 0.5, Deadline: time.Second},
		{InitialBackoff: time.Second, MaxBackoff: time.Second, BackoffFactor: 2},
		{InitialBackoff: time.Second, MaxBackoff: time.Second, BackoffFactor: 2, Deadline: time.Second, JitterFactor: 2},
	}
	for _, c := range bad {
		assert.Error(t, c.Validate(), "%+v", c)
	}
}

func TestClip(t *testing.T) {
	assert.Equal(t, "hello", clip("  hello \n world"))
	assert.Empty(t, clip("   "))
}
