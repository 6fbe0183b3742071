package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{Attempts: attempts, Backoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), DefaultRetryPolicy(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesTransient(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("busy"), 503)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls++
		return 7, NewTransientError(errors.New("down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 0, v, "zero value on failure")
	assert.Equal(t, 3, calls)
}

func TestRetryDo_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	err := RetryDo(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryDo_CustomRetryableAndHook(t *testing.T) {
	var attempts []int
	p := fastPolicy(3)
	p.Retryable = func(error) bool { return true }
	p.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	err := RetryDo(context.Background(), p, func(context.Context) error { return errors.New("x") })
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRetryDo_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := RetryPolicy{Attempts: 10, Backoff: time.Hour}
	p.OnRetry = func(int, error) { cancel() }

	err := RetryDo(ctx, p, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("x"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNoRetry(t *testing.T) {
	calls := 0
	_ = RetryDo(context.Background(), NoRetry(), func(context.Context) error {
		calls++
		return NewTransientError(errors.New("x"), 503)
	})
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{Backoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}.withDefaults()
	p.Jitter = 0

	assert.Equal(t, 100*time.Millisecond, p.delay(1))
	assert.Equal(t, 200*time.Millisecond, p.delay(2))
	assert.Equal(t, 400*time.Millisecond, p.delay(3))
	assert.Equal(t, time.Second, p.delay(10), "capped at MaxBackoff")

	p.Jitter = 0.5
	for range 50 {
		d := p.delay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}
