package apperrors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.BackoffFactor)
	assert.True(t, cfg.Jitter)
}

func TestDatabaseRetryConfig(t *testing.T) {
	cfg := DatabaseRetryConfig()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
}

func TestRetryer_Execute_SucceedsFirstTry(t *testing.T) {
	r := NewRetryer(&RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})

	calls := 0
	err := r.Execute(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryer_Execute_RetriesOnRetryableErrorThenSucceeds(t *testing.T) {
	r := NewRetryer(&RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})

	calls := 0
	err := r.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return NewDatabaseError(ErrCodeDatabaseQuery, "transient", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryer_Execute_NonRetryableErrorFailsImmediately(t *testing.T) {
	r := NewRetryer(&RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})

	calls := 0
	wantErr := NewInternalError(ErrCodeSourceMissing, "not retryable", nil)
	err := r.Execute(context.Background(), func() error {
		calls++
		return wantErr
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, wantErr, err)
}

func TestRetryer_Execute_ExhaustsRetriesAndReturnsLastError(t *testing.T) {
	r := NewRetryer(&RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})

	calls := 0
	err := r.Execute(context.Background(), func() error {
		calls++
		return NewDatabaseError(ErrCodeDatabaseQuery, "always fails", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls) // the first attempt plus MaxRetries extra attempts
}

func TestRetryer_Execute_PlainErrorIsNotRetryable(t *testing.T) {
	r := NewRetryer(&RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})

	calls := 0
	err := r.Execute(context.Background(), func() error {
		calls++
		return errors.New("unclassified failure")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryer_Execute_AbortsOnContextCancellation(t *testing.T) {
	r := NewRetryer(&RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, BackoffFactor: 1})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := r.Execute(ctx, func() error {
		calls++
		if calls == 1 {
			cancel()
		}
		return NewDatabaseError(ErrCodeDatabaseQuery, "transient", nil)
	})

	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 1, calls)
}

func TestRetryer_CalculateDelay(t *testing.T) {
	r := NewRetryer(&RetryConfig{
		MaxRetries:    5,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      300 * time.Millisecond,
		BackoffFactor: 2.0,
		Jitter:        false,
	})

	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	// Clamped at MaxDelay despite exponential growth wanting 400ms.
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(3))
}

func TestRetryer_CalculateDelay_JitterStaysWithinBounds(t *testing.T) {
	r := NewRetryer(&RetryConfig{
		MaxRetries:    5,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 1.0,
		Jitter:        true,
	})

	for i := 0; i < 20; i++ {
		delay := r.calculateDelay(1)
		assert.GreaterOrEqual(t, delay, 90*time.Millisecond)
		assert.LessOrEqual(t, delay, 110*time.Millisecond)
	}
}
