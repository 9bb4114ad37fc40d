package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return nil
	}

	err := RetryWithBackoff(context.Background(), operation, 3, 10*time.Millisecond, BackoffLinear)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first attempt")
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := RetryWithBackoff(context.Background(), operation, 5, time.Millisecond, BackoffLinear)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	operation := func() error {
		attempts++
		return expectedErr
	}

	err := RetryWithBackoff(context.Background(), operation, 3, time.Millisecond, BackoffExponential)
	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return last error")
	assert.Equal(t, 3, attempts, "should try maxAttempts times")
}

func TestRetryWithBackoff_Permanent(t *testing.T) {
	attempts := 0
	cause := errors.New("bad input")
	operation := func() error {
		attempts++
		return Permanent(cause)
	}

	err := RetryWithBackoff(context.Background(), operation, 5, time.Millisecond, BackoffLinear)
	assert.Equal(t, cause, err, "should unwrap the permanent error")
	assert.Equal(t, 1, attempts, "should not retry a permanent error")
	assert.NoError(t, Permanent(nil))
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("error")
	}

	err := RetryWithBackoff(ctx, operation, 10, 10*time.Millisecond, BackoffLinear)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, attempts, 3, "should stop when context times out")
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, maxAttempts := range []int{0, -1} {
		attempts := 0
		err := RetryWithBackoff(context.Background(), func() error {
			attempts++
			return nil
		}, maxAttempts, time.Millisecond, BackoffLinear)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Equal(t, 0, attempts)
	}
}

func TestBackoff_Delay(t *testing.T) {
	base := 100 * time.Millisecond
	tests := []struct {
		name     string
		strategy Backoff
		attempt  int
		want     time.Duration
	}{
		{"linear first", BackoffLinear, 1, 100 * time.Millisecond},
		{"linear third", BackoffLinear, 3, 300 * time.Millisecond},
		{"linear clamps attempt", BackoffLinear, 0, 100 * time.Millisecond},
		{"exponential first", BackoffExponential, 1, 100 * time.Millisecond},
		{"exponential second", BackoffExponential, 2, 200 * time.Millisecond},
		{"exponential fourth", BackoffExponential, 4, 800 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.strategy.Delay(base, tt.attempt))
		})
	}
}

func TestParseBackoff(t *testing.T) {
	b, err := ParseBackoff("Exponential")
	require.NoError(t, err)
	assert.Equal(t, BackoffExponential, b)
	assert.Equal(t, "exponential", b.String())

	b, err = ParseBackoff("")
	require.NoError(t, err)
	assert.Equal(t, BackoffLinear, b)
	assert.Equal(t, "linear", b.String())

	_, err = ParseBackoff("fibonacci")
	assert.Error(t, err)
}
