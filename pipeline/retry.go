// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Backoff selects how the delay grows between retry attempts.
type Backoff int

const (
	// BackoffLinear waits attempt*baseDelay after each failed attempt.
	BackoffLinear Backoff = iota
	// BackoffExponential waits baseDelay*2^(attempt-1) after each failed attempt.
	BackoffExponential
)

func (b Backoff) String() string {
	switch b {
	case BackoffExponential:
		return "exponential"
	default:
		return "linear"
	}
}

// ParseBackoff parses "linear" or "exponential".
func ParseBackoff(s string) (Backoff, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return BackoffLinear, nil
	case "exponential":
		return BackoffExponential, nil
	}
	return BackoffLinear, fmt.Errorf("unknown backoff strategy %q", s)
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(baseDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b == BackoffExponential {
		delay := baseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		return delay
	}
	return time.Duration(attempt) * baseDelay
}

// permanentError marks an error that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so RetryWithBackoff returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryWithBackoff retries an operation until it succeeds, the attempts run
// out, or ctx is done.
// maxAttempts: maximum number of attempts (must be > 0)
// baseDelay: base delay between retries, grown according to strategy
// Returns the error from the last attempt if all attempts fail.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration, strategy Backoff) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "error", lastErr)

		// Don't sleep after the last attempt
		if attempt == maxAttempts {
			break
		}

		// Sleep with context awareness
		timer := time.NewTimer(strategy.Delay(baseDelay, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
