package orchestrator

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/errs"
)

// backoffFor computes the sleep before attempt (1-indexed; attempt 2 is
// the first retry), exponential with a configured multiplier and cap.
// No dedicated backoff library is used here; see DESIGN.md for why.
func backoffFor(policy config.RetryPolicy, attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	seconds := policy.BackoffSeconds * math.Pow(policy.BackoffMultiplier, float64(attempt-2))
	if policy.MaxBackoffSeconds > 0 && seconds > policy.MaxBackoffSeconds {
		seconds = policy.MaxBackoffSeconds
	}
	return time.Duration(seconds * float64(time.Second))
}

// runWithRetry executes fn up to policy.MaxAttempts times, honoring a
// TransportError's RetryAfter in preference to the computed backoff, and
// stopping immediately on a non-retryable error.
func runWithRetry(ctx context.Context, policy config.RetryPolicy, onAttempt func(attempt int), onRetrySleep func(attempt int, wait time.Duration), fn func() error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			wait := backoffFor(policy, attempt)
			var te *errs.TransportError
			if errors.As(lastErr, &te) && te.RetryAfter > 0 {
				wait = te.RetryAfter
			}
			if onRetrySleep != nil {
				onRetrySleep(attempt, wait)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		if onAttempt != nil {
			onAttempt(attempt)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !errs.IsRetryable(err) {
			return err
		}
		if attempt == maxAttempts {
			return err
		}
	}
	return lastErr
}
