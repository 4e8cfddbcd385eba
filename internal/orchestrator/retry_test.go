package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/errs"
)

func TestBackoffForCapsAtMaxBackoff(t *testing.T) {
	policy := config.RetryPolicy{BackoffSeconds: 1, BackoffMultiplier: 4, MaxBackoffSeconds: 5}
	assert.Equal(t, time.Duration(0), backoffFor(policy, 1))
	assert.Equal(t, time.Second, backoffFor(policy, 2))
	assert.Equal(t, 4*time.Second, backoffFor(policy, 3))
	assert.Equal(t, 5*time.Second, backoffFor(policy, 4), "must be capped at max_backoff_seconds")
}

func TestRunWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	policy := config.RetryPolicy{MaxAttempts: 3, BackoffSeconds: 0, BackoffMultiplier: 1}
	attempts := 0
	err := runWithRetry(context.Background(), policy, nil, nil, func() error {
		attempts++
		if attempts < 3 {
			return &errs.TransportError{Platform: "x", StatusCode: 503}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunWithRetryStopsImmediatelyOnNonRetryableError(t *testing.T) {
	policy := config.RetryPolicy{MaxAttempts: 5}
	attempts := 0
	err := runWithRetry(context.Background(), policy, nil, nil, func() error {
		attempts++
		return &errs.DataError{Step: "align", Msg: "bad schema"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRunWithRetryExhaustsMaxAttempts(t *testing.T) {
	policy := config.RetryPolicy{MaxAttempts: 3, BackoffSeconds: 0}
	attempts := 0
	err := runWithRetry(context.Background(), policy, nil, nil, func() error {
		attempts++
		return &errs.TransportError{Platform: "x", StatusCode: 500}
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunWithRetryHonorsContextCancellation(t *testing.T) {
	policy := config.RetryPolicy{MaxAttempts: 5, BackoffSeconds: 60}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := runWithRetry(ctx, policy, nil, nil, func() error {
		attempts++
		return &errs.TransportError{Platform: "x", StatusCode: 500}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "should stop before sleeping into the cancelled context on the first retry")
}
