package token

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/errs"
)

func TestGetTokenCachesUntilExpiryBuffer(t *testing.T) {
	var refreshCount int32
	refresh := func(ctx context.Context, platform string) (Token, error) {
		atomic.AddInt32(&refreshCount, 1)
		return Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	cache := NewInMemoryCache(refresh, time.Minute)

	tok1, err := cache.GetToken(context.Background(), "linkedin")
	require.NoError(t, err)
	tok2, err := cache.GetToken(context.Background(), "linkedin")
	require.NoError(t, err)

	assert.Equal(t, tok1, tok2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCount))
}

func TestGetTokenRefreshesWithinExpiryBuffer(t *testing.T) {
	var refreshCount int32
	refresh := func(ctx context.Context, platform string) (Token, error) {
		n := atomic.AddInt32(&refreshCount, 1)
		return Token{Value: "tok", ExpiresAt: time.Now().Add(time.Duration(n) * time.Millisecond)}, nil
	}
	cache := NewInMemoryCache(refresh, time.Hour) // buffer bigger than any expiry above: always refresh

	_, err := cache.GetToken(context.Background(), "linkedin")
	require.NoError(t, err)
	_, err = cache.GetToken(context.Background(), "linkedin")
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&refreshCount))
}

func TestRefreshForcesReplacementRegardlessOfFreshness(t *testing.T) {
	var refreshCount int32
	refresh := func(ctx context.Context, platform string) (Token, error) {
		atomic.AddInt32(&refreshCount, 1)
		return Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	cache := NewInMemoryCache(refresh, time.Minute)

	_, err := cache.GetToken(context.Background(), "linkedin")
	require.NoError(t, err)
	_, err = cache.Refresh(context.Background(), "linkedin")
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&refreshCount))
}

func TestRefreshFailureWrapsAsRetryableAuthError(t *testing.T) {
	refresh := func(ctx context.Context, platform string) (Token, error) {
		return Token{}, assertError{}
	}
	cache := NewInMemoryCache(refresh, time.Minute)

	_, err := cache.GetToken(context.Background(), "google")
	require.Error(t, err)
	var authErr *errs.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, authErr.Retryable)
}

func TestGetTokenSerializesConcurrentRefreshPerPlatform(t *testing.T) {
	var refreshCount int32
	var wg sync.WaitGroup
	refresh := func(ctx context.Context, platform string) (Token, error) {
		atomic.AddInt32(&refreshCount, 1)
		time.Sleep(5 * time.Millisecond)
		return Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	cache := NewInMemoryCache(refresh, time.Minute)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.GetToken(context.Background(), "linkedin")
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCount), "concurrent callers should share one refresh")
}

type assertError struct{}

func (assertError) Error() string { return "refresh failed" }
