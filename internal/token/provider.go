// Package token caches per-platform authentication tokens in memory,
// refreshing on demand within a fixed buffer of expiry.
package token

import (
	"context"
	"sync"
	"time"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/errs"
)

// Token is an opaque bearer credential with a known expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// expired reports whether t is within buffer of its expiry, or already
// past it.
func (t Token) expired(now time.Time, buffer time.Duration) bool {
	return !now.Before(t.ExpiresAt.Add(-buffer))
}

// Refresher mints a fresh token for platform. Implemented outside the
// core by each platform's credential exchange (client id/secret/refresh
// token against the platform's OAuth endpoint); the core only consumes
// the interface.
type Refresher func(ctx context.Context, platform string) (Token, error)

// Provider is the minimal contract the platform pipelines depend on:
// GetToken returns a cached token if still fresh, Refresh forces a new one.
type Provider interface {
	GetToken(ctx context.Context, platform string) (Token, error)
	Refresh(ctx context.Context, platform string) (Token, error)
}

// InMemoryCache is the default Provider: an in-memory token cache with a
// per-platform lock, ensuring at-most-one-concurrent refresh per platform
// (other callers block on the refresh). No persistence: tokens live only
// for the process lifetime.
type InMemoryCache struct {
	refresh Refresher
	buffer  time.Duration

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	tokens map[string]Token
	now    func() time.Time
}

// defaultExpiryBuffer refreshes a token when within five minutes of
// expiry.
const defaultExpiryBuffer = 5 * time.Minute

// NewInMemoryCache builds a cache that calls refresh to mint or renew
// tokens. buffer overrides the default five-minute expiry margin when
// positive.
func NewInMemoryCache(refresh Refresher, buffer time.Duration) *InMemoryCache {
	if buffer <= 0 {
		buffer = defaultExpiryBuffer
	}
	return &InMemoryCache{
		refresh: refresh,
		buffer:  buffer,
		locks:   map[string]*sync.Mutex{},
		tokens:  map[string]Token{},
		now:     time.Now,
	}
}

func (c *InMemoryCache) lockFor(platform string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.locks[platform]
	if !ok {
		m = &sync.Mutex{}
		c.locks[platform] = m
	}
	return m
}

// GetToken returns the cached token for platform if it is not within the
// expiry buffer, otherwise refreshes it first.
func (c *InMemoryCache) GetToken(ctx context.Context, platform string) (Token, error) {
	lock := c.lockFor(platform)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	tok, ok := c.tokens[platform]
	c.mu.Unlock()

	if ok && !tok.expired(c.now(), c.buffer) {
		return tok, nil
	}
	return c.refreshLocked(ctx, platform)
}

// Refresh forces a new token regardless of the cached one's freshness.
func (c *InMemoryCache) Refresh(ctx context.Context, platform string) (Token, error) {
	lock := c.lockFor(platform)
	lock.Lock()
	defer lock.Unlock()
	return c.refreshLocked(ctx, platform)
}

func (c *InMemoryCache) refreshLocked(ctx context.Context, platform string) (Token, error) {
	tok, err := c.refresh(ctx, platform)
	if err != nil {
		return Token{}, &errs.AuthError{Platform: platform, Msg: err.Error(), Retryable: true}
	}
	c.mu.Lock()
	c.tokens[platform] = tok
	c.mu.Unlock()
	return tok, nil
}
