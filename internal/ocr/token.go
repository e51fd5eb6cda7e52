package ocr

import (
	"context"
	"sync"
	"time"
)

// tokenFetch obtains a fresh vendor credential and its lifetime.
type tokenFetch func(ctx context.Context) (token string, ttl time.Duration, err error)

// TokenCache is an owned, time-boxed credential cache. It is held by the
// backend that needs it and passed by reference, never process-global.
// Tokens are refreshed shortly before expiry so an in-flight request never
// carries a credential about to lapse.
type TokenCache struct {
	mu     sync.Mutex
	token  string
	expiry time.Time

	// now is swappable in tests.
	now func() time.Time
}

const expirySlack = 30 * time.Second

func NewTokenCache() *TokenCache {
	return &TokenCache{now: time.Now}
}

// Token returns the cached credential, fetching a new one when absent or
// within the slack window of expiring.
func (c *TokenCache) Token(ctx context.Context, fetch tokenFetch) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(expirySlack).Before(c.expiry) {
		return c.token, nil
	}

	token, ttl, err := fetch(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	c.expiry = c.now().Add(ttl)
	return token, nil
}
