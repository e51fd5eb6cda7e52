package ocr

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCache_FetchesOnce(t *testing.T) {
	cache := NewTokenCache()
	fetches := 0
	fetch := func(ctx context.Context) (string, time.Duration, error) {
		fetches++
		return fmt.Sprintf("tok-%d", fetches), time.Hour, nil
	}

	tok, err := cache.Token(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	tok, err = cache.Token(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, 1, fetches)
}

func TestTokenCache_RefreshesNearExpiry(t *testing.T) {
	now := time.Now()
	cache := NewTokenCache()
	cache.now = func() time.Time { return now }

	fetches := 0
	fetch := func(ctx context.Context) (string, time.Duration, error) {
		fetches++
		return fmt.Sprintf("tok-%d", fetches), time.Minute, nil
	}

	tok, err := cache.Token(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// Inside the slack window the token counts as expired even though
	// its nominal lifetime has not elapsed.
	now = now.Add(45 * time.Second)
	tok, err = cache.Token(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, 2, fetches)
}

func TestTokenCache_FetchErrorNotCached(t *testing.T) {
	cache := NewTokenCache()
	calls := 0
	failing := func(ctx context.Context) (string, time.Duration, error) {
		calls++
		return "", 0, fmt.Errorf("vendor down")
	}

	_, err := cache.Token(context.Background(), failing)
	assert.Error(t, err)

	_, err = cache.Token(context.Background(), failing)
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}
