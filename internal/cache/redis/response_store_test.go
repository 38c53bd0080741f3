package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	rediscache "github.com/davidbz/codeassist/internal/cache/redis"
	"github.com/davidbz/codeassist/internal/domain"
)

// unreachable points at a port nothing listens on.
func unreachable(t *testing.T) *rediscache.ResponseStore {
	t.Helper()

	client := rediscache.NewClient(rediscache.Config{
		Addr:       "127.0.0.1:1",
		MaxRetries: -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	store, err := rediscache.NewResponseStore(client, "test:")
	require.NoError(t, err)
	return store
}

// newStore returns a store backed by an in-process redis server.
func newStore(t *testing.T) (*rediscache.ResponseStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := rediscache.NewClient(rediscache.Config{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	store, err := rediscache.NewResponseStore(client, "test:")
	require.NoError(t, err)
	return store, mr
}

func TestNewResponseStore_NilClient(t *testing.T) {
	store, err := rediscache.NewResponseStore(nil, "test:")

	require.Error(t, err)
	require.Nil(t, store)
	require.Contains(t, err.Error(), "redis client cannot be nil")
}

func TestResponseStore_SetRejectsNonPositiveTTL(t *testing.T) {
	store := unreachable(t)

	for _, ttl := range []time.Duration{0, -time.Second} {
		err := store.Set(context.Background(), "completion:abc", "text", ttl)
		require.Error(t, err)
		require.Contains(t, err.Error(), "ttl must be positive")
	}
}

func TestResponseStore_Unreachable(t *testing.T) {
	store := unreachable(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := store.Get(ctx, "completion:abc")
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrCacheMiss))
	require.Contains(t, err.Error(), "failed to read cached response")

	err = store.Set(ctx, "completion:abc", "text", time.Minute)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to store cached response")

	require.Error(t, store.Ping(ctx))
}

func TestResponseStore_GetMiss(t *testing.T) {
	store, _ := newStore(t)

	text, err := store.Get(context.Background(), "completion:absent")

	require.ErrorIs(t, err, domain.ErrCacheMiss)
	require.Empty(t, text)
}

func TestResponseStore_SetThenGet(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "completion:abc", "const y = 2;", time.Minute))

	text, err := store.Get(ctx, "completion:abc")
	require.NoError(t, err)
	require.Equal(t, "const y = 2;", text)

	// stored under the prefixed key with the requested ttl
	raw, err := mr.Get("test:completion:abc")
	require.NoError(t, err)
	require.Equal(t, "const y = 2;", raw)
	require.Equal(t, time.Minute, mr.TTL("test:completion:abc"))
	require.False(t, mr.Exists("completion:abc"))
}

func TestResponseStore_OverwritesEntry(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "completion:abc", "first", time.Minute))
	require.NoError(t, store.Set(ctx, "completion:abc", "second", time.Minute))

	text, err := store.Get(ctx, "completion:abc")
	require.NoError(t, err)
	require.Equal(t, "second", text)
}

func TestResponseStore_Expiry(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "completion:abc", "text", time.Minute))

	mr.FastForward(59 * time.Second)
	_, err := store.Get(ctx, "completion:abc")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, err = store.Get(ctx, "completion:abc")
	require.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestResponseStore_Ping(t *testing.T) {
	store, mr := newStore(t)

	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	require.Error(t, store.Ping(context.Background()))
}

func TestNewResponseCache(t *testing.T) {
	t.Run("should return nil when disabled", func(t *testing.T) {
		cache, err := rediscache.NewResponseCache(&rediscache.Config{Enabled: false})

		require.NoError(t, err)
		require.Nil(t, cache)
	})

	t.Run("should connect to configured server", func(t *testing.T) {
		mr := miniredis.RunT(t)

		cache, err := rediscache.NewResponseCache(&rediscache.Config{
			Enabled:   true,
			Addr:      mr.Addr(),
			KeyPrefix: "codeassist:",
		})
		require.NoError(t, err)
		require.NotNil(t, cache)

		ctx := context.Background()
		require.NoError(t, cache.Set(ctx, "completion:k", "v", time.Minute))
		require.True(t, mr.Exists("codeassist:completion:k"))
	})

	t.Run("should still build when server is unreachable", func(t *testing.T) {
		cache, err := rediscache.NewResponseCache(&rediscache.Config{
			Enabled:    true,
			Addr:       "127.0.0.1:1",
			KeyPrefix:  "codeassist:",
			MaxRetries: -1,
		})

		require.NoError(t, err)
		require.NotNil(t, cache)
	})
}

var _ domain.ResponseCache = (*rediscache.ResponseStore)(nil)
