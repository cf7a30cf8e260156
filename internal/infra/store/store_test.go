package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"authsvc/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisRevocationStore(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	s := NewRedisRevocationStore(client, "test:")
	expiresAt := time.Now().Add(time.Hour)

	require.NoError(t, s.Revoke(ctx, "token-a", expiresAt))

	claimed, err := s.Claim(ctx, "token-a", expiresAt)
	require.NoError(t, err)
	assert.False(t, claimed, "a revoked token cannot be claimed")

	claimed, err = s.Claim(ctx, "token-b", expiresAt)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.Claim(ctx, "token-b", expiresAt)
	require.NoError(t, err)
	assert.False(t, claimed, "a token is claimed once")

	// The raw token never appears in a key.
	for _, key := range mr.Keys() {
		assert.NotContains(t, key, "token-a")
		assert.NotContains(t, key, "token-b")
	}

	// The deny-list entry disappears with the token's expiry.
	mr.FastForward(2 * time.Hour)
	assert.Empty(t, mr.Keys())
}

func TestRedisRevocationStore_IgnoresExpiredTokens(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	s := NewRedisRevocationStore(client, "test:")

	require.NoError(t, s.Revoke(ctx, "expired", time.Now().Add(-time.Second)))

	claimed, err := s.Claim(ctx, "expired", time.Now().Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Empty(t, mr.Keys())
}

func TestRevocationStore_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	_, client := setupTestRedis(t)
	stores := map[string]interface {
		Claim(ctx context.Context, token string, expiresAt time.Time) (bool, error)
	}{
		"redis":  NewRedisRevocationStore(client, "test:"),
		"memory": NewMemoryRevocationStore(time.Now),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			const workers = 20
			var (
				wg      sync.WaitGroup
				winners atomic.Int32
			)
			expiresAt := time.Now().Add(time.Hour)

			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					claimed, err := s.Claim(context.Background(), "shared-token", expiresAt)
					assert.NoError(t, err)
					if claimed {
						winners.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), winners.Load())
		})
	}
}

func TestMemoryRevocationStore(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryRevocationStore(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Revoke(ctx, "token", now.Add(time.Hour)))
	claimed, err := s.Claim(ctx, "token", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = s.Claim(ctx, "fresh", now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, claimed)

	// Once expired, the entry is dropped; the token itself no longer verifies.
	now = now.Add(2 * time.Hour)
	claimed, err = s.Claim(ctx, "token", now.Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Empty(t, s.tokens)
}

func TestNewTokenRevocationStore(t *testing.T) {
	_, client := setupTestRedis(t)

	cfg := &config.Config{Auth: &config.AuthConfig{RefreshRevocation: false}}
	assert.IsType(t, noopRevocationStore{}, NewTokenRevocationStore(cfg, client))

	cfg.Auth.RefreshRevocation = true
	assert.IsType(t, &MemoryRevocationStore{}, NewTokenRevocationStore(cfg, nil))
	assert.IsType(t, &RedisRevocationStore{}, NewTokenRevocationStore(cfg, client))
}

func TestRedisOAuthStateStore_SingleUse(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	s := NewRedisOAuthStateStore(client, "test:")

	require.NoError(t, s.Save(ctx, "nonce", time.Minute))
	assert.Error(t, s.Save(ctx, "nonce", time.Minute))

	ok, err := s.Consume(ctx, "nonce")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, "nonce")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Consume(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisOAuthStateStore_Expiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	s := NewRedisOAuthStateStore(client, "test:")

	require.NoError(t, s.Save(ctx, "nonce", time.Minute))
	mr.FastForward(2 * time.Minute)

	ok, err := s.Consume(ctx, "nonce")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryOAuthStateStore(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryOAuthStateStore(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "fresh", time.Minute))
	require.NoError(t, s.Save(ctx, "stale", time.Minute))

	ok, err := s.Consume(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.Consume(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryOAuthStateStore_ConcurrentConsume(t *testing.T) {
	s := NewMemoryOAuthStateStore(time.Now)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "nonce", time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Consume(ctx, "nonce"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
