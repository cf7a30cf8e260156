package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"authsvc/config"
	"authsvc/internal/domain/service"
	"authsvc/internal/errors"

	"github.com/redis/go-redis/v9"
)

// NewTokenRevocationStore picks the backend from configuration. With revocation
// disabled, refresh tokens stay valid until they expire.
func NewTokenRevocationStore(cfg *config.Config, client *redis.Client) service.TokenRevocationStore {
	if cfg.Auth == nil || !cfg.Auth.RefreshRevocation {
		return noopRevocationStore{}
	}
	if client == nil {
		return NewMemoryRevocationStore(time.Now)
	}

	return NewRedisRevocationStore(client, keyPrefix(cfg))
}

// tokenKey hashes the token so raw refresh tokens never sit in the store.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

type noopRevocationStore struct{}

func (noopRevocationStore) Revoke(context.Context, string, time.Time) error { return nil }

func (noopRevocationStore) Claim(context.Context, string, time.Time) (bool, error) { return true, nil }

// RedisRevocationStore keeps a deny-list entry per token until the token expires.
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
}

func NewRedisRevocationStore(client *redis.Client, prefix string) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, prefix: prefix}
}

func (s *RedisRevocationStore) tokenKey(token string) string {
	return s.prefix + "revoked:token:" + tokenKey(token)
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, s.tokenKey(token), 1, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to revoke token")
	}

	return nil
}

// Claim relies on SET NX, so concurrent refreshes with one token race on a single key.
func (s *RedisRevocationStore) Claim(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// The token can no longer verify, so it cannot be exchanged either.
		return false, nil
	}

	claimed, err := s.client.SetNX(ctx, s.tokenKey(token), 1, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to claim token")
	}

	return claimed, nil
}

// MemoryRevocationStore is the single-process fallback.
type MemoryRevocationStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

func NewMemoryRevocationStore(now func() time.Time) *MemoryRevocationStore {
	return &MemoryRevocationStore{
		tokens: make(map[string]time.Time),
		now:    now,
	}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpired()
	if expiresAt.After(s.now()) {
		s.tokens[tokenKey(token)] = expiresAt
	}

	return nil
}

func (s *MemoryRevocationStore) Claim(_ context.Context, token string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpired()
	if !expiresAt.After(s.now()) {
		return false, nil
	}

	key := tokenKey(token)
	if _, revoked := s.tokens[key]; revoked {
		return false, nil
	}
	s.tokens[key] = expiresAt

	return true, nil
}

// cleanupExpired drops deny-list entries whose tokens can no longer verify anyway.
func (s *MemoryRevocationStore) cleanupExpired() {
	now := s.now()
	for key, expiresAt := range s.tokens {
		if !expiresAt.After(now) {
			delete(s.tokens, key)
		}
	}
}
