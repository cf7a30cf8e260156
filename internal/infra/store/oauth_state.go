package store

import (
	"context"
	"sync"
	"time"

	"authsvc/config"
	"authsvc/internal/domain/service"
	"authsvc/internal/errors"

	"github.com/redis/go-redis/v9"
)

// NewOAuthStateStore uses Redis when available so callbacks may land on any instance.
func NewOAuthStateStore(cfg *config.Config, client *redis.Client) service.OAuthStateStore {
	if client == nil {
		return NewMemoryOAuthStateStore(time.Now)
	}

	return NewRedisOAuthStateStore(client, keyPrefix(cfg))
}

// RedisOAuthStateStore stores each nonce with SETNX and redeems it with GETDEL.
type RedisOAuthStateStore struct {
	client *redis.Client
	prefix string
}

func NewRedisOAuthStateStore(client *redis.Client, prefix string) *RedisOAuthStateStore {
	return &RedisOAuthStateStore{client: client, prefix: prefix}
}

func (s *RedisOAuthStateStore) key(nonce string) string {
	return s.prefix + "oauth:state:" + nonce
}

func (s *RedisOAuthStateStore) Save(ctx context.Context, nonce string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.key(nonce), 1, ttl).Result()
	if err != nil {
		return errors.Wrap(err, "failed to store oauth state")
	}
	if !ok {
		return errors.New("oauth state already exists")
	}

	return nil
}

func (s *RedisOAuthStateStore) Consume(ctx context.Context, nonce string) (bool, error) {
	err := s.client.GetDel(ctx, s.key(nonce)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to consume oauth state")
	}

	return true, nil
}

// MemoryOAuthStateStore keeps nonces in a map with their expiry.
type MemoryOAuthStateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

func NewMemoryOAuthStateStore(now func() time.Time) *MemoryOAuthStateStore {
	return &MemoryOAuthStateStore{
		states: make(map[string]time.Time),
		now:    now,
	}
}

func (s *MemoryOAuthStateStore) Save(_ context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpired()
	if _, exists := s.states[nonce]; exists {
		return errors.New("oauth state already exists")
	}
	s.states[nonce] = s.now().Add(ttl)

	return nil
}

// Consume removes the nonce even when it has expired, preventing replay either way.
func (s *MemoryOAuthStateStore) Consume(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.states[nonce]
	if !exists {
		return false, nil
	}
	delete(s.states, nonce)

	return s.now().Before(expiry), nil
}

func (s *MemoryOAuthStateStore) cleanupExpired() {
	now := s.now()
	for nonce, expiry := range s.states {
		if !now.Before(expiry) {
			delete(s.states, nonce)
		}
	}
}
