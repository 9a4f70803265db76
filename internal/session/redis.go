package session

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore implements Store on top of Redis. Every write refreshes the
// value's TTL, so a session stays alive as long as the visitor keeps
// interacting with it.
type RedisStore struct {
	client  *redis.Client
	baseTTL time.Duration
}

// NewRedisStore creates a RedisStore with the given idle TTL. A TTL of zero
// defaults to 24 hours.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, baseTTL: ttl}
}

func (s *RedisStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, storeKey(sessionID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoValue
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	// Jitter spreads expirations so a burst of sessions created together
	// does not expire together.
	jitter := time.Duration(rand.Intn(300)) * time.Second
	if err := s.client.Set(ctx, storeKey(sessionID, key), value, s.baseTTL+jitter).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID, key string) error {
	if err := s.client.Del(ctx, storeKey(sessionID, key)).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

func storeKey(sessionID, key string) string {
	return fmt.Sprintf("session:%s:%s", sessionID, key)
}
