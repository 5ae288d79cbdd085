package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the token record in Redis with a TTL matching the
// token's remaining lifetime, so expired records disappear on their own.
type RedisStore struct {
	client *redis.Client
	key    string

	// Now returns the current time; overridden in tests
	Now func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store under namespace (e.g. "gamesdb").
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	key := TokenKey
	if namespace != "" {
		key = namespace + ":" + TokenKey
	}
	return &RedisStore{client: client, key: key, Now: time.Now}
}

func (s *RedisStore) Load(ctx context.Context) (*Token, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis_token_get_failed: %w", err)
	}
	return decodeToken(data, s.Now()), nil
}

func (s *RedisStore) Save(ctx context.Context, t Token) error {
	ttl := t.ExpiresAt.Sub(s.Now())
	if ttl <= 0 {
		// Already expired: nothing worth keeping
		return nil
	}

	data, err := encodeToken(t)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis_token_set_failed: %w", err)
	}
	return nil
}
