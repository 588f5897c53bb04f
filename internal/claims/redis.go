package claims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"docroute-api/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "claims:identity:"

// RedisStore is the Redis-backed Claims Store implementation. The identity
// provider reads these records when minting tokens, which is why entries never
// expire: a missing record would silently demote an identity to defaults.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new RedisStore
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get retrieves the claims record for an identity
func (s *RedisStore) Get(ctx context.Context, uid string) (domain.Claims, error) {
	raw, err := s.client.Get(ctx, keyPrefix+uid).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Claims{}, ErrNotFound
		}
		return domain.Claims{}, fmt.Errorf("get claims for %s: %w", uid, err)
	}

	var c domain.Claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Claims{}, fmt.Errorf("decode claims for %s: %w", uid, err)
	}
	return c, nil
}

// Set overwrites the claims record for an identity
func (s *RedisStore) Set(ctx context.Context, uid string, claims domain.Claims) error {
	raw, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encode claims for %s: %w", uid, err)
	}

	if err := s.client.Set(ctx, keyPrefix+uid, raw, 0).Err(); err != nil {
		return fmt.Errorf("set claims for %s: %w", uid, err)
	}
	return nil
}
