package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RotationStore records spent refresh-token IDs in Redis, backing single-use
// rotation. Keys live exactly as long as the token they retire would have:
// after that the signature expiry rejects the token anyway.
// Key format: auth:spent:<jti>
type RotationStore struct {
	client *redis.Client
}

// NewRotationStore wraps the given Redis client.
func NewRotationStore(client *redis.Client) *RotationStore {
	return &RotationStore{client: client}
}

// MarkSpent retires a refresh token ID for ttl.
func (s *RotationStore) MarkSpent(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.client.Set(ctx, s.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("mark refresh token spent: %w", err)
	}
	return nil
}

// IsSpent reports whether the refresh token ID has already been rotated out.
func (s *RotationStore) IsSpent(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("rotation check: %w", err)
	}
	return n > 0, nil
}

func (s *RotationStore) key(jti string) string {
	return "auth:spent:" + jti
}
