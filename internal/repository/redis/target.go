package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const targetPrefix = "gate:target:"

// TargetStore keeps post-login redirect targets in Redis so any replica can
// finish a login that another replica redirected.
type TargetStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTargetStore creates a Redis-backed gate.TargetStore.
func NewTargetStore(client *redis.Client, ttl time.Duration) *TargetStore {
	return &TargetStore{client: client, ttl: ttl}
}

func (s *TargetStore) Remember(ctx context.Context, sessionID, path string) error {
	if err := s.client.Set(ctx, targetPrefix+sessionID, path, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis remember target: %w", err)
	}
	return nil
}

func (s *TargetStore) Consume(ctx context.Context, sessionID string) (string, error) {
	path, err := s.client.GetDel(ctx, targetPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis consume target: %w", err)
	}
	return path, nil
}
