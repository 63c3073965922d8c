package auth

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "pillcare:revoked:"

// RedisRevocationStore shares revocations across server replicas. Keys
// expire together with the token they block.
type RedisRevocationStore struct {
	client *goredis.Client
	now    func() time.Time
}

func NewRedisRevocationStore(client *goredis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, now: time.Now}
}

// NewRedisClient parses a redis:// URL and verifies the server responds.
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func revokedKey(jti string) string {
	return revokedKeyPrefix + jti
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKey(jti), userID, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token %s: %w", jti, err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation %s: %w", jti, err)
	}
	return n > 0, nil
}
