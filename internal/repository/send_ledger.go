package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSendLedger records delivered notifications as expiring Redis keys.
type RedisSendLedger struct {
	client *redis.Client
}

// NewRedisSendLedger wraps a Redis client.
func NewRedisSendLedger(client *redis.Client) *RedisSendLedger {
	return &RedisSendLedger{client: client}
}

// Claim sets key if absent. It returns false when another delivery already holds it.
func (l *RedisSendLedger) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Release drops key so a later attempt can deliver again.
func (l *RedisSendLedger) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}
