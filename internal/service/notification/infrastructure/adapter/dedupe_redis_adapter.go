package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/redis"
)

// DedupeRedisAdapter 是 port.Deduplicator 的 Redis 实现：SETNX 带过期时间
type DedupeRedisAdapter struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewDedupeRedisAdapter(redisClient *redis.Client, ttl time.Duration) *DedupeRedisAdapter {
	return &DedupeRedisAdapter{redisClient: redisClient, ttl: ttl}
}

func dedupeKey(eventID string) string {
	return fmt.Sprintf("notification:event:{%s}", eventID)
}

func (a *DedupeRedisAdapter) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := a.redisClient.GetClient().SetNX(ctx, dedupeKey(eventID), 1, a.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "setnx %s", eventID)
	}
	return ok, nil
}

func (a *DedupeRedisAdapter) Release(ctx context.Context, eventID string) error {
	if err := a.redisClient.GetClient().Del(ctx, dedupeKey(eventID)).Err(); err != nil {
		return errors.Wrapf(err, "del %s", eventID)
	}
	return nil
}
