package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	complaintSequenceKeyPrefix = "sns:complaint_seq:"
	complaintSequenceTTL       = 72 * time.Hour
)

// RedisComplaintCounter keeps per-day complaint sequences in Redis.
type RedisComplaintCounter struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisComplaintCounter constructs the counter. Keys expire after three days since a day's
// sequence is never consulted again once the day has passed.
func NewRedisComplaintCounter(client redis.Cmdable) *RedisComplaintCounter {
	return &RedisComplaintCounter{client: client, ttl: complaintSequenceTTL}
}

// Next atomically increments and returns the sequence for day (YYYYMMDD).
func (c *RedisComplaintCounter) Next(ctx context.Context, day string) (int64, error) {
	key := complaintSequenceKeyPrefix + day
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment complaint counter %s: %w", key, err)
	}
	return incr.Val(), nil
}
