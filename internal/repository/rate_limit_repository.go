package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitRepository counts requests per key in fixed Redis windows.
type RateLimitRepository interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

type rateLimitRepository struct {
	redis *redis.Client
}

// NewRateLimitRepository creates the repository.
func NewRateLimitRepository(client *redis.Client) RateLimitRepository {
	return &rateLimitRepository{redis: client}
}

// Increment bumps the counter for key. The key is created with its expiry in
// the same transaction as the increment, so a window can never outlive its
// TTL; a counter left without one is given the window again.
func (r *rateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	key = "ratelimit:" + key
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, window)
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if ttl.Val() < 0 {
		if err := r.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return incr.Val(), nil
}
