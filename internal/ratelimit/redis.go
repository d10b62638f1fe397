package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ CounterStore = (*RedisCounters)(nil)

// RedisCounters is a CounterStore on a shared redis, so multiple instances
// behind a load balancer count attempts together. Increment-then-expire gives
// atomic fixed-window semantics without a script: INCR is atomic and only the
// first increment arms the expiry.
type RedisCounters struct {
	client *redis.Client
}

func NewRedisCounters(opts *redis.Options) (*RedisCounters, error) {
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCounters{client: client}, nil
}

func (r *RedisCounters) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (r *RedisCounters) Get(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (r *RedisCounters) Close() error {
	return r.client.Close()
}
