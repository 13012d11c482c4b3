package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"kasirtoko/backend/internal/domain"
)

type RedisSummaryCache struct {
	client *redis.Client
}

func NewRedisSummaryCache(addr string, password string, db int) *RedisSummaryCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSummaryCache{client: client}
}

func (c *RedisSummaryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSummaryCache) Close() error {
	return c.client.Close()
}

func (c *RedisSummaryCache) Get(ctx context.Context, key string) (*domain.SalesSummary, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var summary domain.SalesSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, false, err
	}
	return &summary, true, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, key string, value *domain.SalesSummary, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisSummaryCache) Generation(ctx context.Context, storeID string) (int64, error) {
	gen, err := c.client.Get(ctx, GenerationKey(storeID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Invalidate moves the store to a new generation and removes its cached
// summaries.
func (c *RedisSummaryCache) Invalidate(ctx context.Context, storeID string) error {
	if err := c.client.Incr(ctx, GenerationKey(storeID)).Err(); err != nil {
		return err
	}
	iter := c.client.Scan(ctx, 0, storePrefix+storeID+":*", 100).Iterator()
	keys := make([]string, 0, 8)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
