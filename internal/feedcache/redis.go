// Package feedcache stores composed feeds in Redis for a short TTL.
package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"FriendFeedwebserver/internal/domain"
)

const keyPrefix = "feed:"

type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{client: client, ttl: ttl}
}

func Key(userID string) string { return keyPrefix + userID }

// Get returns ok=false on a cache miss.
func (c *RedisCache) Get(ctx context.Context, userID string) ([]domain.FeedItem, bool, error) {
	data, err := c.client.Get(ctx, Key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached feed: %w", err)
	}
	var items []domain.FeedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("decode cached feed: %w", err)
	}
	return items, true, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, items []domain.FeedItem) error {
	if items == nil {
		items = []domain.FeedItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	if err := c.client.Set(ctx, Key(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache feed: %w", err)
	}
	return nil
}

// Invalidate drops the cached feeds of every given user in one round trip.
func (c *RedisCache) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, id := range userIDs {
		pipe.Del(ctx, Key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate feeds: %w", err)
	}
	return nil
}
