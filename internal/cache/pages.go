// Package cache keeps page extractions keyed by document hash so that a
// resubmitted PDF skips the extraction call.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Lllllllleong/lessonswarm/internal/models"
)

const (
	DefaultPageTTL = 24 * time.Hour
	keyPrefix      = "swarm:pages:"
)

type RedisPageCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisPageCache(client redis.Cmdable, ttl time.Duration) *RedisPageCache {
	if ttl <= 0 {
		ttl = DefaultPageTTL
	}
	return &RedisPageCache{client: client, ttl: ttl}
}

// Connect opens a client for addr and checks it answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func pageKey(hash string) string {
	return keyPrefix + hash
}

func (c *RedisPageCache) Get(ctx context.Context, hash string) ([]models.PageContent, bool, error) {
	raw, err := c.client.Get(ctx, pageKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached pages: %w", err)
	}
	var pages []models.PageContent
	if err := json.Unmarshal(raw, &pages); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached pages: %w", err)
	}
	return pages, true, nil
}

func (c *RedisPageCache) Set(ctx context.Context, hash string, pages []models.PageContent) error {
	raw, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("failed to encode pages: %w", err)
	}
	if err := c.client.Set(ctx, pageKey(hash), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache pages: %w", err)
	}
	return nil
}
