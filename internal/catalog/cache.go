// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/recsync/internal/cache"
	"github.com/tomtom215/recsync/internal/config"
	"github.com/tomtom215/recsync/internal/metrics"
	"github.com/tomtom215/recsync/internal/models"
)

// Cache is one metadata cache tier.
type Cache interface {
	Name() string
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ItemMetadata, error)
	SetMany(ctx context.Context, items map[uuid.UUID]models.ItemMetadata) error
}

// LocalCache is an in-process LRU tier.
type LocalCache struct {
	lru *cache.LRU[uuid.UUID, models.ItemMetadata]
}

// NewLocalCache creates an LRU tier holding up to size entries for ttl.
func NewLocalCache(size int, ttl time.Duration) *LocalCache {
	return &LocalCache{lru: cache.NewLRU[uuid.UUID, models.ItemMetadata](size, ttl)}
}

// Name implements Cache.
func (c *LocalCache) Name() string { return "local" }

// GetMany implements Cache.
func (c *LocalCache) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ItemMetadata, error) {
	out := make(map[uuid.UUID]models.ItemMetadata)
	for _, id := range ids {
		md, ok := c.lru.Get(id)
		metrics.RecordCacheLookup("catalog_local", ok)
		if ok {
			out[id] = md
		}
	}
	return out, nil
}

// SetMany implements Cache.
func (c *LocalCache) SetMany(_ context.Context, items map[uuid.UUID]models.ItemMetadata) error {
	for id, md := range items {
		c.lru.Add(id, md)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *LocalCache) Len() int {
	return c.lru.Len()
}

// Sweep drops expired entries and reports how many were removed. Its
// signature matches a periodic maintenance task.
func (c *LocalCache) Sweep(_ context.Context) (int, error) {
	return c.lru.CleanupExpired(), nil
}

// RedisCache is a shared cache-aside tier. Entries are JSON values under
// KeyPrefix+id with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Connect creates a Redis client from a redis:// URL or a host:port address
// and verifies it with PING.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedisCache wraps client using the prefix and TTL from cfg.
func NewRedisCache(client *redis.Client, cfg *config.RedisConfig) *RedisCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{client: client, prefix: cfg.KeyPrefix, ttl: ttl}
}

// Name implements Cache.
func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) key(id uuid.UUID) string {
	return c.prefix + id.String()
}

// GetMany implements Cache with a single MGET.
func (c *RedisCache) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ItemMetadata, error) {
	out := make(map[uuid.UUID]models.ItemMetadata)
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		metrics.RecordCacheLookup("catalog_redis", ok)
		if !ok {
			continue
		}
		var md models.ItemMetadata
		if err := json.Unmarshal([]byte(s), &md); err != nil {
			continue
		}
		out[ids[i]] = md
	}
	return out, nil
}

// SetMany implements Cache with one pipelined SET per entry.
func (c *RedisCache) SetMany(ctx context.Context, items map[uuid.UUID]models.ItemMetadata) error {
	if len(items) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for id, md := range items {
		b, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", id, err)
		}
		pipe.Set(ctx, c.key(id), b, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Ping checks the Redis connection for health reporting.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
