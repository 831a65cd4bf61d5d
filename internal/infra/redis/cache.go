package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dealroom/api/pkg/logger"
)

// Cache provides type-safe JSON caching under a key prefix.
type Cache[T any] struct {
	rdb       *redis.Client
	logger    *logger.Logger
	keyPrefix string
	ttl       time.Duration
}

// NewCache creates a new type-safe cache.
func NewCache[T any](client *Client, prefix string, ttl time.Duration) (*Cache[T], error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if ttl <= 0 {
		return nil, errors.New("TTL must be positive")
	}

	return &Cache[T]{
		rdb:       client.client,
		logger:    client.logger,
		keyPrefix: prefix,
		ttl:       ttl,
	}, nil
}

func (c *Cache[T]) buildKey(key string) string {
	return c.keyPrefix + ":" + key
}

// Get retrieves a cached value by key.
// Returns ErrCacheMiss if the key does not exist.
func (c *Cache[T]) Get(ctx context.Context, key string) (*T, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}

	done := Timed("cache_get")
	data, err := c.rdb.Get(ctx, c.buildKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		DefaultMetrics.RecordCacheMiss(c.keyPrefix)
		done(nil)
		return nil, ErrCacheMiss
	}
	if err != nil {
		done(err)
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		done(err)
		return nil, fmt.Errorf("cache unmarshal: %w", err)
	}

	DefaultMetrics.RecordCacheHit(c.keyPrefix)
	done(nil)
	return &value, nil
}

// Set stores a value with the default TTL.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) error {
	if key == "" {
		return errors.New("key is required")
	}

	done := Timed("cache_set")
	data, err := json.Marshal(value)
	if err != nil {
		done(err)
		return fmt.Errorf("cache marshal: %w", err)
	}

	if err := c.rdb.Set(ctx, c.buildKey(key), data, c.ttl).Err(); err != nil {
		done(err)
		return fmt.Errorf("cache set: %w", err)
	}

	done(nil)
	return nil
}

// Delete removes a key from the cache.
func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key is required")
	}

	done := Timed("cache_delete")
	err := c.rdb.Del(ctx, c.buildKey(key)).Err()
	done(err)
	if err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// GetOrSetFallback returns the cached value, or calls loader and caches
// the result. Redis errors fall back to the loader and are only logged.
func (c *Cache[T]) GetOrSetFallback(ctx context.Context, key string, loader func(ctx context.Context) (*T, error)) (*T, error) {
	if loader == nil {
		return nil, errors.New("loader function is required")
	}

	value, err := c.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("cache get failed, falling back to source", "key", key, "error", err)
	}

	value, err = loader(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, *value); err != nil {
		c.logger.Warn("cache set failed after load", "key", key, "error", err)
	}
	return value, nil
}

// TTL returns the default TTL for this cache.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Prefix returns the key prefix for this cache.
func (c *Cache[T]) Prefix() string {
	return c.keyPrefix
}
