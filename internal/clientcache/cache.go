// Package clientcache caches client rows in Redis, keyed by platform id.
package clientcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Proton-105/promo-bot/internal/domain"
	appredis "github.com/Proton-105/promo-bot/pkg/redis"
)

// Store is the subset of the Redis client used by the cache.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache provides Redis-backed caching for client rows. A nil Cache or nil
// store turns every call into a miss.
type Cache struct {
	store Store
	ttl   time.Duration
}

// NewCache constructs a client cache backed by the provided Redis store.
func NewCache(store Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

// Get fetches a cached client if it exists.
func (c *Cache) Get(ctx context.Context, platformID string) (*domain.Client, error) {
	if c == nil || c.store == nil {
		return nil, nil
	}

	data, err := c.store.Get(ctx, cacheKey(platformID))
	if err != nil {
		if errors.Is(err, appredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached client: %w", err)
	}

	var client domain.Client
	if err := json.Unmarshal([]byte(data), &client); err != nil {
		return nil, fmt.Errorf("decode cached client: %w", err)
	}

	return &client, nil
}

// Set stores the client for the cache TTL.
func (c *Cache) Set(ctx context.Context, client *domain.Client) error {
	if c == nil || c.store == nil || client == nil {
		return nil
	}

	payload, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("encode client for cache: %w", err)
	}

	if err := c.store.Set(ctx, cacheKey(client.PlatformID), payload, c.ttl); err != nil {
		return fmt.Errorf("set cached client: %w", err)
	}

	return nil
}

// Invalidate removes the cached entry if it exists.
func (c *Cache) Invalidate(ctx context.Context, platformID string) error {
	if c == nil || c.store == nil {
		return nil
	}

	if err := c.store.Delete(ctx, cacheKey(platformID)); err != nil {
		return fmt.Errorf("delete cached client: %w", err)
	}

	return nil
}

func cacheKey(platformID string) string {
	return "client:" + platformID
}
