package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	schemaCachePrefix     = "nl2sql:schema:"
	defaultSchemaCacheTTL = time.Hour
)

// SchemaCache keeps rendered schema context in Redis, keyed by connection and
// table set.
type SchemaCache struct {
	client *Client
	ttl    time.Duration
}

// NewSchemaCache creates a new schema cache. A non-positive ttl uses one hour.
func NewSchemaCache(client *Client, ttl time.Duration) *SchemaCache {
	if ttl <= 0 {
		ttl = defaultSchemaCacheTTL
	}
	return &SchemaCache{client: client, ttl: ttl}
}

// Get returns the cached context. Any Redis failure counts as a miss.
func (c *SchemaCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.rdb.Get(ctx, schemaCachePrefix+key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

// Set caches value under key.
func (c *SchemaCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.rdb.Set(ctx, schemaCachePrefix+key, value, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("schema cache write failed")
		return fmt.Errorf("failed to cache schema: %w", err)
	}
	return nil
}

// Invalidate removes one cached entry.
func (c *SchemaCache) Invalidate(ctx context.Context, key string) error {
	return c.client.rdb.Del(ctx, schemaCachePrefix+key).Err()
}

// FlushAll removes all cached schemas
func (c *SchemaCache) FlushAll(ctx context.Context) (int64, error) {
	pattern := schemaCachePrefix + "*"
	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := c.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := c.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
