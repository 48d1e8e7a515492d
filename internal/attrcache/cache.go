// Package attrcache is the read-through attribute cache in front of the graph
// engine: flat attribute records stored as JSON in Redis, keyed by entity
// family and concept id. The cache is never authoritative.
package attrcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Cache reads and writes attribute records in Redis.
type Cache struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix sets the key prefix (default "graphcore:attrs").
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// WithTTL expires written records after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// NewFromClient creates a cache on an existing Redis client. A nil client
// yields a disabled cache that always misses.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Cache {
	c := &Cache{client: client, prefix: "graphcore:attrs"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the cache has a backend.
func (c *Cache) Enabled() bool { return c != nil && c.client != nil }

func (c *Cache) key(family, id string) string {
	return c.prefix + ":" + family + ":" + id
}

// Get returns the record for id in family, or nil on a miss.
func (c *Cache) Get(ctx context.Context, family, id string) (map[string]any, error) {
	if !c.Enabled() {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, c.key(family, id)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("attrcache get %s/%s: %w", family, id, err)
	}

	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("attrcache decode %s/%s: %w", family, id, err)
	}
	if len(record) == 0 {
		return nil, nil
	}
	return record, nil
}

// Put stores record for id in family. The graph layer never calls it; it
// exists for the indexer that owns the cache and for seeding.
func (c *Cache) Put(ctx context.Context, family, id string, record map[string]any) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("attrcache encode %s/%s: %w", family, id, err)
	}
	if err := c.client.Set(ctx, c.key(family, id), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("attrcache put %s/%s: %w", family, id, err)
	}
	return nil
}

// Delete removes the record for id in family.
func (c *Cache) Delete(ctx context.Context, family, id string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Del(ctx, c.key(family, id)).Err(); err != nil {
		return fmt.Errorf("attrcache delete %s/%s: %w", family, id, err)
	}
	return nil
}

// Ping checks the backend. A disabled cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
