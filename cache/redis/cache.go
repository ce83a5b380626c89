// Package redis provides a cache shared between processes, backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/meigma/zipgrid/cache"
)

const defaultKeyPrefix = "zipgrid:"

// Cache implements cache.Cache on a Redis server.
type Cache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
	owned  bool
}

var _ cache.Cache = (*Cache)(nil)

// Option configures a Redis cache.
type Option func(*Cache)

// WithKeyPrefix sets the prefix prepended to every key. Defaults to "zipgrid:".
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithTTL sets the expiry applied to stored entries. Zero keeps entries
// until Redis evicts them.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithLogger sets the logger used to report lookup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client *goredis.Client, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Open connects to the server at url (redis:// or rediss://) and verifies
// the connection. Close releases the connection.
func Open(ctx context.Context, url string, opts ...Option) (*Cache, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	c := New(client, opts...)
	c.owned = true
	return c, nil
}

// Get retrieves the document stored under key. Connection errors are
// logged and reported as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("redis get failed", "key", key, "error", err)
		return nil, false
	}
	return data, true
}

// Put stores content under key with the configured TTL.
func (c *Cache) Put(ctx context.Context, key string, content []byte) error {
	if err := c.client.Set(ctx, c.prefix+key, content, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the client if it was created by Open.
func (c *Cache) Close() error {
	if !c.owned {
		return nil
	}
	return c.client.Close()
}
