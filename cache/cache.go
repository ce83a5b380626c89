// Package cache adds read-through caching to dataset fetchers.
//
// Shard documents are immutable for a given dataset, so a fetched document
// can be kept indefinitely and shared between processes. Keys are derived
// from a scope (typically the dataset location) and the document name, so
// one cache can hold several datasets side by side.
package cache

import (
	"context"

	"github.com/opencontainers/go-digest"
)

// Cache stores fetched documents by key.
//
// Implementations should handle their own size limits and eviction policies
// and must be safe for concurrent use.
type Cache interface {
	// Get retrieves the document stored under key.
	// Returns nil, false if the document is not cached.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Put stores content under key.
	Put(ctx context.Context, key string, content []byte) error
}

// Key returns the cache key for document name within scope: the hex
// encoded SHA256 of the pair.
func Key(scope, name string) string {
	return digest.FromString(scope + "\x00" + name).Encoded()
}
