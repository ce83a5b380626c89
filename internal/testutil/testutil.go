// Package testutil provides in-memory fetchers and caches for tests.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/meigma/zipgrid/dataset"
)

// MemFetcher implements dataset.Fetcher over an in-memory document map and
// counts fetches per name.
type MemFetcher struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	errs   map[string]error
	counts map[string]int
	total  atomic.Int64
}

// NewMemFetcher returns a fetcher serving docs.
func NewMemFetcher(docs map[string][]byte) *MemFetcher {
	m := &MemFetcher{
		docs:   make(map[string][]byte, len(docs)),
		errs:   make(map[string]error),
		counts: make(map[string]int),
	}
	for k, v := range docs {
		m.docs[k] = v
	}
	return m
}

// Fetch returns the document for name, or an error wrapping fs.ErrNotExist.
func (m *MemFetcher) Fetch(_ context.Context, name string) ([]byte, error) {
	m.total.Add(1)
	m.mu.Lock()
	m.counts[name]++
	err := m.errs[name]
	data, ok := m.docs[name]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", name, fs.ErrNotExist)
	}
	return data, nil
}

// Set replaces the document stored under name.
func (m *MemFetcher) Set(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = data
}

// Fail makes fetches for name return err until cleared with a nil err.
func (m *MemFetcher) Fail(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, name)
		return
	}
	m.errs[name] = err
}

// Count returns how many times name was fetched.
func (m *MemFetcher) Count(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[name]
}

// Total returns the number of fetches across all names.
func (m *MemFetcher) Total() int64 {
	return m.total.Load()
}

// GatedFetcher wraps a fetcher and holds every fetch until Release is called.
type GatedFetcher struct {
	base    dataset.Fetcher
	gate    chan struct{}
	once    sync.Once
	started chan string
}

// NewGatedFetcher wraps base. Each fetch reports its name on Started
// before blocking.
func NewGatedFetcher(base dataset.Fetcher) *GatedFetcher {
	return &GatedFetcher{
		base:    base,
		gate:    make(chan struct{}),
		started: make(chan string, 64),
	}
}

// Fetch blocks until Release, then delegates to the wrapped fetcher.
func (g *GatedFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	g.started <- name
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.base.Fetch(ctx, name)
}

// Started returns the channel on which blocked fetch names are reported.
func (g *GatedFetcher) Started() <-chan string {
	return g.started
}

// Release unblocks all pending and future fetches.
func (g *GatedFetcher) Release() {
	g.once.Do(func() { close(g.gate) })
}

// MockCache implements a basic concurrency-safe cache for tests.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte
	puts atomic.Int64
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

// Get retrieves data by key.
func (c *MockCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[key]
	return data, ok
}

// Put stores data by key.
func (c *MockCache) Put(_ context.Context, key string, content []byte) error {
	c.puts.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = content
	return nil
}

// Len returns the number of cached keys.
func (c *MockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Puts returns the number of Put calls.
func (c *MockCache) Puts() int64 {
	return c.puts.Load()
}

// ShardDoc encodes a shard for use as a fetcher document.
func ShardDoc(tb testing.TB, s dataset.Shard) []byte {
	tb.Helper()
	data, err := dataset.EncodeShard(s)
	if err != nil {
		tb.Fatalf("encode shard: %v", err)
	}
	return data
}
