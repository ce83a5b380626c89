package cache

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/zipgrid/dataset"
)

// Fetcher wraps a dataset.Fetcher with caching.
//
// Fetch checks the cache before calling the underlying fetcher and stores
// documents after a successful fetch. Errors, including missing documents,
// are never cached.
//
// Concurrent fetches for the same document are deduplicated with
// singleflight, so a cache miss storm results in one upstream request.
type Fetcher struct {
	base       dataset.Fetcher
	cache      Cache
	scope      string
	logger     *slog.Logger
	fetchGroup singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

var _ dataset.Fetcher = (*Fetcher)(nil)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithScope sets the namespace mixed into every cache key. Use a value
// that identifies the dataset, such as its base URL.
func WithScope(scope string) Option {
	return func(f *Fetcher) {
		f.scope = scope
	}
}

// WithLogger sets the logger used to report cache write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher wraps base with c.
func NewFetcher(base dataset.Fetcher, c Cache, opts ...Option) *Fetcher {
	f := &Fetcher{
		base:  base,
		cache: c,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	return f
}

// Fetch returns the document for name from the cache, or from the
// underlying fetcher on a miss.
func (f *Fetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	key := Key(f.scope, name)

	// Fast path, avoids singleflight overhead.
	if content, ok := f.cache.Get(ctx, key); ok {
		f.hits.Add(1)
		return content, nil
	}

	// The shared fetch must not fail because the first caller gave up.
	fetchCtx := context.WithoutCancel(ctx)
	result, err, _ := f.fetchGroup.Do(key, func() (any, error) {
		// Another goroutine may have cached the document between the
		// check above and acquiring the flight.
		if content, ok := f.cache.Get(fetchCtx, key); ok {
			f.hits.Add(1)
			return content, nil
		}

		f.misses.Add(1)
		content, err := f.base.Fetch(fetchCtx, name)
		if err != nil {
			return nil, err
		}

		if err := f.cache.Put(fetchCtx, key, content); err != nil {
			f.logger.Warn("cache put failed", "name", name, "error", err)
		}
		return content, nil
	})
	if err != nil {
		return nil, err
	}

	content, _ := result.([]byte) //nolint:errcheck // type assertion always succeeds when err is nil
	return content, nil
}

// Hits returns the number of fetches served from the cache.
func (f *Fetcher) Hits() int64 {
	return f.hits.Load()
}

// Misses returns the number of fetches that went to the underlying fetcher.
func (f *Fetcher) Misses() int64 {
	return f.misses.Load()
}
