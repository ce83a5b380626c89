package zipgrid

import (
	"errors"
	"log/slog"
	nethttp "net/http"

	"github.com/meigma/zipgrid/cache"
	"github.com/meigma/zipgrid/dataset"
)

// Option configures a Model.
type Option func(*Model) error

// WithBaseURL loads documents over HTTP from baseURL.
func WithBaseURL(baseURL string) Option {
	return func(m *Model) error {
		if baseURL == "" {
			return errors.New("zipgrid: base URL is empty")
		}
		m.baseURL = baseURL
		return nil
	}
}

// WithDir loads documents from a local dataset directory.
func WithDir(dir string) Option {
	return func(m *Model) error {
		if dir == "" {
			return errors.New("zipgrid: data directory is empty")
		}
		m.dir = dir
		return nil
	}
}

// WithFetcher loads documents through f. It takes precedence over
// WithBaseURL and WithDir.
func WithFetcher(f dataset.Fetcher) Option {
	return func(m *Model) error {
		if f == nil {
			return errors.New("zipgrid: fetcher is nil")
		}
		m.source = f
		return nil
	}
}

// WithHTTPClient sets the HTTP client used with WithBaseURL.
func WithHTTPClient(c *nethttp.Client) Option {
	return func(m *Model) error {
		m.httpClient = c
		return nil
	}
}

// WithHeader adds a header sent on every HTTP fetch.
func WithHeader(key, value string) Option {
	return func(m *Model) error {
		if m.headers == nil {
			m.headers = make(nethttp.Header)
		}
		m.headers.Add(key, value)
		return nil
	}
}

// WithRateLimit limits HTTP fetches to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(m *Model) error {
		if rps <= 0 || burst <= 0 {
			return errors.New("zipgrid: rate limit must be positive")
		}
		m.rps = rps
		m.burst = burst
		return nil
	}
}

// WithCacheDir caches fetched documents on disk under dir. maxBytes bounds
// the cache size; 0 means unlimited.
func WithCacheDir(dir string, maxBytes int64) Option {
	return func(m *Model) error {
		if dir == "" {
			return errors.New("zipgrid: cache directory is empty")
		}
		m.cacheDir = dir
		m.cacheMaxBytes = maxBytes
		return nil
	}
}

// WithCache caches fetched documents in c. It takes precedence over
// WithCacheDir.
func WithCache(c cache.Cache) Option {
	return func(m *Model) error {
		m.cache = c
		return nil
	}
}

// WithLogger sets the logger shared by the model and its index.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) error {
		if logger != nil {
			m.logger = logger
		}
		return nil
	}
}
