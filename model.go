package zipgrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/zipgrid/cache"
	"github.com/meigma/zipgrid/cache/disk"
	"github.com/meigma/zipgrid/dataset"
	gridhttp "github.com/meigma/zipgrid/http"
	"github.com/meigma/zipgrid/index"
	"github.com/meigma/zipgrid/search"
	"github.com/meigma/zipgrid/signal"
)

// Model owns the grid and the postal-code index for one dataset.
//
// Construct one Model per dataset and pass it to its consumers. Subscribe
// to the signals before calling Load.
type Model struct {
	// GridLoaded is published once the grid description is loaded.
	GridLoaded signal.Signal[*dataset.Grid]

	// ZipsLoaded is published once the root shard is loaded and the index
	// can serve lookups.
	ZipsLoaded signal.Signal[*index.Index]

	baseURL       string
	dir           string
	source        dataset.Fetcher
	httpClient    *nethttp.Client
	headers       nethttp.Header
	rps           float64
	burst         int
	cacheDir      string
	cacheMaxBytes int64
	cache         cache.Cache
	logger        *slog.Logger

	fetcher dataset.Fetcher
	idx     *index.Index

	mu   sync.RWMutex
	grid *dataset.Grid
}

// New creates a Model. Exactly one source must be configured with
// WithFetcher, WithDir or WithBaseURL.
func New(opts ...Option) (*Model, error) {
	m := &Model{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	src, scope, err := m.newSource()
	if err != nil {
		return nil, err
	}
	if m.cache == nil && m.cacheDir != "" {
		dc, err := disk.New(m.cacheDir, disk.WithMaxBytes(m.cacheMaxBytes))
		if err != nil {
			return nil, fmt.Errorf("zipgrid: open cache: %w", err)
		}
		m.cache = dc
	}
	m.fetcher = src
	if m.cache != nil {
		m.fetcher = cache.NewFetcher(src, m.cache, cache.WithScope(scope), cache.WithLogger(m.logger))
	}
	m.idx = index.New(m.fetcher, index.WithLogger(m.logger))
	return m, nil
}

// newSource builds the document source and the cache scope naming it.
func (m *Model) newSource() (dataset.Fetcher, string, error) {
	switch {
	case m.source != nil:
		return m.source, fmt.Sprintf("fetcher:%T", m.source), nil
	case m.dir != "":
		abs, err := filepath.Abs(m.dir)
		if err != nil {
			return nil, "", err
		}
		return dataset.FS(os.DirFS(abs)), "file://" + filepath.ToSlash(abs), nil
	case m.baseURL != "":
		var opts []gridhttp.Option
		if m.httpClient != nil {
			opts = append(opts, gridhttp.WithClient(m.httpClient))
		}
		if m.headers != nil {
			opts = append(opts, gridhttp.WithHeaders(m.headers))
		}
		if m.rps > 0 {
			opts = append(opts, gridhttp.WithRateLimit(m.rps, m.burst))
		}
		src, err := gridhttp.NewSource(m.baseURL, opts...)
		if err != nil {
			return nil, "", err
		}
		return src, src.BaseURL(), nil
	default:
		return nil, "", ErrNoSource
	}
}

// Load fetches the grid and the root shard concurrently. Each signal is
// published after both loads finish, and only for the load that succeeded.
func (m *Model) Load(ctx context.Context) error {
	var g errgroup.Group
	var grid *dataset.Grid

	g.Go(func() error {
		data, err := m.fetcher.Fetch(ctx, dataset.GridName)
		if err != nil {
			return fmt.Errorf("load grid: %w", err)
		}
		grid, err = dataset.DecodeGrid(data)
		return err
	})
	var rootErr error
	g.Go(func() error {
		rootErr = m.idx.LoadRoot(ctx)
		if rootErr != nil {
			return fmt.Errorf("load root shard: %w", rootErr)
		}
		return nil
	})
	err := g.Wait()

	if grid != nil {
		m.mu.Lock()
		m.grid = grid
		m.mu.Unlock()
		m.logger.Info("grid loaded", "width", grid.W, "height", grid.H, "regions", len(grid.Regions))
		m.GridLoaded.Publish(grid)
	}
	if rootErr == nil {
		m.logger.Info("postal index ready", "entries", m.idx.Stats().Entries)
		m.ZipsLoaded.Publish(m.idx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("dataset load failed", "error", err)
	}
	return err
}

// Grid returns the loaded grid, or nil before Load succeeds.
func (m *Model) Grid() *dataset.Grid {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.grid
}

// Index returns the postal-code index. It is usable before Load; lookups
// then fetch the shards they need.
func (m *Model) Index() *index.Index {
	return m.idx
}

// Fetcher returns the document fetcher, including any configured cache.
func (m *Model) Fetcher() dataset.Fetcher {
	return m.fetcher
}

// NewSearch returns a search controller bound to the model's index.
func (m *Model) NewSearch() *search.Controller {
	return search.New(m.idx)
}
