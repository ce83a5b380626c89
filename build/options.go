package build

import (
	"log/slog"
	"runtime"
)

// DefaultLimit is the number of candidates kept per non-leaf group.
const DefaultLimit = 10

type options struct {
	limit   int
	workers int
	cityPop bool
	logger  *slog.Logger
}

// Option configures Write.
type Option func(*options)

// WithLimit sets the number of candidates kept in groups above the leaf
// level. Values < 1 keep every candidate.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// WithConcurrency sets the number of documents written at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithCityPopulation ranks each code by the total population of its city
// rather than its own population, so codes of large cities lead the
// completions. Enabled by default.
func WithCityPopulation(enabled bool) Option {
	return func(o *options) {
		o.cityPop = enabled
	}
}

// WithLogger sets the logger for build progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{
		limit:   DefaultLimit,
		workers: runtime.GOMAXPROCS(0),
		cityPop: true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}
