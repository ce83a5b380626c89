package index

import "log/slog"

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Index) {
		x.logger = logger
	}
}
