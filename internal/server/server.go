// Package server serves a dataset directory and a small JSON lookup API.
package server

import (
	"context"
	"errors"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"

	"github.com/meigma/zipgrid/index"
)

// Index is the subset of *index.Index the API needs.
type Index interface {
	ResolveContext(ctx context.Context, code string) (index.Location, error)
	SuggestContext(ctx context.Context, partial string) (*index.Suggestion, error)
	Ready() bool
}

// Server routes dataset and API requests.
type Server struct {
	idx         Index
	dataDir     string
	staticDir   string
	corsOrigins []string
	logger      *slog.Logger
	engine      *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithDataDir serves the dataset directory under /data/.
func WithDataDir(dir string) Option {
	return func(s *Server) {
		s.dataDir = dir
	}
}

// WithStaticDir serves dir for any path no other route matches.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithCORSOrigins allows cross-origin GET requests from origins. "*"
// allows any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = append(s.corsOrigins, origins...)
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// New creates a Server answering lookups from idx.
func New(idx Index, opts ...Option) *Server {
	s := &Server{
		idx:    idx,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := gin.New()
	e.Use(gin.Recovery(), requestLogger(s.logger))
	if len(s.corsOrigins) > 0 {
		e.Use(newCORS(s.corsOrigins))
	}

	e.GET("/healthz", s.health)
	api := e.Group("/api")
	api.GET("/resolve/:code", s.resolve)
	api.GET("/suggest/:partial", s.suggest)

	if s.dataDir != "" {
		e.StaticFS("/data", gin.Dir(s.dataDir, false))
	}
	if s.staticDir != "" {
		files := nethttp.FileServer(nethttp.Dir(s.staticDir))
		e.NoRoute(func(c *gin.Context) {
			if c.Request.Method != nethttp.MethodGet && c.Request.Method != nethttp.MethodHead {
				c.JSON(nethttp.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}
	s.engine = e
	return s
}

// Handler returns the gzip-wrapped HTTP handler.
func (s *Server) Handler() nethttp.Handler {
	return gzhttp.GzipHandler(s.engine)
}

// Run serves on addr until ctx is done, then shuts down gracefully,
// waiting at most shutdownTimeout for open requests.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", addr, "data", s.dataDir, "static", s.staticDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

func newCORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{nethttp.MethodGet, nethttp.MethodHead, nethttp.MethodOptions},
		AllowHeaders: []string{"Origin", "Accept", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	return cors.New(cfg)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.LogAttrs(c.Request.Context(), slog.LevelInfo, "request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
