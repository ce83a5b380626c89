package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/meigma/zipgrid"
	"github.com/meigma/zipgrid/cache/redis"
	"github.com/meigma/zipgrid/internal/config"
	"github.com/meigma/zipgrid/internal/logging"
	"github.com/meigma/zipgrid/objstore"
	"github.com/meigma/zipgrid/registry"
)

// env carries the flags shared by every command and the state derived
// from them.
type env struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	envFiles   []string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func (e *env) flagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.StringVar(&e.configPath, "config", "", "path to a YAML config file")
	fs.StringSliceVar(&e.envFiles, "env-file", nil, "dotenv files loaded before the config")
	fs.StringVar(&e.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&e.logFormat, "log-format", "", "log format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "Usage: zipgrid %s %s\n\nFlags:\n%s", name, usage, fs.FlagUsages())
	}
	return fs
}

// parse parses args, loads the config and builds the logger.
func (e *env) parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(e.configPath, e.envFiles...)
	if err != nil {
		return err
	}
	if e.logLevel != "" {
		cfg.Log.Level = e.logLevel
	}
	if e.logFormat != "" {
		cfg.Log.Format = e.logFormat
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, e.stderr)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.logger = logger
	return nil
}

// bucket opens the configured object store.
func (e *env) bucket() (*objstore.Source, error) {
	b := e.cfg.Data.Bucket
	opts := []objstore.Option{
		objstore.WithSecure(b.Secure),
		objstore.WithPrefix(b.Prefix),
		objstore.WithLogger(e.logger),
	}
	if b.AccessKey != "" {
		opts = append(opts, objstore.WithCredentials(b.AccessKey, b.SecretKey))
	}
	if b.Region != "" {
		opts = append(opts, objstore.WithRegion(b.Region))
	}
	return objstore.New(b.Endpoint, b.Name, opts...)
}

// model builds a Model from the data and cache sections of the config.
// The returned function releases the cache connection.
func (e *env) model(ctx context.Context) (*zipgrid.Model, func(), error) {
	data := e.cfg.Data
	opts := []zipgrid.Option{zipgrid.WithLogger(e.logger)}
	closer := func() {}

	switch {
	case data.Bucket.Enabled():
		src, err := e.bucket()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, zipgrid.WithFetcher(src))
	case data.Dir != "":
		opts = append(opts, zipgrid.WithDir(data.Dir))
	case data.BaseURL != "":
		opts = append(opts, zipgrid.WithBaseURL(data.BaseURL))
		if data.RateLimit > 0 {
			opts = append(opts, zipgrid.WithRateLimit(data.RateLimit, max(data.Burst, 1)))
		}
	}

	switch c := e.cfg.Cache; {
	case c.RedisURL != "":
		rc, err := redis.Open(ctx, c.RedisURL, redis.WithTTL(c.TTL), redis.WithLogger(e.logger))
		if err != nil {
			return nil, nil, err
		}
		closer = func() { _ = rc.Close() }
		opts = append(opts, zipgrid.WithCache(rc))
	case c.Dir != "":
		opts = append(opts, zipgrid.WithCacheDir(c.Dir, c.MaxBytes))
	}

	m, err := zipgrid.New(opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return m, closer, nil
}

// registryClient builds a registry client for ref from the registry
// section. Static credentials apply to the host named in ref.
func (e *env) registryClient(ref string) (*registry.Client, error) {
	r := e.cfg.Registry
	opts := []registry.Option{
		registry.WithLogger(e.logger),
		registry.WithPlainHTTP(r.PlainHTTP),
	}
	switch {
	case r.Token != "" || r.Username != "":
		host, err := registry.Host(ref)
		if err != nil {
			return nil, err
		}
		if r.Token != "" {
			opts = append(opts, registry.WithStaticToken(host, r.Token))
		} else {
			opts = append(opts, registry.WithStaticCredentials(host, r.Username, r.Password))
		}
	case r.DockerConfig:
		opts = append(opts, registry.WithDockerConfig())
	}
	return registry.NewClient(opts...), nil
}
