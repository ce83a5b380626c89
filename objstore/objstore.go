// Package objstore serves and publishes datasets on S3-compatible object
// storage.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/zipgrid/dataset"
)

const defaultUploadConcurrency = 8

// Source reads dataset documents from a bucket. Document names are
// resolved under an optional key prefix. It satisfies dataset.Fetcher.
type Source struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger

	uploadWorkers int
}

var _ dataset.Fetcher = (*Source)(nil)

type config struct {
	accessKey     string
	secretKey     string
	secure        bool
	region        string
	prefix        string
	logger        *slog.Logger
	uploadWorkers int
}

// Option configures a Source.
type Option func(*config)

// WithCredentials sets static access credentials. Without them requests
// are anonymous.
func WithCredentials(accessKey, secretKey string) Option {
	return func(c *config) {
		c.accessKey = accessKey
		c.secretKey = secretKey
	}
}

// WithSecure enables TLS.
func WithSecure(secure bool) Option {
	return func(c *config) {
		c.secure = secure
	}
}

// WithRegion sets the bucket region, skipping region discovery.
func WithRegion(region string) Option {
	return func(c *config) {
		c.region = region
	}
}

// WithPrefix sets the key prefix under which the dataset lives.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = strings.Trim(prefix, "/")
	}
}

// WithLogger sets the logger for upload progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithUploadConcurrency sets how many objects UploadDir writes at once.
func WithUploadConcurrency(n int) Option {
	return func(c *config) {
		c.uploadWorkers = n
	}
}

// New creates a Source for bucket on the server at endpoint (host:port).
func New(endpoint, bucket string, opts ...Option) (*Source, error) {
	if bucket == "" {
		return nil, errors.New("bucket is empty")
	}
	cfg := config{uploadWorkers: defaultUploadConcurrency}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	// Empty keys make the client anonymous.
	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.accessKey, cfg.secretKey, ""),
		Secure:       cfg.secure,
		Region:       cfg.region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		client:        client,
		bucket:        bucket,
		prefix:        cfg.prefix,
		logger:        logger,
		uploadWorkers: max(cfg.uploadWorkers, 1),
	}, nil
}

// Fetch reads the object holding document name. A missing object is
// reported as an error wrapping fs.ErrNotExist.
func (s *Source) Fetch(ctx context.Context, name string) ([]byte, error) {
	if !fs.ValidPath(name) || name == "." {
		return nil, &fs.PathError{Op: "fetch", Path: name, Err: fs.ErrInvalid}
	}
	key := s.key(name)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(name, err)
	}
	return data, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Source) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// UploadDir uploads every regular file under dir, keyed by its path
// relative to dir. It returns the number of objects written.
func (s *Source) UploadDir(ctx context.Context, dir string) (int, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var uploaded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploadWorkers)
	for _, p := range files {
		g.Go(func() error {
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(rel)
			_, err = s.client.FPutObject(gctx, s.bucket, s.key(name), p, minio.PutObjectOptions{
				ContentType: contentType(name),
			})
			if err != nil {
				return fmt.Errorf("upload %s: %w", name, err)
			}
			uploaded.Add(1)
			s.logger.Debug("uploaded object", "bucket", s.bucket, "name", name)
			return nil
		})
	}
	err = g.Wait()
	return int(uploaded.Load()), err
}

func (s *Source) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func mapError(name string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return &fs.PathError{Op: "fetch", Path: name, Err: fs.ErrNotExist}
	}
	return fmt.Errorf("fetch %s: %w", name, err)
}
