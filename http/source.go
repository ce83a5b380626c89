// Package http provides a dataset fetcher backed by plain HTTP GET requests.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	nethttp "net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/meigma/zipgrid/dataset"
)

// DefaultMaxDocumentSize bounds the size of a single fetched document.
const DefaultMaxDocumentSize = 64 << 20

// Source fetches dataset documents relative to a base URL.
// It satisfies dataset.Fetcher.
type Source struct {
	base    *url.URL
	client  *nethttp.Client
	headers nethttp.Header
	limiter *rate.Limiter
	maxSize int64
}

var _ dataset.Fetcher = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers == nil {
			return
		}
		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithRateLimit limits outgoing requests to rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Source) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithMaxDocumentSize sets the largest response body Fetch accepts.
func WithMaxDocumentSize(n int64) Option {
	return func(s *Source) {
		s.maxSize = n
	}
}

// NewSource creates a Source rooted at baseURL. Document names are resolved
// relative to it, so "https://host/data" and "https://host/data/" are
// equivalent.
func NewSource(baseURL string, opts ...Option) (*Source, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	s := &Source{
		base:    u,
		client:  nethttp.DefaultClient,
		maxSize: DefaultMaxDocumentSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	return s, nil
}

// BaseURL returns the URL documents are resolved against.
func (s *Source) BaseURL() string {
	return s.base.String()
}

// Fetch downloads the document called name. A 404 or 410 response is
// reported as an error wrapping fs.ErrNotExist.
func (s *Source) Fetch(ctx context.Context, name string) ([]byte, error) {
	if !fs.ValidPath(name) || name == "." {
		return nil, &fs.PathError{Op: "fetch", Path: name, Err: fs.ErrInvalid}
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := s.newRequest(ctx, name)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case nethttp.StatusOK:
		// ok
	case nethttp.StatusNotFound, nethttp.StatusGone:
		return nil, &fs.PathError{Op: "fetch", Path: name, Err: fs.ErrNotExist}
	default:
		return nil, fmt.Errorf("fetch %s: %s", name, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("fetch %s: %w", name, errTooLarge)
	}
	return data, nil
}

var errTooLarge = errors.New("document exceeds size limit")

func (s *Source) newRequest(ctx context.Context, name string) (*nethttp.Request, error) {
	target := s.base.JoinPath(name)
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}
