package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// DefaultTag is used when a reference names no tag or digest.
const DefaultTag = "latest"

// Client pushes and pulls datasets against remote registries.
//
// Tokens are cached across calls; a Client is safe for concurrent use.
type Client struct {
	plainHTTP  bool
	userAgent  string
	anonymous  bool
	credStore  credentials.Store
	logger     *slog.Logger
	authClient *auth.Client
}

// Option configures a Client.
type Option func(*Client)

// WithPlainHTTP talks to the registry over plain HTTP.
func WithPlainHTTP(plain bool) Option {
	return func(c *Client) {
		c.plainHTTP = plain
	}
}

// WithUserAgent sets the User-Agent header sent to registries.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithCredentialStore sets the store credentials are looked up in.
func WithCredentialStore(store credentials.Store) Option {
	return func(c *Client) {
		c.credStore = store
	}
}

// WithStaticCredentials authenticates to registry with a username and password.
func WithStaticCredentials(registry, username, password string) Option {
	return WithCredentialStore(StaticCredentials(registry, username, password))
}

// WithStaticToken authenticates to registry with a bearer token.
func WithStaticToken(registry, token string) Option {
	return WithCredentialStore(StaticToken(registry, token))
}

// WithDockerConfig reads credentials from the Docker config. If the config
// cannot be loaded the client stays anonymous.
func WithDockerConfig() Option {
	return func(c *Client) {
		store, err := DockerCredentials()
		if err != nil {
			c.logger.Warn("docker credentials unavailable", "error", err)
			return
		}
		c.credStore = store
	}
}

// WithAnonymous skips credential lookup entirely.
func WithAnonymous() Option {
	return func(c *Client) {
		c.anonymous = true
	}
}

// WithLogger sets the logger. Apply it before WithDockerConfig to capture
// its warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a registry client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		userAgent: "zipgrid/1.0",
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.authClient = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(ctx context.Context, hostport string) (auth.Credential, error) {
			if c.anonymous || c.credStore == nil {
				return auth.EmptyCredential, nil
			}
			return c.credStore.Get(ctx, hostport)
		},
		Header: http.Header{
			"User-Agent": []string{c.userAgent},
		},
	}
	return c
}

// Push uploads the dataset under dir to ref, which must carry a tag or
// defaults to DefaultTag.
func (c *Client) Push(ctx context.Context, ref, dir string, opts ...PushOption) (ocispec.Descriptor, error) {
	repo, r, err := c.repository(ref)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	if r.ValidateReferenceAsDigest() == nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: cannot push to digest %s", ErrInvalidReference, ref)
	}
	desc, err := Push(ctx, repo, r.Reference, dir, opts...)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	c.logger.Info("pushed dataset", "ref", r.String(), "digest", desc.Digest)
	return desc, nil
}

// Pull downloads the dataset at ref into dest.
func (c *Client) Pull(ctx context.Context, ref, dest string, opts ...PullOption) (ocispec.Descriptor, error) {
	repo, r, err := c.repository(ref)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc, err := Pull(ctx, repo, r.Reference, dest, opts...)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	c.logger.Info("pulled dataset", "ref", r.String(), "digest", desc.Digest, "dest", dest)
	return desc, nil
}

// repository returns a Repository sharing the client's auth cache, and the
// parsed reference with its tag defaulted.
func (c *Client) repository(ref string) (*remote.Repository, registry.Reference, error) {
	r, err := parseRef(ref)
	if err != nil {
		return nil, registry.Reference{}, err
	}
	repo, err := remote.NewRepository(r.Registry + "/" + r.Repository)
	if err != nil {
		return nil, registry.Reference{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	repo.PlainHTTP = c.plainHTTP
	repo.Client = c.authClient
	return repo, r, nil
}

// Host returns the registry host named in ref.
func Host(ref string) (string, error) {
	r, err := parseRef(ref)
	if err != nil {
		return "", err
	}
	return r.Registry, nil
}

func parseRef(ref string) (registry.Reference, error) {
	r, err := registry.ParseReference(ref)
	if err != nil {
		return registry.Reference{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if r.Reference == "" {
		r.Reference = DefaultTag
	}
	return r, nil
}
