package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
)

// maxManifestSize bounds manifests read during Pull.
const maxManifestSize = 4 << 20

// PullOption configures Pull.
type PullOption func(*pullConfig)

type pullConfig struct {
	maxExtractSize int64
}

// WithMaxExtractSize bounds the total bytes written to the destination.
// Defaults to DefaultMaxExtractSize.
func WithMaxExtractSize(n int64) PullOption {
	return func(c *pullConfig) {
		c.maxExtractSize = n
	}
}

// Pull resolves ref in target, verifies that it names a dataset artifact
// and extracts the dataset tree into dest. It returns the manifest
// descriptor.
func Pull(ctx context.Context, target oras.ReadOnlyTarget, ref, dest string, opts ...PullOption) (ocispec.Descriptor, error) {
	cfg := pullConfig{maxExtractSize: DefaultMaxExtractSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	desc, err := target.Resolve(ctx, ref)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("resolve %s: %w", ref, mapError(err))
	}
	layer, err := datasetLayer(ctx, target, desc)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return ocispec.Descriptor{}, err
	}
	rc, err := target.Fetch(ctx, layer)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("fetch layer: %w", mapError(err))
	}
	defer rc.Close()

	vr := content.NewVerifyReader(rc, layer)
	if _, err := unpack(vr, dest, cfg.maxExtractSize); err != nil {
		return ocispec.Descriptor{}, err
	}
	// Drain tar padding and the zstd trailer so the digest covers the blob.
	if _, err := io.Copy(io.Discard, vr); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if err := vr.Verify(); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	return desc, nil
}

// datasetLayer fetches the manifest behind desc and returns its dataset layer.
func datasetLayer(ctx context.Context, target oras.ReadOnlyTarget, desc ocispec.Descriptor) (ocispec.Descriptor, error) {
	if desc.MediaType != ocispec.MediaTypeImageManifest {
		return ocispec.Descriptor{}, fmt.Errorf("%w: media type %s", ErrInvalidArtifact, desc.MediaType)
	}
	if desc.Size > maxManifestSize {
		return ocispec.Descriptor{}, fmt.Errorf("%w: manifest too large", ErrInvalidArtifact)
	}
	data, err := content.FetchAll(ctx, target, desc)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("fetch manifest: %w", mapError(err))
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	artifactType := manifest.ArtifactType
	if artifactType == "" {
		artifactType = manifest.Config.MediaType
	}
	if artifactType != ArtifactType {
		return ocispec.Descriptor{}, fmt.Errorf("%w: artifact type %q", ErrInvalidArtifact, artifactType)
	}
	for _, layer := range manifest.Layers {
		if layer.MediaType == MediaTypeDataset {
			return layer, nil
		}
	}
	return ocispec.Descriptor{}, fmt.Errorf("%w: no dataset layer", ErrInvalidArtifact)
}
