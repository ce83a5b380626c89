package registry

import (
	"bytes"
	"context"
	"fmt"
	"maps"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
)

// PushOption configures Push.
type PushOption func(*pushConfig)

type pushConfig struct {
	annotations map[string]string
}

// WithAnnotations adds manifest annotations to the pushed artifact.
func WithAnnotations(annotations map[string]string) PushOption {
	return func(c *pushConfig) {
		if c.annotations == nil {
			c.annotations = make(map[string]string, len(annotations))
		}
		maps.Copy(c.annotations, annotations)
	}
}

// Push packs the dataset tree under dir, uploads it to target and tags the
// resulting manifest. It returns the manifest descriptor.
//
// The layer is skipped when target already holds it.
func Push(ctx context.Context, target oras.Target, tag, dir string, opts ...PushOption) (ocispec.Descriptor, error) {
	var cfg pushConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if tag == "" {
		return ocispec.Descriptor{}, fmt.Errorf("%w: empty tag", ErrInvalidReference)
	}

	layerData, err := packDir(dir)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	layer := content.NewDescriptorFromBytes(MediaTypeDataset, layerData)
	layer.Annotations = map[string]string{ocispec.AnnotationTitle: layerTitle}

	exists, err := target.Exists(ctx, layer)
	if err != nil {
		return ocispec.Descriptor{}, mapError(err)
	}
	if !exists {
		if err := target.Push(ctx, layer, bytes.NewReader(layerData)); err != nil {
			return ocispec.Descriptor{}, fmt.Errorf("push layer: %w", mapError(err))
		}
	}

	manifest, err := oras.PackManifest(ctx, target, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers:              []ocispec.Descriptor{layer},
		ManifestAnnotations: cfg.annotations,
	})
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("pack manifest: %w", mapError(err))
	}
	if err := target.Tag(ctx, manifest, tag); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("tag %s: %w", tag, mapError(err))
	}
	return manifest, nil
}
