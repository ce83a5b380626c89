package registry

// Media types for datasets in OCI registries.
const (
	// ArtifactType identifies datasets as an OCI 1.1 artifact type.
	ArtifactType = "application/vnd.zipgrid.dataset.v1"

	// MediaTypeDataset is the media type of the layer holding the dataset
	// tree as a zstd-compressed tar.
	MediaTypeDataset = "application/vnd.zipgrid.dataset.v1.tar+zstd"

	layerTitle = "dataset.tar.zst"
)
