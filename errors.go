package zipgrid

import (
	"errors"

	"github.com/meigma/zipgrid/build"
	"github.com/meigma/zipgrid/dataset"
	"github.com/meigma/zipgrid/index"
	"github.com/meigma/zipgrid/registry"
)

// ErrNoSource is returned by New when no document source is configured.
var ErrNoSource = errors.New("zipgrid: no data source configured")

// Errors re-exported from dataset and index.
var (
	// ErrMalformedShard is returned when a shard document cannot be decoded.
	ErrMalformedShard = dataset.ErrMalformedShard

	// ErrMalformedGrid is returned when the grid document is invalid.
	ErrMalformedGrid = dataset.ErrMalformedGrid

	// ErrFetch is delivered to lookups waiting on a shard whose fetch failed.
	ErrFetch = index.ErrFetch

	// ErrInvalidRecord is returned when a source record cannot be indexed.
	ErrInvalidRecord = build.ErrInvalidRecord
)

// Errors re-exported from registry.
var (
	// ErrNotFound is returned when no dataset exists at a registry reference.
	ErrNotFound = registry.ErrNotFound

	// ErrInvalidReference is returned when a reference string is malformed.
	ErrInvalidReference = registry.ErrInvalidReference

	// ErrInvalidArtifact is returned when a registry artifact is not a dataset.
	ErrInvalidArtifact = registry.ErrInvalidArtifact

	// ErrUnauthorized is returned when the registry rejects the credentials.
	ErrUnauthorized = registry.ErrUnauthorized

	// ErrForbidden is returned when the credentials lack permission.
	ErrForbidden = registry.ErrForbidden
)
