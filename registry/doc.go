// Package registry publishes built datasets to OCI registries and pulls
// them back.
//
// A dataset is stored as an OCI 1.1 artifact with a single layer: the
// dataset directory tree as a zstd-compressed tar. [Push] and [Pull] work
// against any oras.Target, so the same code serves remote registries (see
// [Client]), OCI layout directories and in-memory stores.
package registry
