//go:build integration

// Package integration provides end-to-end tests for zipgrid datasets.
//
// These tests require Docker and start a real OCI registry, Redis and MinIO
// using testcontainers.
// Run with: go test -tags=integration ./integration/...
package integration
