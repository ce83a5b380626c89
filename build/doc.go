// Package build produces the static documents a dataset is served from.
//
// [Write] partitions postal-code records into the shard tree read by
// package index: a root shard keyed by first digit and one shard per
// prefix of length one to three, each holding the groups for prefixes one
// character longer. Groups above the leaf level keep only the most
// populous candidates; leaf groups (four-character keys) keep every code so
// any complete code can be resolved from the shard of its three-character
// prefix.
//
// Output goes to a [Sink]: a directory on disk for publishing, or memory
// for tests and embedding.
package build
