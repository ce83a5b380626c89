// Package index resolves postal codes to grid coordinates and serves
// prefix completions from a dataset that is loaded incrementally.
//
// The dataset is partitioned into shards keyed by code prefix (see package
// dataset). An [Index] loads the root shard up front and every other shard
// on first demand, keeping everything it loads for its lifetime: the table
// only grows.
//
// Each prefix is always in exactly one of three states: unloaded, in
// flight, or loaded. Concurrent requests for a prefix that is in flight
// attach to the pending fetch instead of issuing another one, so there is
// at most one fetch per prefix at any time. When the fetch completes the
// queued continuations run in the order they were enqueued.
//
// The callback forms ([Index.Resolve], [Index.Suggest]) invoke their
// callback synchronously when the data is already loaded, and otherwise
// from the goroutine that completed the fetch. The context forms
// ([Index.ResolveContext], [Index.SuggestContext], [Index.LoadRoot]) block
// the caller instead. Fetches are never cancelled once issued.
package index
