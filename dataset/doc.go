// Package dataset defines the postal-code dataset served to the lookup index:
// shard documents keyed by code prefix, the region grid, and the [Fetcher]
// contract used to retrieve either from a remote or local store.
//
// Layout of a published dataset:
//
//	norm.json            grid description
//	z/root.json          root shard (single-character keys)
//	z/<c>/<prefix>.json  shard for a 1..3 character prefix starting with c
package dataset
