package index

import "errors"

// ErrFetch is returned to every continuation waiting on a shard whose fetch
// failed. The prefix returns to the unloaded state; a later request issues a
// new fetch.
var ErrFetch = errors.New("index: shard fetch failed")
