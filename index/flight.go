package index

// flight is the pending queue for one in-progress shard fetch. It has a
// single producer (the fetch goroutine) and any number of consumers queued
// as continuations. waiters is guarded by Index.mu.
type flight struct {
	waiters []func(error)
}

// drainLocked detaches the queued continuations in enqueue order.
func (f *flight) drainLocked() []func(error) {
	w := f.waiters
	f.waiters = nil
	return w
}
