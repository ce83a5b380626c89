package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meigma/zipgrid/dataset"
)

// Location is the result of resolving a code.
//
// A malformed code and a code absent from the dataset both produce
// NotFound; callers that need to tell them apart must check the length.
type Location struct {
	I     int
	J     int
	Found bool
}

// NotFound is the Location reported for codes that do not resolve.
var NotFound = Location{I: -1, J: -1}

// Suggestion holds the completions stored for a partial code.
type Suggestion struct {
	// Partial is the input the suggestion was computed for.
	Partial string

	// Candidates are the best completions, most populous first.
	Candidates []dataset.Entry

	// Coords are the regions containing any code that starts with Partial.
	Coords []dataset.Coord
}

// ResolveFunc receives the result of Resolve. err is non-nil only when the
// shard holding the code could not be fetched.
type ResolveFunc func(loc Location, err error)

// SuggestFunc receives the result of Suggest. A nil suggestion with a nil
// error means the dataset has no codes starting with the partial input.
type SuggestFunc func(s *Suggestion, err error)

// Stats summarizes index state.
type Stats struct {
	Fetches  int64 // shard fetches issued
	Loaded   int   // prefixes loaded
	InFlight int   // prefixes currently being fetched
	Entries  int   // resolvable codes
	Groups   int   // suggestion groups
}

type entryState int

const (
	stateUnloaded entryState = iota
	stateAbsent
	statePresent
)

// Index is a lazily loaded, prefix-partitioned postal-code lookup table.
//
// An Index is safe for concurrent use.
type Index struct {
	fetcher dataset.Fetcher
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]dataset.Entry
	groups  map[string]dataset.Group
	loaded  map[string]struct{}
	flights map[string]*flight

	fetches atomic.Int64
}

// New creates an Index that loads shards through fetcher. No data is
// fetched until LoadRoot or a lookup is called.
func New(fetcher dataset.Fetcher, opts ...Option) *Index {
	x := &Index{
		fetcher: fetcher,
		entries: make(map[string]dataset.Entry),
		groups:  make(map[string]dataset.Group),
		loaded:  make(map[string]struct{}),
		flights: make(map[string]*flight),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(x)
	}
	return x
}

// log returns the logger, falling back to a discard logger if nil.
func (x *Index) log() *slog.Logger {
	if x.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return x.logger
}

// LoadRoot loads the root shard, which covers single-character completions,
// and waits for it. Returning early because ctx is done does not cancel the
// fetch.
func (x *Index) LoadRoot(ctx context.Context) error {
	return x.wait(ctx, "")
}

// Ready reports whether the root shard is loaded.
func (x *Index) Ready() bool {
	return x.Loaded("")
}

// Loaded reports whether the shard for prefix has been loaded.
func (x *Index) Loaded(prefix string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.loaded[prefix]
	return ok
}

// Resolve looks up the grid coordinates of code and reports them to fn.
//
// Codes that are not exactly dataset.CodeLen bytes report NotFound
// immediately without touching the network. If the code's shard is not
// loaded yet, the lookup is retried once the shard arrives.
func (x *Index) Resolve(code string, fn ResolveFunc) {
	if len(code) != dataset.CodeLen {
		fn(NotFound, nil)
		return
	}

	x.mu.Lock()
	e, state := x.lookupLocked(code)
	x.mu.Unlock()

	switch state {
	case statePresent:
		fn(Location{I: e.I, J: e.J, Found: true}, nil)
		return
	case stateAbsent:
		fn(NotFound, nil)
		return
	}

	x.ensureLoaded(code[:dataset.PrefixLen], func(err error) {
		if err != nil {
			fn(NotFound, err)
			return
		}
		x.Resolve(code, fn)
	})
}

// ResolveContext is the blocking form of Resolve.
func (x *Index) ResolveContext(ctx context.Context, code string) (Location, error) {
	type result struct {
		loc Location
		err error
	}
	ch := make(chan result, 1)
	x.Resolve(code, func(loc Location, err error) {
		ch <- result{loc, err}
	})
	select {
	case r := <-ch:
		return r.loc, r.err
	case <-ctx.Done():
		return NotFound, ctx.Err()
	}
}

// Suggest reports the completions stored for partial.
//
// Completions for a partial input live in the shard of its parent prefix
// (partial without its last character), which is loaded on demand. When
// partial is no longer than dataset.PrefixLen the shard keyed by partial
// itself is also prefetched, anticipating the next keystroke.
func (x *Index) Suggest(partial string, fn SuggestFunc) {
	x.ensureLoaded(ParentPrefix(partial), func(err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(x.suggestion(partial), nil)
	})

	if len(partial) <= dataset.PrefixLen {
		x.Prefetch(partial)
	}
}

// SuggestContext is the blocking form of Suggest.
func (x *Index) SuggestContext(ctx context.Context, partial string) (*Suggestion, error) {
	type result struct {
		s   *Suggestion
		err error
	}
	ch := make(chan result, 1)
	x.Suggest(partial, func(s *Suggestion, err error) {
		ch <- result{s, err}
	})
	select {
	case r := <-ch:
		return r.s, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Prefetch starts loading the shard for prefix if it is neither loaded nor
// in flight. Failures are logged and otherwise ignored.
func (x *Index) Prefetch(prefix string) {
	x.ensureLoaded(prefix, func(err error) {
		if err != nil {
			x.log().Debug("prefetch failed", "prefix", prefix, "error", err)
		}
	})
}

// Stats returns a snapshot of index counters.
func (x *Index) Stats() Stats {
	x.mu.Lock()
	defer x.mu.Unlock()
	return Stats{
		Fetches:  x.fetches.Load(),
		Loaded:   len(x.loaded),
		InFlight: len(x.flights),
		Entries:  len(x.entries),
		Groups:   len(x.groups),
	}
}

// ParentPrefix returns partial without its last character, or "" for an
// empty input.
func ParentPrefix(partial string) string {
	if partial == "" {
		return ""
	}
	return partial[:len(partial)-1]
}

func (x *Index) lookupLocked(code string) (dataset.Entry, entryState) {
	if _, ok := x.loaded[code[:dataset.PrefixLen]]; !ok {
		return dataset.Entry{}, stateUnloaded
	}
	e, ok := x.entries[code]
	if !ok {
		return dataset.Entry{}, stateAbsent
	}
	return e, statePresent
}

func (x *Index) suggestion(partial string) *Suggestion {
	x.mu.Lock()
	g, ok := x.groups[partial]
	x.mu.Unlock()
	if !ok {
		return nil
	}
	return &Suggestion{
		Partial:    partial,
		Candidates: append([]dataset.Entry(nil), g.Entries...),
		Coords:     g.Coords(),
	}
}

func (x *Index) wait(ctx context.Context, prefix string) error {
	ch := make(chan error, 1)
	x.ensureLoaded(prefix, func(err error) {
		ch <- err
	})
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ensureLoaded runs onReady once the shard for prefix is loaded. If the
// shard is already loaded onReady runs immediately; if a fetch is in
// flight onReady joins its queue; otherwise a fetch is started.
func (x *Index) ensureLoaded(prefix string, onReady func(error)) {
	x.mu.Lock()
	if _, ok := x.loaded[prefix]; ok {
		x.mu.Unlock()
		onReady(nil)
		return
	}
	if f, ok := x.flights[prefix]; ok {
		f.waiters = append(f.waiters, onReady)
		x.mu.Unlock()
		return
	}
	f := &flight{waiters: []func(error){onReady}}
	x.flights[prefix] = f
	x.mu.Unlock()

	go x.fetch(prefix, f)
}

func (x *Index) fetch(prefix string, f *flight) {
	start := time.Now()

	s, err := x.fetchShard(prefix)

	x.mu.Lock()
	if err == nil {
		x.mergeLocked(s)
		x.loaded[prefix] = struct{}{}
	}
	delete(x.flights, prefix)
	waiters := f.drainLocked()
	x.mu.Unlock()

	if err != nil {
		x.log().Warn("shard fetch failed", "prefix", prefix, "error", err)
	} else {
		x.log().Debug("shard loaded", "prefix", prefix, "keys", len(s), "elapsed", time.Since(start))
	}

	for _, w := range waiters {
		w(err)
	}
}

// fetchShard retrieves and decodes a shard. A missing document is an empty
// shard: every code under its prefix is known to be absent. Prefixes that
// cannot name a document, such as non-ASCII input, are empty without a
// fetch.
func (x *Index) fetchShard(prefix string) (dataset.Shard, error) {
	if !dataset.ValidPrefix(prefix) {
		return dataset.Shard{}, nil
	}
	x.fetches.Add(1)
	name := dataset.ShardName(prefix)
	data, err := x.fetcher.Fetch(context.Background(), name)
	if errors.Is(err, fs.ErrNotExist) {
		return dataset.Shard{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, name, err)
	}
	s, err := dataset.DecodeShard(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, name, err)
	}
	return s, nil
}

// mergeLocked adds every group of s and every entry bundled in those groups.
func (x *Index) mergeLocked(s dataset.Shard) {
	for key, g := range s {
		x.groups[key] = g
		for _, e := range g.Entries {
			x.entries[e.Code] = e
		}
	}
}
