// Package zipgrid loads a regional intensity grid and a lazily sharded
// postal-code index, and announces both to the rendering layer.
//
// A [Model] is constructed once and passed to every consumer. It fetches
// the grid description and the root shard concurrently, then publishes
// them on [Model.GridLoaded] and [Model.ZipsLoaded]. Longer shards are
// fetched on demand as codes are resolved or completed.
//
// # Quick Start
//
// Serve a dataset over HTTP with a local disk cache:
//
//	m, err := zipgrid.New(
//	    zipgrid.WithBaseURL("https://example.com/data/"),
//	    zipgrid.WithCacheDir("/var/cache/zipgrid"),
//	)
//	if err != nil {
//	    return err
//	}
//	m.GridLoaded.Tap(func(g *dataset.Grid) { render(g) })
//	m.ZipsLoaded.Tap(func(idx *index.Index) { enableSearch(idx) })
//	if err := m.Load(ctx); err != nil {
//	    return err
//	}
//
// Resolve a code:
//
//	m.Index().Resolve("94110", func(loc index.Location, err error) {
//	    if err == nil && loc.Found {
//	        highlight(loc.I, loc.J)
//	    }
//	})
//
// # Sources
//
// Documents can come from an HTTP base URL ([WithBaseURL]), a local
// directory ([WithDir]) or any [dataset.Fetcher] ([WithFetcher]), such as
// an objstore.Source. [WithCacheDir] and [WithCache] add a read-through
// cache in front of the source.
package zipgrid
