package build

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/zipgrid/dataset"
)

// leafLevel is the key length of groups that keep every candidate.
const leafLevel = dataset.PrefixLen + 1

// Report summarizes a build.
type Report struct {
	Records int // records indexed
	Shards  int // shard documents written
	Groups  int // groups across all shards
}

// Write partitions records into shard documents and writes them to sink.
// All records are validated before anything is written.
func Write(ctx context.Context, sink Sink, records []Record, opts ...Option) (*Report, error) {
	o := newOptions(opts)
	start := time.Now()

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[r.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %s", ErrInvalidRecord, r.Code)
		}
		seen[r.Code] = struct{}{}
	}

	shards := Plan(records, opts...)
	report := &Report{Records: len(records), Shards: len(shards)}
	for _, s := range shards {
		report.Groups += len(s)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, name := range slices.Sorted(maps.Keys(shards)) {
		s := shards[name]
		g.Go(func() error {
			data, err := dataset.EncodeShard(s)
			if err != nil {
				return fmt.Errorf("encode %s: %w", name, err)
			}
			return sink.WriteFile(gctx, name, data)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	o.logger.Info("wrote shard tree",
		"records", report.Records,
		"shards", report.Shards,
		"groups", report.Groups,
		"elapsed", time.Since(start))
	return report, nil
}

// Plan computes the shard documents for records, keyed by document name,
// without writing them. Records are assumed valid.
func Plan(records []Record, opts ...Option) map[string]dataset.Shard {
	o := newOptions(opts)
	ranked := rank(records, o.cityPop)
	out := make(map[string]dataset.Shard)
	partition(out, "", ranked, o.limit)
	return out
}

type rankedRecord struct {
	Record
	weight int
}

// rank orders records most populous first, breaking ties by code.
func rank(records []Record, cityPop bool) []rankedRecord {
	var cities map[string]int
	if cityPop {
		cities = make(map[string]int)
		for _, r := range records {
			cities[r.City] += r.Pop
		}
	}

	ranked := make([]rankedRecord, len(records))
	for i, r := range records {
		w := r.Pop
		if cityPop {
			w = cities[r.City]
		}
		ranked[i] = rankedRecord{Record: r, weight: w}
	}
	slices.SortStableFunc(ranked, func(a, b rankedRecord) int {
		if c := cmp.Compare(b.weight, a.weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return ranked
}

// partition writes the shard for prefix into out and recurses into every
// child prefix until the leaf level. records must be ranked.
func partition(out map[string]dataset.Shard, prefix string, records []rankedRecord, limit int) {
	level := len(prefix) + 1
	children := make(map[string][]rankedRecord)
	for _, r := range records {
		key := r.Code[:level]
		children[key] = append(children[key], r)
	}

	shard := make(dataset.Shard, len(children))
	for key, members := range children {
		keep := limit
		if level < leafLevel {
			partition(out, key, members, limit)
		} else {
			keep = 0
		}
		shard[key] = group(members, keep)
	}
	out[dataset.ShardName(prefix)] = shard
}

// group builds the group for members, keeping at most keep candidates
// (all when keep < 1). Packed coordinates cover every member, in order of
// first appearance.
func group(members []rankedRecord, keep int) dataset.Group {
	var g dataset.Group
	seen := make(map[int]struct{})
	for _, r := range members {
		p := dataset.Pack(dataset.Coord{I: r.I, J: r.J})
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			g.Packed = append(g.Packed, p)
		}
	}

	n := len(members)
	if keep > 0 {
		n = min(n, keep)
	}
	g.Entries = make([]dataset.Entry, n)
	for i := range n {
		g.Entries[i] = members[i].entry()
	}
	return g
}
