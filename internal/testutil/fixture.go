package testutil

import (
	"testing"

	"github.com/meigma/zipgrid/dataset"
)

// Entry is shorthand for building a dataset.Entry.
func Entry(code, name string, i, j int) dataset.Entry {
	return dataset.Entry{Code: code, Name: name, I: i, J: j}
}

// Group builds a group from entries, packing their coordinates in order
// of first appearance.
func Group(entries ...dataset.Entry) dataset.Group {
	seen := make(map[int]struct{})
	var packed []int
	for _, e := range entries {
		p := dataset.Pack(dataset.Coord{I: e.I, J: e.J})
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		packed = append(packed, p)
	}
	return dataset.Group{Entries: entries, Packed: packed}
}

// SmallDataset returns fetcher documents for a tiny three-level dataset:
// root, the "9" and "94" shards, and the "941" and "100" leaf shards.
func SmallDataset(tb testing.TB) map[string][]byte {
	tb.Helper()

	sf1 := Entry("94110", "SAN FRANCISCO, CA", 12, 40)
	sf2 := Entry("94114", "SAN FRANCISCO, CA", 12, 41)
	oak := Entry("94601", "OAKLAND, CA", 13, 40)
	nyc := Entry("10001", "NEW YORK, NY", 80, 20)

	return map[string][]byte{
		dataset.RootShardName: ShardDoc(tb, dataset.Shard{
			"9": Group(sf1, sf2, oak),
			"1": Group(nyc),
		}),
		dataset.ShardName("9"): ShardDoc(tb, dataset.Shard{
			"94": Group(sf1, sf2, oak),
		}),
		dataset.ShardName("94"): ShardDoc(tb, dataset.Shard{
			"941": Group(sf1, sf2),
			"946": Group(oak),
		}),
		dataset.ShardName("941"): ShardDoc(tb, dataset.Shard{
			"9411": Group(sf1, sf2),
		}),
		dataset.ShardName("946"): ShardDoc(tb, dataset.Shard{
			"9460": Group(oak),
		}),
		dataset.ShardName("100"): ShardDoc(tb, dataset.Shard{
			"1000": Group(nyc),
		}),
	}
}
