package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
)

// Code layout constants.
const (
	// CodeLen is the length of a complete postal code.
	CodeLen = 5

	// PrefixLen is the length of the prefix used to partition codes into shards.
	PrefixLen = 3
)

// Well-known document names.
const (
	GridName      = "norm.json"
	RootShardName = "z/root.json"
)

// Sentinel errors for dataset decoding.
var (
	// ErrMalformedShard is returned when a shard document cannot be decoded.
	ErrMalformedShard = errors.New("dataset: malformed shard")

	// ErrMalformedGrid is returned when a grid document cannot be decoded.
	ErrMalformedGrid = errors.New("dataset: malformed grid")
)

// Fetcher retrieves dataset documents by slash-separated name.
//
// Implementations must return an error wrapping fs.ErrNotExist when the
// document does not exist, and must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, name string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, name string) ([]byte, error) {
	return f(ctx, name)
}

// ValidPrefix reports whether prefix can name a shard document: at most
// PrefixLen ASCII letters or digits. The empty prefix is valid.
func ValidPrefix(prefix string) bool {
	if len(prefix) > PrefixLen {
		return false
	}
	for i := range len(prefix) {
		c := prefix[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

// ShardName returns the document name holding the shard for prefix, which
// must satisfy ValidPrefix. The empty prefix names the root shard.
func ShardName(prefix string) string {
	if prefix == "" {
		return RootShardName
	}
	return path.Join("z", prefix[:1], prefix+".json")
}

// Entry is a single postal-code record. Entries are immutable once loaded.
type Entry struct {
	Code string
	Name string
	I    int
	J    int
}

// MarshalJSON encodes e as a compact [code, name, i, j] tuple.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]any{e.Code, e.Name, e.I, e.J})
}

// UnmarshalJSON decodes a [code, name, i, j] tuple.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: entry: %v", ErrMalformedShard, err)
	}
	if len(raw) < 4 {
		return fmt.Errorf("%w: entry has %d fields, want 4", ErrMalformedShard, len(raw))
	}
	var out Entry
	if err := json.Unmarshal(raw[0], &out.Code); err != nil {
		return fmt.Errorf("%w: entry code: %v", ErrMalformedShard, err)
	}
	if err := json.Unmarshal(raw[1], &out.Name); err != nil {
		return fmt.Errorf("%w: entry name: %v", ErrMalformedShard, err)
	}
	if err := json.Unmarshal(raw[2], &out.I); err != nil {
		return fmt.Errorf("%w: entry i: %v", ErrMalformedShard, err)
	}
	if err := json.Unmarshal(raw[3], &out.J); err != nil {
		return fmt.Errorf("%w: entry j: %v", ErrMalformedShard, err)
	}
	*e = out
	return nil
}

// Group is the payload stored under one key of a shard: the candidate
// completions for that key and the packed coordinates of every region the
// key's codes fall in.
type Group struct {
	Entries []Entry
	Packed  []int
}

type groupWire struct {
	Z []Entry `json:"Z"`
	C []int   `json:"C"`
}

type groupWireLong struct {
	Entries      []Entry `json:"entries"`
	PackedCoords []int   `json:"packedCoords"`
}

// MarshalJSON encodes g using the compact Z/C field names.
func (g Group) MarshalJSON() ([]byte, error) {
	w := groupWire{Z: g.Entries, C: g.Packed}
	if w.Z == nil {
		w.Z = []Entry{}
	}
	if w.C == nil {
		w.C = []int{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts either the compact Z/C field names or the long
// entries/packedCoords names.
func (g *Group) UnmarshalJSON(data []byte) error {
	var short groupWire
	if err := json.Unmarshal(data, &short); err != nil {
		return err
	}
	if short.Z != nil || short.C != nil {
		g.Entries, g.Packed = short.Z, short.C
		return nil
	}
	var long groupWireLong
	if err := json.Unmarshal(data, &long); err != nil {
		return err
	}
	g.Entries, g.Packed = long.Entries, long.PackedCoords
	return nil
}

// Coords returns the unpacked region coordinates of g.
func (g Group) Coords() []Coord {
	return Unpack(g.Packed)
}

// Shard maps keys (prefixes one character longer than the shard's own
// prefix) to their groups. A shard may bundle several keys so a single
// request covers all children of a prefix.
type Shard map[string]Group

// DecodeShard parses a shard document. A JSON null decodes to an empty shard.
func DecodeShard(data []byte) (Shard, error) {
	var s Shard
	if err := json.Unmarshal(data, &s); err != nil {
		if errors.Is(err, ErrMalformedShard) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedShard, err)
	}
	if s == nil {
		s = Shard{}
	}
	return s, nil
}

// EncodeShard serializes s. Keys are emitted in sorted order.
func EncodeShard(s Shard) ([]byte, error) {
	if s == nil {
		s = Shard{}
	}
	return json.Marshal(s)
}
