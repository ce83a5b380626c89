package dataset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix string
		want   string
	}{
		{"", "z/root.json"},
		{"9", "z/9/9.json"},
		{"94", "z/9/94.json"},
		{"941", "z/9/941.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShardName(tt.prefix), "prefix %q", tt.prefix)
	}
}

func TestUnpack(t *testing.T) {
	t.Parallel()

	got := Unpack([]int{0x0102, 0x0000, 0xFFFF})
	assert.Equal(t, []Coord{{1, 2}, {0, 0}, {255, 255}}, got)
	assert.Empty(t, Unpack(nil))
}

func TestPackRoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range []Coord{{0, 0}, {1, 2}, {77, 42}, {255, 255}} {
		assert.Equal(t, []Coord{c}, Unpack([]int{Pack(c)}))
	}
	assert.Equal(t, 258, Pack(Coord{I: 1, J: 2}))
}

func TestDecodeShardCompact(t *testing.T) {
	t.Parallel()

	doc := []byte(`{
		"9411": {"Z": [["94110", "SAN FRANCISCO, CA", 12, 40], ["94114", "SAN FRANCISCO, CA", 12, 41]], "C": [3112, 3113]},
		"9412": {"Z": [], "C": []}
	}`)
	s, err := DecodeShard(doc)
	require.NoError(t, err)
	require.Len(t, s, 2)

	g := s["9411"]
	require.Len(t, g.Entries, 2)
	assert.Equal(t, Entry{Code: "94110", Name: "SAN FRANCISCO, CA", I: 12, J: 40}, g.Entries[0])
	assert.Equal(t, []Coord{{12, 40}, {12, 41}}, g.Coords())
	assert.Empty(t, s["9412"].Entries)
}

func TestDecodeShardLongFieldNames(t *testing.T) {
	t.Parallel()

	doc := []byte(`{"1": {"entries": [["10001", "NEW YORK, NY", 80, 20]], "packedCoords": [20500]}}`)
	s, err := DecodeShard(doc)
	require.NoError(t, err)
	assert.Equal(t, "10001", s["1"].Entries[0].Code)
	assert.Equal(t, []int{20500}, s["1"].Packed)
}

func TestValidPrefix(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"", "9", "94", "941", "K1A"} {
		assert.True(t, ValidPrefix(p), p)
	}
	for _, p := range []string{"9411", "é", "9é", "9/", "..", " 9"} {
		assert.False(t, ValidPrefix(p), p)
	}
}

func TestDecodeGridLongFieldNames(t *testing.T) {
	t.Parallel()

	doc := []byte(`{"width": 4, "height": 3, "regions": [
		{"i": 1, "j": 2, "stationCodes": ["KSFO"], "displayName": "SAN FRANCISCO",
		 "monthlyValues": [1,2,3,4,5,6,7,8,9,10,11,12], "total": 78}
	]}`)
	g, err := DecodeGrid(doc)
	require.NoError(t, err)
	assert.Equal(t, 4, g.W)
	assert.Equal(t, 3, g.H)

	r, ok := g.Region(1, 2)
	require.True(t, ok)
	assert.Equal(t, []string{"KSFO"}, r.Stations)
	assert.Equal(t, "SAN FRANCISCO", r.DisplayName())
	assert.Equal(t, 12, r.Months[11])
	assert.Equal(t, 78, r.Total)

	// Encoding keeps the compact names.
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"W":4`)
	assert.Contains(t, string(data), `"Months":[1,2,3`)
	assert.NotContains(t, string(data), "monthlyValues")
}

func TestDecodeShardNull(t *testing.T) {
	t.Parallel()

	s, err := DecodeShard([]byte("null"))
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Empty(t, s)
}

func TestDecodeShardMalformed(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{
		`not json`,
		`{"1": {"Z": [["10001", "NYC"]]}}`,
		`{"1": {"Z": [[10001, "NYC", 1, 2]]}}`,
		`[1, 2]`,
	} {
		_, err := DecodeShard([]byte(doc))
		assert.ErrorIs(t, err, ErrMalformedShard, "doc %s", doc)
	}
}

func TestEncodeShard(t *testing.T) {
	t.Parallel()

	s := Shard{
		"1": {Entries: []Entry{{Code: "10001", Name: "NEW YORK, NY", I: 80, J: 20}}, Packed: []int{Pack(Coord{80, 20})}},
		"0": {},
	}
	data, err := EncodeShard(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"0":{"Z":[],"C":[]},"1":{"Z":[["10001","NEW YORK, NY",80,20]],"C":[20500]}}`, string(data))
}
