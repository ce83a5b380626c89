package build

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipgrid/dataset"
)

func TestWriteGrid(t *testing.T) {
	t.Parallel()

	g := &dataset.Grid{
		W: 4,
		H: 3,
		Regions: []*dataset.Region{
			{I: 0, J: 0, Stations: []string{"724940-23234"}, City: "SAN FRANCISCO, CA", Total: 200},
			{I: 3, J: 2, Months: [12]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}},
		},
	}
	sink := NewMemSink()
	require.NoError(t, WriteGrid(context.Background(), sink, g))

	data, err := sink.Fetch(context.Background(), dataset.GridName)
	require.NoError(t, err)
	got, err := dataset.DecodeGrid(data)
	require.NoError(t, err)

	assert.Equal(t, 4, got.W)
	r, ok := got.Region(3, 2)
	require.True(t, ok)
	assert.Equal(t, 12, r.Months[11])
	assert.Equal(t, dataset.UnnamedRegion, r.DisplayName())
}

func TestWriteGridInvalid(t *testing.T) {
	t.Parallel()

	g := &dataset.Grid{W: 2, H: 2, Regions: []*dataset.Region{{I: 5, J: 0}}}
	err := WriteGrid(context.Background(), NewMemSink(), g)
	require.ErrorIs(t, err, dataset.ErrMalformedGrid)
}

func TestLabelRegions(t *testing.T) {
	t.Parallel()

	g := &dataset.Grid{
		W: 5,
		H: 5,
		Regions: []*dataset.Region{
			{I: 1, J: 1},
			{I: 2, J: 1},
			{I: 1, J: 2},
			{I: 4, J: 4},
			{I: 3, J: 3, City: "PRESET"},
		},
	}
	records := []Record{
		{Code: "89501", City: "RENO, NV", Pop: 300, I: 1, J: 1},
		{Code: "89502", City: "SPARKS, NV", Pop: 100, I: 1, J: 1},
		{Code: "89503", City: "SPARKS, NV", Pop: 100, I: 1, J: 1},
		{Code: "89504", City: "ELSEWHERE", Pop: 999, I: 3, J: 3},
	}

	LabelRegions(g, records)

	labels := map[[2]int]string{}
	for _, r := range g.Regions {
		labels[[2]int{r.I, r.J}] = r.City
	}
	assert.Equal(t, "RENO, NV", labels[[2]int{1, 1}])
	assert.Equal(t, "EAST OF RENO, NV", labels[[2]int{2, 1}])
	assert.Equal(t, "SOUTH OF RENO, NV", labels[[2]int{1, 2}])
	assert.Equal(t, "PRESET", labels[[2]int{3, 3}])
	assert.Equal(t, "SE OF ELSEWHERE", labels[[2]int{4, 4}])
}
