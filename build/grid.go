package build

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/meigma/zipgrid/dataset"
)

// WriteGrid validates g and writes it as the grid document.
func WriteGrid(ctx context.Context, sink Sink, g *dataset.Grid) error {
	if err := g.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode grid: %w", err)
	}
	return sink.WriteFile(ctx, dataset.GridName, data)
}

// LabelRegions names every unlabeled region of g after the most populous
// city among the records placed in it. Regions with no city of their own
// are named relative to the most populous neighboring city, for example
// "EAST OF RENO". Regions with no populated neighbor stay unlabeled.
func LabelRegions(g *dataset.Grid, records []Record) {
	type cell struct{ i, j int }
	pops := make(map[cell]map[string]int)
	for _, r := range records {
		c := cell{r.I, r.J}
		if pops[c] == nil {
			pops[c] = make(map[string]int)
		}
		pops[c][r.City] += r.Pop
	}

	major := func(i, j int) (string, int) {
		if _, ok := g.Region(i, j); !ok {
			return "", 0
		}
		var name string
		var best int
		for city, pop := range pops[cell{i, j}] {
			if pop > best || (pop == best && city < name) {
				name, best = city, pop
			}
		}
		return name, best
	}

	// Offsets are from the neighbor to the region being labeled.
	neighbors := []struct {
		di, dj int
		label  string
	}{
		{-1, 0, "EAST OF"},
		{-1, -1, "SE OF"},
		{-1, 1, "NE OF"},
		{1, 0, "WEST OF"},
		{1, -1, "SW OF"},
		{1, 1, "NW OF"},
		{0, -1, "SOUTH OF"},
		{0, 1, "NORTH OF"},
	}

	labels := make(map[*dataset.Region]string)
	for _, r := range g.Regions {
		if r.City != "" {
			continue
		}
		if name, _ := major(r.I, r.J); name != "" {
			labels[r] = name
			continue
		}

		type candidate struct {
			name string
			pop  int
		}
		var found []candidate
		for _, n := range neighbors {
			if name, pop := major(r.I+n.di, r.J+n.dj); name != "" {
				found = append(found, candidate{n.label + " " + name, pop})
			}
		}
		if len(found) == 0 {
			continue
		}
		// Ties go to the earlier direction.
		best := slices.MaxFunc(found, func(a, b candidate) int {
			return cmp.Compare(a.pop, b.pop)
		})
		labels[r] = best.name
	}

	for r, name := range labels {
		r.City = name
	}
}
