package dataset

import (
	"encoding/json"
	"fmt"
)

// UnnamedRegion is the display name used for regions without a label.
const UnnamedRegion = "MIDDLE OF NOWHERE"

// MonthsPerYear is the number of monthly values carried by each region.
const MonthsPerYear = 12

// Region is one active cell of the grid with its monthly intensity data.
// Monthly values and the total are scaled to 0..255.
type Region struct {
	I        int                `json:"I"`
	J        int                `json:"J"`
	Stations []string           `json:"Stations"`
	City     string             `json:"City"`
	Months   [MonthsPerYear]int `json:"Months"`
	Total    int                `json:"Total"`
}

// DisplayName returns the region label, or UnnamedRegion if it has none.
func (r *Region) DisplayName() string {
	if r.City == "" {
		return UnnamedRegion
	}
	return r.City
}

// Grid describes the visualization surface: a W by H matrix of which only
// the listed regions are active.
type Grid struct {
	W       int       `json:"W"`
	H       int       `json:"H"`
	Regions []*Region `json:"Regions"`

	byCoord map[int]*Region
}

type regionWire struct {
	I             int                 `json:"I"`
	J             int                 `json:"J"`
	Stations      []string            `json:"Stations"`
	StationCodes  []string            `json:"stationCodes"`
	City          string              `json:"City"`
	DisplayName   string              `json:"displayName"`
	Months        *[MonthsPerYear]int `json:"Months"`
	MonthlyValues *[MonthsPerYear]int `json:"monthlyValues"`
	Total         int                 `json:"Total"`
}

// UnmarshalJSON accepts either the compact field names or the long
// stationCodes/displayName/monthlyValues names.
func (r *Region) UnmarshalJSON(data []byte) error {
	var w regionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Region{I: w.I, J: w.J, Stations: w.Stations, City: w.City, Total: w.Total}
	if out.Stations == nil {
		out.Stations = w.StationCodes
	}
	if out.City == "" {
		out.City = w.DisplayName
	}
	switch {
	case w.Months != nil:
		out.Months = *w.Months
	case w.MonthlyValues != nil:
		out.Months = *w.MonthlyValues
	}
	*r = out
	return nil
}

type gridWire struct {
	W       int       `json:"W"`
	H       int       `json:"H"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Regions []*Region `json:"Regions"`
}

// UnmarshalJSON accepts either W/H or width/height for the dimensions.
// Region keys match case-insensitively.
func (g *Grid) UnmarshalJSON(data []byte) error {
	var w gridWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*g = Grid{W: w.W, H: w.H, Regions: w.Regions}
	if g.W == 0 {
		g.W = w.Width
	}
	if g.H == 0 {
		g.H = w.Height
	}
	return nil
}

// DecodeGrid parses and validates a grid document.
func DecodeGrid(data []byte) (*Grid, error) {
	var g Grid
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGrid, err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.buildLookup()
	return &g, nil
}

// Validate checks dimensions and that every region lies inside the grid
// and occupies a distinct cell.
func (g *Grid) Validate() error {
	if g.W <= 0 || g.H <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrMalformedGrid, g.W, g.H)
	}
	if g.W > 256 || g.H > 256 {
		return fmt.Errorf("%w: dimensions %dx%d exceed packed coordinate range", ErrMalformedGrid, g.W, g.H)
	}
	seen := make(map[int]struct{}, len(g.Regions))
	for _, r := range g.Regions {
		if r == nil {
			return fmt.Errorf("%w: null region", ErrMalformedGrid)
		}
		if r.I < 0 || r.I >= g.W || r.J < 0 || r.J >= g.H {
			return fmt.Errorf("%w: region (%d,%d) outside %dx%d", ErrMalformedGrid, r.I, r.J, g.W, g.H)
		}
		k := r.J*g.W + r.I
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: duplicate region (%d,%d)", ErrMalformedGrid, r.I, r.J)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// Region returns the active region at (i, j). Grids built by DecodeGrid
// answer from a lookup table; hand-assembled grids fall back to a scan.
func (g *Grid) Region(i, j int) (*Region, bool) {
	if i < 0 || i >= g.W || j < 0 || j >= g.H {
		return nil, false
	}
	if g.byCoord != nil {
		r, ok := g.byCoord[j*g.W+i]
		return r, ok
	}
	for _, r := range g.Regions {
		if r != nil && r.I == i && r.J == j {
			return r, true
		}
	}
	return nil, false
}

// Rows returns the number of rows actually occupied by regions.
func (g *Grid) Rows() int {
	rows := 0
	for _, r := range g.Regions {
		if r.J+1 > rows {
			rows = r.J + 1
		}
	}
	return rows
}

func (g *Grid) buildLookup() {
	g.byCoord = make(map[int]*Region, len(g.Regions))
	for _, r := range g.Regions {
		if r == nil {
			continue
		}
		g.byCoord[r.J*g.W+r.I] = r
	}
}
