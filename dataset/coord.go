package dataset

// Coord is a grid coordinate. I is the column and J the row.
type Coord struct {
	I int
	J int
}

// Pack encodes c as a single integer with I in the high byte and J in the
// low byte. Both axes must fit in 8 bits.
func Pack(c Coord) int {
	return (c.I&0xff)<<8 | c.J&0xff
}

// Unpack decodes packed coordinates, preserving input order.
func Unpack(packed []int) []Coord {
	coords := make([]Coord, len(packed))
	for i, v := range packed {
		coords[i] = Coord{I: v >> 8, J: v & 0xff}
	}
	return coords
}
