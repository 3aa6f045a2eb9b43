// Package elevation fetches gridded terrain heights around a location,
// falling back to synthesized terrain when the data source is unreachable.
package elevation

// Grid is a square, row-major matrix of terrain heights in meters.
type Grid struct {
	Size    int
	Heights []float64
	Min     float64
	Max     float64
}

// NewGrid wraps a flat height array, computing the min/max range.
// len(heights) must be size*size.
func NewGrid(size int, heights []float64) *Grid {
	g := &Grid{Size: size, Heights: heights}
	if len(heights) == 0 {
		return g
	}
	g.Min = heights[0]
	g.Max = heights[0]
	for _, h := range heights[1:] {
		if h < g.Min {
			g.Min = h
		}
		if h > g.Max {
			g.Max = h
		}
	}
	return g
}

// At returns the height at grid cell (row, col).
func (g *Grid) At(row, col int) float64 {
	return g.Heights[row*g.Size+col]
}

// Range returns the elevation span max-min.
func (g *Grid) Range() float64 {
	return g.Max - g.Min
}
