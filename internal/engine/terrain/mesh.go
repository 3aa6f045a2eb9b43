package terrain

import (
	"math"

	"github.com/sunward/terrainview/internal/elevation"
)

// Params controls mesh scaling.
type Params struct {
	RadiusKm      float64 // coverage radius the grid was sampled over
	WorldScale    float64 // world units per km of radius
	AmplifyFloorM float64 // minimum vertical span used for exaggeration
	Textured      bool    // true when a tile texture will be draped
}

// Build converts an elevation grid into a renderable mesh.
//
// The mesh is a square centered on the origin: X grows east, Z shrinks
// north, Y is elevation. Heights are normalized over the grid's range and
// exaggerated so small terrain features stay visible at any radius; a
// flat grid (zero range) produces a flat plane at Y=0.
func Build(grid *elevation.Grid, p Params) *Mesh {
	size := grid.Size
	worldSize := float32(p.RadiusKm * p.WorldScale)
	half := worldSize / 2

	span := grid.Range()
	amplify := span * 3
	if amplify < p.AmplifyFloorM {
		amplify = p.AmplifyFloorM
	}

	var maxHeight float32
	vertices := make([]Vertex, 0, size*size)
	for row := 0; row < size; row++ {
		// Row 0 is the southern edge; north is -Z
		rowFrac := gridFrac(row, size)
		z := half - worldSize*float32(rowFrac)
		for col := 0; col < size; col++ {
			colFrac := gridFrac(col, size)
			x := -half + worldSize*float32(colFrac)

			n := normalizedHeight(grid, row, col, span)
			y := float32(n * amplify)
			if y > maxHeight {
				maxHeight = y
			}

			v := Vertex{
				Position: [3]float32{x, y, z},
				// Tile images have their top row at the northern edge
				TexCoord: [2]float32{float32(colFrac), 1 - float32(rowFrac)},
				Color:    rampColor(n),
			}
			if p.Textured {
				v.Color = [4]float32{1, 1, 1, 1}
			}
			vertices = append(vertices, v)
		}
	}

	computeNormals(vertices, grid, size, worldSize, amplify, span)

	indices := make([]uint32, 0, (size-1)*(size-1)*6)
	for row := 0; row < size-1; row++ {
		for col := 0; col < size-1; col++ {
			a := uint32(row*size + col)
			b := a + 1
			c := a + uint32(size)
			d := c + 1

			// Counter-clockwise when viewed from above
			indices = append(indices,
				a, b, d,
				a, d, c,
			)
		}
	}

	return &Mesh{
		Vertices: vertices,
		Indices:  indices,
		Info: Info{
			MinElevation: grid.Min,
			MaxElevation: grid.Max,
			MaxHeight:    maxHeight,
			WorldSize:    worldSize,
			Textured:     p.Textured,
		},
	}
}

// normalizedHeight maps a grid cell into [0, 1] over the grid's range.
func normalizedHeight(grid *elevation.Grid, row, col int, span float64) float64 {
	if span <= 0 {
		return 0
	}
	return (grid.At(row, col) - grid.Min) / span
}

// computeNormals fills per-vertex normals using central differences on
// the exaggerated heights, falling back to one-sided differences at the
// grid edges.
func computeNormals(vertices []Vertex, grid *elevation.Grid, size int, worldSize float32, amplify, span float64) {
	if size < 2 {
		for i := range vertices {
			vertices[i].Normal = [3]float32{0, 1, 0}
		}
		return
	}
	spacing := float64(worldSize) / float64(size-1)

	height := func(row, col int) float64 {
		return normalizedHeight(grid, row, col, span) * amplify
	}

	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			c0, c1 := col-1, col+1
			if c0 < 0 {
				c0 = 0
			}
			if c1 > size-1 {
				c1 = size - 1
			}
			dhdx := (height(row, c1) - height(row, c0)) / (spacing * float64(c1-c0))

			r0, r1 := row-1, row+1
			if r0 < 0 {
				r0 = 0
			}
			if r1 > size-1 {
				r1 = size - 1
			}
			// Z decreases as the row index grows
			dhdz := (height(r1, col) - height(r0, col)) / (-spacing * float64(r1-r0))

			n := normalize([3]float32{float32(-dhdx), 1, float32(-dhdz)})
			vertices[row*size+col].Normal = n
		}
	}
}

// rampColor maps a normalized height to a lowland/midland/highland tint
// for untextured rendering.
func rampColor(n float64) [4]float32 {
	switch {
	case n < 0.35:
		// Lowland: blue-green
		t := float32(n / 0.35)
		return [4]float32{0.13 + 0.07*t, 0.38 + 0.12*t, 0.40 - 0.14*t, 1}
	case n < 0.7:
		// Midland: green
		t := float32((n - 0.35) / 0.35)
		return [4]float32{0.20 + 0.18*t, 0.50 - 0.12*t, 0.26 - 0.06*t, 1}
	default:
		// Highland: brown
		t := float32((n - 0.7) / 0.3)
		return [4]float32{0.38 + 0.14*t, 0.38 + 0.10*t, 0.20 + 0.18*t, 1}
	}
}

func normalize(v [3]float32) [3]float32 {
	length := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
	if length < 0.0001 {
		return [3]float32{0, 1, 0}
	}
	return [3]float32{v[0] / length, v[1] / length, v[2] / length}
}

func gridFrac(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}
