package elevation

import (
	"math"

	"github.com/aquilax/go-perlin"

	"github.com/sunward/terrainview/internal/geo"
)

const (
	perlinAlpha   = 2.0
	perlinBeta    = 2.0
	perlinOctaves = 3
)

// Synthesize generates plausible terrain for a location when no real
// elevation data is available. It is a pure function of (center, gridSize):
// the same location always yields bit-identical heights.
func Synthesize(center geo.Point, gridSize int) *Grid {
	seed := locationSeed(center)
	noise := perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed)

	// Base elevation rises towards the poles so high-latitude scenes do
	// not all look like coastal plains.
	base := 200.0 + 1800.0*math.Abs(center.Lat)/90.0

	phaseA := math.Mod(center.Lat*13.37, 2*math.Pi)
	phaseB := math.Mod(center.Lon*7.91, 2*math.Pi)
	phaseC := math.Mod((center.Lat+center.Lon)*3.17, 2*math.Pi)

	heights := make([]float64, gridSize*gridSize)
	for row := 0; row < gridSize; row++ {
		u := cellFrac(row, gridSize)
		for col := 0; col < gridSize; col++ {
			v := cellFrac(col, gridSize)

			h := base
			h += 320.0 * math.Sin(3.1*u*2*math.Pi+phaseA)
			h += 240.0 * math.Sin(2.3*v*2*math.Pi+phaseB)
			h += 150.0 * math.Sin(5.7*(u+v)*math.Pi+phaseC)
			h += 180.0 * noise.Noise2D(u*4.0+0.5, v*4.0+0.5)

			// Keep synthetic terrain above sea level
			if h < 10.0 {
				h = 10.0
			}
			heights[row*gridSize+col] = h
		}
	}

	return NewGrid(gridSize, heights)
}

// locationSeed derives a noise seed from coordinates quantized to ~10m,
// so nearby but distinct locations get distinct terrain.
func locationSeed(p geo.Point) int64 {
	latQ := int64(math.Round(p.Lat * 1e4))
	lonQ := int64(math.Round(p.Lon * 1e4))
	return latQ<<32 ^ (lonQ & 0xffffffff)
}

func cellFrac(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}
