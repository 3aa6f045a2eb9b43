// Package geo provides geodetic sample grids and Web Mercator tile math.
package geo

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// DegPerKm is the equirectangular approximation of degrees of latitude
// per kilometre. Good enough for coverage radii up to a few tens of km.
const DegPerKm = 1.0 / 111.0

// SampleGrid returns gridSize*gridSize coordinates evenly spaced over a
// square of +/- radiusKm around center, row-major: rows sweep latitude
// from south to north, columns sweep longitude from west to east.
func SampleGrid(center Point, radiusKm float64, gridSize int) []Point {
	extent := radiusKm * DegPerKm

	points := make([]Point, 0, gridSize*gridSize)
	for row := 0; row < gridSize; row++ {
		lat := center.Lat - extent + 2*extent*frac(row, gridSize)
		for col := 0; col < gridSize; col++ {
			lon := center.Lon - extent + 2*extent*frac(col, gridSize)
			points = append(points, Point{Lat: lat, Lon: lon})
		}
	}
	return points
}

// frac maps index i in [0, n) to a fraction in [0, 1] inclusive.
func frac(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}
