package geo

import (
	"math"
	"strconv"
	"strings"
)

// Tile is a slippy-map tile index in the standard power-of-two pyramid.
type Tile struct {
	Z int
	X int
	Y int
}

// mercatorLatLimit is the latitude beyond which the Web Mercator
// projection is undefined.
const mercatorLatLimit = 85.05112878

// TileAt returns the tile containing the given coordinate at a zoom level.
// Latitude is clamped to the Mercator limit and the result is clamped to
// [0, 2^z-1] on both axes.
func TileAt(p Point, zoom int) Tile {
	n := math.Pow(2, float64(zoom))

	lat := p.Lat
	if lat > mercatorLatLimit {
		lat = mercatorLatLimit
	}
	if lat < -mercatorLatLimit {
		lat = -mercatorLatLimit
	}

	x := int(math.Floor((p.Lon + 180.0) / 360.0 * n))

	latRad := lat * math.Pi / 180.0
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))

	maxTile := int(n) - 1
	if x < 0 {
		x = 0
	} else if x > maxTile {
		x = maxTile
	}
	if y < 0 {
		y = 0
	} else if y > maxTile {
		y = maxTile
	}

	return Tile{Z: zoom, X: x, Y: y}
}

// TileURL expands a {z}/{x}/{y} template to a concrete tile URL.
// {-y} is supported for providers with a flipped Y axis.
func TileURL(template string, t Tile) string {
	url := template
	url = strings.ReplaceAll(url, "{z}", strconv.Itoa(t.Z))
	url = strings.ReplaceAll(url, "{x}", strconv.Itoa(t.X))
	url = strings.ReplaceAll(url, "{y}", strconv.Itoa(t.Y))
	url = strings.ReplaceAll(url, "{-y}", strconv.Itoa((1<<uint(t.Z))-1-t.Y))
	return url
}
