// Package lighting provides sun angle math for terrain shading.
package lighting

import (
	"math"

	pkgmath "github.com/sunward/terrainview/pkg/math"
)

// SunDirection converts azimuth/altitude angles to a light direction.
// Azimuth is compass degrees (0 north, 90 east), altitude is elevation
// from the horizon in degrees (0-90). Returns a normalized direction
// vector pointing towards the sun in world space, where the terrain's
// north edge lies at -Z and east at +X.
func SunDirection(azimuth, altitude float64) [3]float32 {
	azRad := azimuth * math.Pi / 180.0
	altRad := altitude * math.Pi / 180.0

	x := float32(math.Cos(altRad) * math.Sin(azRad))
	y := float32(math.Sin(altRad))
	z := float32(-math.Cos(altRad) * math.Cos(azRad))

	return [3]float32{x, y, z}
}

// SunPosition places the sun at the given distance from the origin
// along its direction.
func SunPosition(azimuth, altitude float64, distance float32) pkgmath.Vec3 {
	d := SunDirection(azimuth, altitude)
	return pkgmath.Vec3{
		X: d[0] * distance,
		Y: d[1] * distance,
		Z: d[2] * distance,
	}
}
