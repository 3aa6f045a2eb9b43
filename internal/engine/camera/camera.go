// Package camera provides the orbital camera for terrain viewing.
package camera

import (
	gomath "math"

	"github.com/sunward/terrainview/pkg/math"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	// Center point to orbit around
	CenterX, CenterY, CenterZ float32

	// Spherical coordinates
	Distance  float32 // Distance from center
	RotationX float32 // Pitch (vertical angle, radians)
	RotationY float32 // Yaw (horizontal angle, radians)

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity  float32
	ZoomSensitivity  float32
	PinchSensitivity float32
}

// NewOrbitCamera creates a new orbit camera with default settings.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:         8000.0,
		RotationX:        0.6,
		RotationY:        0.0,
		MinDistance:      500.0,
		MaxDistance:      60000.0,
		MinPitch:         0.1,
		MaxPitch:         1.5,
		DragSensitivity:  0.005,
		ZoomSensitivity:  0.1,
		PinchSensitivity: 2.0,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	x := c.Distance * float32(gomath.Cos(float64(c.RotationX))*gomath.Sin(float64(c.RotationY)))
	y := c.Distance * float32(gomath.Sin(float64(c.RotationX)))
	z := c.Distance * float32(gomath.Cos(float64(c.RotationX))*gomath.Cos(float64(c.RotationY)))

	return math.Vec3{
		X: c.CenterX + x,
		Y: c.CenterY + y,
		Z: c.CenterZ + z,
	}
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	pos := c.Position()
	center := math.Vec3{X: c.CenterX, Y: c.CenterY, Z: c.CenterZ}
	up := math.Vec3{X: 0, Y: 1, Z: 0}
	return math.LookAt(pos, center, up)
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX += deltaY * c.DragSensitivity

	// Clamp pitch
	if c.RotationX < c.MinPitch {
		c.RotationX = c.MinPitch
	}
	if c.RotationX > c.MaxPitch {
		c.RotationX = c.MaxPitch
	}
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.clampDistance()
}

// HandlePinch scales distance by a trackpad pinch factor. A factor
// above 1 zooms in.
func (c *OrbitCamera) HandlePinch(factor float32) {
	if factor <= 0 {
		return
	}
	scale := 1 + (factor-1)*c.PinchSensitivity
	if scale < 0.1 {
		scale = 0.1
	}
	c.Distance /= scale
	c.clampDistance()
}

func (c *OrbitCamera) clampDistance() {
	if c.Distance < c.MinDistance {
		c.Distance = c.MinDistance
	}
	if c.Distance > c.MaxDistance {
		c.Distance = c.MaxDistance
	}
}

// SetCenter sets the camera's center point.
func (c *OrbitCamera) SetCenter(x, y, z float32) {
	c.CenterX = x
	c.CenterY = y
	c.CenterZ = z
}

// FrameScene positions the camera to take in a freshly installed
// terrain of the given world size and peak height, and rescales the
// zoom limits so a small scene cannot be orbited from orbit-of-Mars
// distance.
func (c *OrbitCamera) FrameScene(worldSize, maxHeight float32) {
	c.CenterX = 0
	c.CenterY = maxHeight / 2
	c.CenterZ = 0

	c.Distance = worldSize * 0.8
	c.MinDistance = worldSize * 0.05
	c.MaxDistance = worldSize * 6

	c.RotationX = 0.6 // Look down at ~35 degrees
	c.RotationY = 0.0
	c.clampDistance()
}
