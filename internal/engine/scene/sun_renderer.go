package scene

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/sunward/terrainview/internal/engine/lighting"
	"github.com/sunward/terrainview/internal/engine/scene/shaders"
	"github.com/sunward/terrainview/internal/engine/shader"
	"github.com/sunward/terrainview/pkg/math"
)

const (
	sunMarkerVerts = 24 // octahedron, 8 triangles
	sunRayVerts    = 2
)

// SunRenderer draws a sun marker and a light ray towards the scene
// center. Visibility is a flag: toggling never touches GPU resources.
type SunRenderer struct {
	program     uint32
	locViewProj int32
	locColor    int32

	vao uint32
	vbo uint32

	visible  bool
	azimuth  float64 // degrees, clockwise from north
	altitude float64 // degrees above the horizon
	distance float32
	radius   float32
}

// NewSunRenderer compiles the sun shader and allocates a dynamic vertex
// buffer. Must be called on the GL thread.
func NewSunRenderer() (*SunRenderer, error) {
	sr := &SunRenderer{
		altitude: 45,
		distance: 8000,
		radius:   200,
	}

	program, err := shader.CompileProgram(shaders.SunVertexShader, shaders.SunFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("sun shader: %w", err)
	}
	sr.program = program
	sr.locViewProj = shader.GetUniform(program, "uViewProj")
	sr.locColor = shader.GetUniform(program, "uColor")

	gl.GenVertexArrays(1, &sr.vao)
	gl.BindVertexArray(sr.vao)

	gl.GenBuffers(1, &sr.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, sr.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, (sunMarkerVerts+sunRayVerts)*3*4, nil, gl.DYNAMIC_DRAW)

	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)
	gl.EnableVertexAttribArray(0)

	gl.BindVertexArray(0)

	sr.rebuildGeometry()
	return sr, nil
}

// SetAngles updates the sun direction. Angles are in degrees.
func (sr *SunRenderer) SetAngles(azimuth, altitude float64) {
	sr.azimuth = azimuth
	sr.altitude = altitude
	sr.rebuildGeometry()
}

// FitScene scales the marker distance and size to the installed terrain.
func (sr *SunRenderer) FitScene(worldSize float32) {
	sr.distance = worldSize * 0.8
	sr.radius = worldSize * 0.02
	sr.rebuildGeometry()
}

// SetVisible toggles the marker without releasing anything.
func (sr *SunRenderer) SetVisible(v bool) { sr.visible = v }

// Visible reports whether the marker is drawn.
func (sr *SunRenderer) Visible() bool { return sr.visible }

// Direction returns the normalized light direction for terrain shading.
func (sr *SunRenderer) Direction() [3]float32 {
	return lighting.SunDirection(sr.azimuth, sr.altitude)
}

// rebuildGeometry refills the vertex buffer with an octahedron marker
// at the sun position and a ray back to the origin.
func (sr *SunRenderer) rebuildGeometry() {
	if sr.vbo == 0 {
		return
	}

	pos := lighting.SunPosition(sr.azimuth, sr.altitude, sr.distance)
	r := sr.radius

	top := [3]float32{pos.X, pos.Y + r, pos.Z}
	bottom := [3]float32{pos.X, pos.Y - r, pos.Z}
	east := [3]float32{pos.X + r, pos.Y, pos.Z}
	west := [3]float32{pos.X - r, pos.Y, pos.Z}
	north := [3]float32{pos.X, pos.Y, pos.Z - r}
	south := [3]float32{pos.X, pos.Y, pos.Z + r}

	tris := [][3][3]float32{
		{top, east, south}, {top, south, west}, {top, west, north}, {top, north, east},
		{bottom, south, east}, {bottom, west, south}, {bottom, north, west}, {bottom, east, north},
	}

	data := make([]float32, 0, (sunMarkerVerts+sunRayVerts)*3)
	for _, tri := range tris {
		for _, v := range tri {
			data = append(data, v[0], v[1], v[2])
		}
	}
	// Ray from the sun to the scene center
	data = append(data, pos.X, pos.Y, pos.Z, 0, 0, 0)

	gl.BindBuffer(gl.ARRAY_BUFFER, sr.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(data)*4, unsafe.Pointer(&data[0]))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

// Draw renders the marker and ray when visible.
func (sr *SunRenderer) Draw(viewProj math.Mat4) {
	if !sr.visible || sr.vao == 0 {
		return
	}

	gl.UseProgram(sr.program)
	gl.UniformMatrix4fv(sr.locViewProj, 1, false, &viewProj[0])

	gl.BindVertexArray(sr.vao)

	gl.Uniform4f(sr.locColor, 1.0, 0.85, 0.2, 1.0)
	gl.DrawArrays(gl.TRIANGLES, 0, sunMarkerVerts)

	gl.Uniform4f(sr.locColor, 1.0, 0.95, 0.6, 0.6)
	gl.DrawArrays(gl.LINES, sunMarkerVerts, sunRayVerts)

	gl.BindVertexArray(0)
}

// Destroy releases all GPU resources.
func (sr *SunRenderer) Destroy() {
	if sr.vao != 0 {
		gl.DeleteVertexArrays(1, &sr.vao)
		sr.vao = 0
	}
	if sr.vbo != 0 {
		gl.DeleteBuffers(1, &sr.vbo)
		sr.vbo = 0
	}
	if sr.program != 0 {
		gl.DeleteProgram(sr.program)
		sr.program = 0
	}
}
