// Package scene manages GPU terrain scenes: upload, rendering and the
// load lifecycle that swaps one scene for the next.
package scene

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/sunward/terrainview/internal/engine/scene/shaders"
	"github.com/sunward/terrainview/internal/engine/shader"
	"github.com/sunward/terrainview/internal/engine/terrain"
	"github.com/sunward/terrainview/pkg/math"
)

// TerrainScene holds the GPU resources for one installed terrain.
type TerrainScene struct {
	vao        uint32
	vbo        uint32
	ebo        uint32
	texture    uint32
	indexCount int32

	Info terrain.Info
}

// Released reports whether the scene's GPU resources have been freed.
func (s *TerrainScene) Released() bool {
	return s.vao == 0 && s.vbo == 0 && s.ebo == 0 && s.texture == 0
}

// TerrainRenderer owns the terrain shader and uploads/draws scenes.
type TerrainRenderer struct {
	program uint32

	locViewProj   int32
	locLightDir   int32
	locAmbient    int32
	locDiffuse    int32
	locTexture    int32
	locUseTexture int32

	// Lighting
	LightDir     [3]float32
	AmbientColor [3]float32
	DiffuseColor [3]float32
}

// NewTerrainRenderer compiles the terrain shader. Must be called on the
// GL thread with a current context.
func NewTerrainRenderer() (*TerrainRenderer, error) {
	tr := &TerrainRenderer{
		LightDir:     [3]float32{0.5, 0.866, 0.0},
		AmbientColor: [3]float32{0.35, 0.35, 0.35},
		DiffuseColor: [3]float32{1.0, 1.0, 1.0},
	}

	program, err := shader.CompileProgram(shaders.TerrainVertexShader, shaders.TerrainFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("terrain shader: %w", err)
	}
	tr.program = program

	tr.locViewProj = shader.GetUniform(program, "uViewProj")
	tr.locLightDir = shader.GetUniform(program, "uLightDir")
	tr.locAmbient = shader.GetUniform(program, "uAmbient")
	tr.locDiffuse = shader.GetUniform(program, "uDiffuse")
	tr.locTexture = shader.GetUniform(program, "uTexture")
	tr.locUseTexture = shader.GetUniform(program, "uUseTexture")

	return tr, nil
}

// UploadTerrain moves a CPU mesh and optional tile texture into GPU
// buffers, returning the installed scene.
func (tr *TerrainRenderer) UploadTerrain(mesh *terrain.Mesh, tile *image.RGBA) (*TerrainScene, error) {
	if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return nil, fmt.Errorf("empty terrain mesh")
	}

	s := &TerrainScene{
		indexCount: int32(len(mesh.Indices)),
		Info:       mesh.Info,
	}

	gl.GenVertexArrays(1, &s.vao)
	gl.BindVertexArray(s.vao)

	gl.GenBuffers(1, &s.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	vertexSize := int(unsafe.Sizeof(terrain.Vertex{}))
	gl.BufferData(gl.ARRAY_BUFFER, len(mesh.Vertices)*vertexSize, unsafe.Pointer(&mesh.Vertices[0]), gl.STATIC_DRAW)

	// Position (location 0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, int32(vertexSize), 0)
	gl.EnableVertexAttribArray(0)

	// Normal (location 1)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, int32(vertexSize), 3*4)
	gl.EnableVertexAttribArray(1)

	// TexCoord (location 2)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, int32(vertexSize), 6*4)
	gl.EnableVertexAttribArray(2)

	// Color (location 3)
	gl.VertexAttribPointerWithOffset(3, 4, gl.FLOAT, false, int32(vertexSize), 8*4)
	gl.EnableVertexAttribArray(3)

	gl.GenBuffers(1, &s.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, s.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(mesh.Indices)*4, unsafe.Pointer(&mesh.Indices[0]), gl.STATIC_DRAW)

	gl.BindVertexArray(0)

	if tile != nil {
		s.texture = uploadTileTexture(tile)
		s.Info.Textured = true
	} else {
		s.Info.Textured = false
	}

	return s, nil
}

// uploadTileTexture uploads a tile image clamped at the edges so the
// drape never wraps across the mesh border.
func uploadTileTexture(img *image.RGBA) uint32 {
	var texID uint32
	gl.GenTextures(1, &texID)
	gl.BindTexture(gl.TEXTURE_2D, texID)

	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA,
		int32(img.Bounds().Dx()), int32(img.Bounds().Dy()),
		0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	return texID
}

// Draw renders an installed scene with the current lighting.
func (tr *TerrainRenderer) Draw(s *TerrainScene, viewProj math.Mat4) {
	if s == nil || s.vao == 0 {
		return
	}

	gl.UseProgram(tr.program)

	gl.UniformMatrix4fv(tr.locViewProj, 1, false, &viewProj[0])
	gl.Uniform3f(tr.locLightDir, tr.LightDir[0], tr.LightDir[1], tr.LightDir[2])
	gl.Uniform3f(tr.locAmbient, tr.AmbientColor[0], tr.AmbientColor[1], tr.AmbientColor[2])
	gl.Uniform3f(tr.locDiffuse, tr.DiffuseColor[0], tr.DiffuseColor[1], tr.DiffuseColor[2])

	if s.texture != 0 {
		gl.Uniform1i(tr.locUseTexture, 1)
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, s.texture)
		gl.Uniform1i(tr.locTexture, 0)
	} else {
		gl.Uniform1i(tr.locUseTexture, 0)
	}

	gl.BindVertexArray(s.vao)
	gl.DrawElements(gl.TRIANGLES, s.indexCount, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
}

// ReleaseScene frees the scene's GPU resources. Safe to call more than
// once; every handle is zeroed after deletion.
func (tr *TerrainRenderer) ReleaseScene(s *TerrainScene) {
	if s == nil {
		return
	}
	if s.vao != 0 {
		gl.DeleteVertexArrays(1, &s.vao)
		s.vao = 0
	}
	if s.vbo != 0 {
		gl.DeleteBuffers(1, &s.vbo)
		s.vbo = 0
	}
	if s.ebo != 0 {
		gl.DeleteBuffers(1, &s.ebo)
		s.ebo = 0
	}
	if s.texture != 0 {
		gl.DeleteTextures(1, &s.texture)
		s.texture = 0
	}
	s.indexCount = 0
}

// Destroy releases the shader program.
func (tr *TerrainRenderer) Destroy() {
	if tr.program != 0 {
		gl.DeleteProgram(tr.program)
		tr.program = 0
	}
}
