// Package terrain builds renderable meshes from elevation grids.
package terrain

// Vertex represents a terrain mesh vertex with all attributes.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
	Color    [4]float32
}

// Info carries scene metadata derived during the build, used by the
// camera for framing and by the renderer for lighting scale.
type Info struct {
	MinElevation float64 // meters, from the source grid
	MaxElevation float64
	MaxHeight    float32 // world units after vertical exaggeration
	WorldSize    float32 // side length of the square mesh in world units
	Textured     bool
}

// Mesh holds the complete terrain mesh data ready for GPU upload.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
	Info     Info
}
