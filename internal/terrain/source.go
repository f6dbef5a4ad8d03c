// Package terrain provides the terrain data sources that detail instances are
// scattered over: detail density layers, height sampling and the prototype
// list of a terrain tile.
package terrain

import (
	"github.com/Faultbox/midgard-details/internal/foliage"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// Prototype is a vegetation archetype placed on a terrain.
type Prototype struct {
	Name      string
	Mesh      string
	MinWidth  float32
	MaxWidth  float32
	MinHeight float32
	MaxHeight float32
	NoiseSeed int
	SubMeshes []foliage.SubMesh
}

// LODCount returns the number of LOD sub-meshes of the prototype mesh.
func (p Prototype) LODCount() int {
	return len(p.SubMeshes)
}

// Info is the static metadata of a terrain tile.
type Info struct {
	Name         string
	Resolution   int     // detail resolution (cells per side)
	DetailWidth  int     // detail grid width in cells
	DetailHeight int     // detail grid depth in cells
	Width        float32 // world size along X
	Depth        float32 // world size along Z
	Position     math.Vec3
}

// Source is the terrain interface consumed by instance synthesis.
type Source interface {
	Info() Info
	Prototypes() []Prototype

	// DetailLayer returns the instance counts of a width x height block of
	// the detail grid starting at (x, z), indexed [z][x]. Cells outside the
	// grid read as zero.
	DetailLayer(x, z, width, height, prototype int) [][]int

	// SampleHeight returns the terrain height under pos, relative to the
	// terrain position.
	SampleHeight(pos math.Vec3) float32
}
