// Package foliage builds the procedural prototype meshes drawn for detail
// instances. Every LOD of a prototype lives in one shared vertex and index
// buffer and is addressed by a SubMesh range.
package foliage

import (
	"fmt"

	"github.com/chewxy/math32"
)

// MaxLODs is the number of LOD levels a prototype mesh may carry.
const MaxLODs = 4

// Mesh kinds understood by Build.
const (
	KindBlades = "blades"
	KindCross  = "cross"
)

// Vertex is a foliage mesh vertex in unit prototype space: x/z in
// [-0.5, 0.5], y in [0, 1].
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

// SubMesh addresses one LOD inside the shared buffers.
type SubMesh struct {
	IndexCount uint32
	IndexStart uint32
	BaseVertex int32
}

// Mesh holds all LODs of a prototype ready for GPU upload.
type Mesh struct {
	Kind      string
	Vertices  []Vertex
	Indices   []uint32
	SubMeshes []SubMesh
}

// LODCount returns the number of LOD sub-meshes.
func (m *Mesh) LODCount() int {
	return len(m.SubMeshes)
}

// Build creates a mesh of the given kind with lods levels of detail, LOD 0
// being the most detailed. lods is clamped to [1, MaxLODs].
func Build(kind string, lods int) (*Mesh, error) {
	if lods < 1 {
		lods = 1
	}
	if lods > MaxLODs {
		lods = MaxLODs
	}

	m := &Mesh{Kind: kind}
	for lod := 0; lod < lods; lod++ {
		start := len(m.Indices)
		base := len(m.Vertices)

		var verts []Vertex
		var idx []uint32
		switch kind {
		case KindBlades:
			verts, idx = blades(lod)
		case KindCross:
			verts, idx = crossQuads(lod)
		default:
			return nil, fmt.Errorf("unknown foliage mesh kind %q", kind)
		}

		m.Vertices = append(m.Vertices, verts...)
		m.Indices = append(m.Indices, idx...)
		m.SubMeshes = append(m.SubMeshes, SubMesh{
			IndexCount: uint32(len(idx)),
			IndexStart: uint32(start),
			BaseVertex: int32(base),
		})
	}
	return m, nil
}

// SubMeshes returns only the LOD ranges of a mesh kind, for callers that
// need the draw argument layout without the geometry.
func SubMeshes(kind string, lods int) ([]SubMesh, error) {
	m, err := Build(kind, lods)
	if err != nil {
		return nil, err
	}
	return m.SubMeshes, nil
}

// blades builds a tuft of tapered grass blades. Higher LODs use fewer blades
// with fewer segments.
func blades(lod int) ([]Vertex, []uint32) {
	count := max(8>>lod, 1)
	segs := max(3-lod, 1)

	var verts []Vertex
	var idx []uint32
	for b := 0; b < count; b++ {
		angle := float32(b) * 2.399963 // golden angle
		sin, cos := math32.Sincos(angle)
		radius := 0.35 * float32(b) / float32(count)
		ox, oz := cos*radius, sin*radius
		// blade faces perpendicular to its offset direction
		dx, dz := -sin*0.04, cos*0.04
		normal := [3]float32{cos, 0, sin}

		first := uint32(len(verts))
		for s := 0; s < segs; s++ {
			t := float32(s) / float32(segs)
			taper := 1 - t
			y := t
			verts = append(verts,
				Vertex{Position: [3]float32{ox - dx*taper, y, oz - dz*taper}, Normal: normal, UV: [2]float32{0, t}},
				Vertex{Position: [3]float32{ox + dx*taper, y, oz + dz*taper}, Normal: normal, UV: [2]float32{1, t}},
			)
		}
		tip := uint32(len(verts))
		verts = append(verts, Vertex{Position: [3]float32{ox, 1, oz}, Normal: normal, UV: [2]float32{0.5, 1}})

		for s := 0; s < segs-1; s++ {
			i := first + uint32(s*2)
			idx = append(idx, i, i+1, i+2, i+1, i+3, i+2)
		}
		last := first + uint32((segs-1)*2)
		idx = append(idx, last, last+1, tip)
	}
	return verts, idx
}

// crossQuads builds upright quads crossing at the origin: three at LOD 0,
// two at LOD 1 and a single quad below that.
func crossQuads(lod int) ([]Vertex, []uint32) {
	quads := max(3-lod, 1)

	var verts []Vertex
	var idx []uint32
	for q := 0; q < quads; q++ {
		angle := float32(q) * math32.Pi / float32(quads)
		sin, cos := math32.Sincos(angle)
		hx, hz := cos*0.5, sin*0.5
		normal := [3]float32{-sin, 0, cos}

		i := uint32(len(verts))
		verts = append(verts,
			Vertex{Position: [3]float32{-hx, 0, -hz}, Normal: normal, UV: [2]float32{0, 0}},
			Vertex{Position: [3]float32{hx, 0, hz}, Normal: normal, UV: [2]float32{1, 0}},
			Vertex{Position: [3]float32{-hx, 1, -hz}, Normal: normal, UV: [2]float32{0, 1}},
			Vertex{Position: [3]float32{hx, 1, hz}, Normal: normal, UV: [2]float32{1, 1}},
		)
		idx = append(idx, i, i+1, i+2, i+1, i+3, i+2)
	}
	return verts, idx
}
