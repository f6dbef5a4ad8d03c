// Package debug provides debug visualization utilities.
package debug

import (
	"github.com/Faultbox/midgard-details/internal/details"
	"github.com/Faultbox/midgard-details/internal/quadtree"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// BoxLineVertexCount is the number of line vertices of one box (12 edges x 2).
const BoxLineVertexCount = 24

// BoxLines returns the 12 edges of an axis-aligned box as line vertices,
// three floats per vertex.
func BoxLines(lo, hi math.Vec3) []float32 {
	return appendBox(make([]float32, 0, BoxLineVertexCount*3), lo, hi)
}

func appendBox(dst []float32, lo, hi math.Vec3) []float32 {
	return append(dst,
		// Bottom face
		lo.X, lo.Y, lo.Z, hi.X, lo.Y, lo.Z,
		hi.X, lo.Y, lo.Z, hi.X, lo.Y, hi.Z,
		hi.X, lo.Y, hi.Z, lo.X, lo.Y, hi.Z,
		lo.X, lo.Y, hi.Z, lo.X, lo.Y, lo.Z,
		// Top face
		lo.X, hi.Y, lo.Z, hi.X, hi.Y, lo.Z,
		hi.X, hi.Y, lo.Z, hi.X, hi.Y, hi.Z,
		hi.X, hi.Y, hi.Z, lo.X, hi.Y, hi.Z,
		lo.X, hi.Y, hi.Z, lo.X, hi.Y, lo.Z,
		// Vertical edges
		lo.X, lo.Y, lo.Z, lo.X, hi.Y, lo.Z,
		hi.X, lo.Y, lo.Z, hi.X, hi.Y, lo.Z,
		hi.X, lo.Y, hi.Z, hi.X, hi.Y, hi.Z,
		lo.X, lo.Y, hi.Z, lo.X, hi.Y, hi.Z,
	)
}

// NodeLines returns world-space boxes around the quadtree nodes of an asset
// at the given depth that own at least one instance. Boxes span height
// units above the terrain base.
func NodeLines(a *details.Asset, depth int, height float32) []float32 {
	d := a.Data
	width := min(d.TerrainWidth, d.TerrainHeight)
	if width <= 0 {
		return nil
	}
	scale := width / quadtree.MaxSize
	size := quadtree.NodeSize(depth)

	var out []float32
	for _, n := range a.Tree.Nodes() {
		if n.Size != size || n.DataCount == 0 {
			continue
		}
		center := d.Position.Add(n.Center.Scale(scale))
		half := n.Size * scale / 2
		lo := math.Vec3{X: center.X - half, Y: d.Position.Y, Z: center.Z - half}
		hi := math.Vec3{X: center.X + half, Y: d.Position.Y + height, Z: center.Z + half}
		out = appendBox(out, lo, hi)
	}
	return out
}
