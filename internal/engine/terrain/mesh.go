package terrain

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-details/internal/terrain"
	"github.com/Faultbox/midgard-details/pkg/math"
)

var (
	lowColor  = [4]float32{0.28, 0.24, 0.16, 1}
	highColor = [4]float32{0.36, 0.42, 0.22, 1}
)

// BuildMesh samples src on a grid of cells x cells quads covering the
// terrain rectangle. Vertices are shared between neighbouring quads.
func BuildMesh(src terrain.Source, cells int) *Mesh {
	cells = max(cells, 1)
	info := src.Info()
	n := cells + 1

	bounds := Bounds{
		Min: [3]float32{1e10, 1e10, 1e10},
		Max: [3]float32{-1e10, -1e10, -1e10},
	}

	heights := make([]float32, n*n)
	stepX := info.Width / float32(cells)
	stepZ := info.Depth / float32(cells)
	for z := range n {
		for x := range n {
			p := info.Position.Add(math.Vec3{X: float32(x) * stepX, Z: float32(z) * stepZ})
			heights[z*n+x] = src.SampleHeight(p)
		}
	}

	lo, hi := heights[0], heights[0]
	for _, h := range heights {
		lo, hi = min(lo, h), max(hi, h)
	}

	m := &Mesh{Vertices: make([]Vertex, 0, n*n), Indices: make([]uint32, 0, cells*cells*6)}
	at := func(x, z int) float32 {
		return heights[min(max(z, 0), cells)*n+min(max(x, 0), cells)]
	}
	for z := range n {
		for x := range n {
			pos := [3]float32{
				info.Position.X + float32(x)*stepX,
				info.Position.Y + at(x, z),
				info.Position.Z + float32(z)*stepZ,
			}
			updateBounds(&bounds, pos)

			// Central differences over the neighbouring samples.
			dx := (at(x+1, z) - at(x-1, z)) / (float32(min(x+1, cells)-max(x-1, 0)) * stepX)
			dz := (at(x, z+1) - at(x, z-1)) / (float32(min(z+1, cells)-max(z-1, 0)) * stepZ)
			normal := normalize([3]float32{-dx, 1, -dz})

			t := float32(0)
			if hi > lo {
				t = (pos[1] - lo) / (hi - lo)
			}
			m.Vertices = append(m.Vertices, Vertex{Position: pos, Normal: normal, Color: lerpColor(lowColor, highColor, t)})
		}
	}

	for z := range cells {
		for x := range cells {
			i := uint32(z*n + x)
			w := uint32(n)
			m.Indices = append(m.Indices,
				i, i+w, i+1,
				i+1, i+w, i+w+1,
			)
		}
	}

	m.Bounds = bounds
	return m
}

func lerpColor(a, b [4]float32, t float32) [4]float32 {
	var out [4]float32
	for i := range out {
		out[i] = a[i]*(1-t) + b[i]*t
	}
	return out
}

func updateBounds(b *Bounds, p [3]float32) {
	for i := range 3 {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
}

func normalize(v [3]float32) [3]float32 {
	l := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l < 0.0001 {
		return [3]float32{0, 1, 0}
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}
