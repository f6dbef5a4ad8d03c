package details

import (
	"github.com/Faultbox/midgard-details/internal/foliage"
	"github.com/Faultbox/midgard-details/internal/terrain"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// gridSource is an in-memory terrain with a sparse, regular detail pattern.
type gridSource struct {
	info   terrain.Info
	protos []terrain.Prototype
	counts func(x, z, proto int) int
	gate   chan struct{} // when set, DetailLayer waits for it to close
}

func newGridSource(name string, width float32) *gridSource {
	return &gridSource{
		info: terrain.Info{
			Name:         name,
			Resolution:   1024,
			DetailWidth:  1024,
			DetailHeight: 1024,
			Width:        width,
			Depth:        width,
			Position:     math.Vec3{X: -width / 2, Z: -width / 2},
		},
		protos: []terrain.Prototype{
			{Name: "grass", Mesh: foliage.KindBlades, MinWidth: 0.5, MaxWidth: 1, MinHeight: 0.5, MaxHeight: 2, NoiseSeed: 11,
				SubMeshes: make([]foliage.SubMesh, 3)},
			{Name: "flower", Mesh: foliage.KindCross, MinWidth: 1, MaxWidth: 1, MinHeight: 1, MaxHeight: 1, NoiseSeed: 22,
				SubMeshes: make([]foliage.SubMesh, 1)},
		},
		counts: func(x, z, proto int) int {
			switch {
			case proto == 0 && x%16 == 0 && z%16 == 0:
				return 1
			case proto == 1 && x%32 == 5 && z%32 == 7:
				return 2
			}
			return 0
		},
	}
}

func (s *gridSource) Info() terrain.Info               { return s.info }
func (s *gridSource) Prototypes() []terrain.Prototype { return s.protos }

func (s *gridSource) DetailLayer(x, z, width, height, proto int) [][]int {
	if s.gate != nil {
		<-s.gate
	}
	out := make([][]int, height)
	for row := range out {
		out[row] = make([]int, width)
		for col := range out[row] {
			gx, gz := x+col, z+row
			if gx < 0 || gz < 0 || gx >= s.info.DetailWidth || gz >= s.info.DetailHeight {
				continue
			}
			out[row][col] = s.counts(gx, gz, proto)
		}
	}
	return out
}

// SampleHeight is a gentle slope along X.
func (s *gridSource) SampleHeight(pos math.Vec3) float32 {
	return (pos.X - s.info.Position.X) * 0.1
}

// expectedInstances is the total the counts pattern places on the grid.
func (s *gridSource) expectedInstances() int {
	total := 0
	for p := range s.protos {
		for z := 0; z < s.info.DetailHeight; z++ {
			for x := 0; x < s.info.DetailWidth; x++ {
				total += s.counts(x, z, p)
			}
		}
	}
	return total
}
