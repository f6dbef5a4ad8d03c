package terrain

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-details/internal/terrain"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// ramp rises one unit per world unit along X.
type ramp struct{}

func (ramp) Info() terrain.Info {
	return terrain.Info{Name: "ramp", Width: 8, Depth: 4, Position: math.Vec3{X: -4, Z: 10}}
}
func (ramp) Prototypes() []terrain.Prototype       { return nil }
func (ramp) DetailLayer(_, _, _, h, _ int) [][]int { return make([][]int, h) }
func (ramp) SampleHeight(p math.Vec3) float32      { return p.X + 4 }

func TestBuildMesh(t *testing.T) {
	m := BuildMesh(ramp{}, 4)

	if len(m.Vertices) != 25 {
		t.Fatalf("vertices = %d, want 25", len(m.Vertices))
	}
	if len(m.Indices) != 4*4*6 {
		t.Fatalf("indices = %d, want %d", len(m.Indices), 4*4*6)
	}
	for _, i := range m.Indices {
		if int(i) >= len(m.Vertices) {
			t.Fatalf("index %d out of range", i)
		}
	}

	wantMin := [3]float32{-4, 0, 10}
	wantMax := [3]float32{4, 8, 14}
	if m.Bounds.Min != wantMin || m.Bounds.Max != wantMax {
		t.Errorf("bounds = %v, want %v..%v", m.Bounds, wantMin, wantMax)
	}

	// A 45 degree slope rising along X tilts every normal towards -X.
	s := math32.Sqrt(0.5)
	for i, v := range m.Vertices {
		if math32.Abs(v.Normal[0]+s) > 1e-4 || math32.Abs(v.Normal[1]-s) > 1e-4 || math32.Abs(v.Normal[2]) > 1e-4 {
			t.Fatalf("vertex %d normal = %v", i, v.Normal)
		}
	}

	if m.Vertices[0].Color != lowColor || m.Vertices[4].Color != highColor {
		t.Errorf("height colors not applied: %v %v", m.Vertices[0].Color, m.Vertices[4].Color)
	}
}

func TestBuildMeshWinding(t *testing.T) {
	m := BuildMesh(ramp{}, 1)
	p := func(i uint32) math.Vec3 {
		v := m.Vertices[i].Position
		return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
	}
	for tri := 0; tri < len(m.Indices); tri += 3 {
		a, b, c := p(m.Indices[tri]), p(m.Indices[tri+1]), p(m.Indices[tri+2])
		if n := b.Sub(a).Cross(c.Sub(a)); n.Y <= 0 {
			t.Errorf("triangle %d faces down: %+v", tri/3, n)
		}
	}
}

func TestBuildMeshClampsCells(t *testing.T) {
	m := BuildMesh(ramp{}, 0)
	if len(m.Vertices) != 4 || len(m.Indices) != 6 {
		t.Errorf("got %d vertices, %d indices", len(m.Vertices), len(m.Indices))
	}
	if c := m.Bounds.Center(); c != [3]float32{0, 4, 12} {
		t.Errorf("center = %v", c)
	}
}
