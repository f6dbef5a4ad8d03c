package terrain

import (
	"path/filepath"
	"testing"

	"github.com/Faultbox/midgard-details/pkg/formats"
	"github.com/Faultbox/midgard-details/pkg/math"
)

func testLayers(t *testing.T) *Layers {
	t.Helper()

	dtl := formats.NewDTL(4, 4, 3, 3, 1)
	for z := 0; z < 4; z++ {
		for x := 0; x < 4; x++ {
			dtl.SetDensity(0, x, z, uint8(z*4+x))
		}
	}
	// heights rise along X: 0, 10, 20 on every row
	for z := 0; z < 3; z++ {
		for x := 0; x < 3; x++ {
			dtl.Heights[z*3+x] = float32(x) * 10
		}
	}

	info := Info{Name: "test", Width: 8, Depth: 8, Position: math.Vec3{X: -4, Z: -4}}
	l, err := NewLayers(info, []Prototype{{Name: "grass"}}, dtl)
	if err != nil {
		t.Fatalf("NewLayers failed: %v", err)
	}
	return l
}

func TestNewLayers_FillsGridInfo(t *testing.T) {
	l := testLayers(t)
	info := l.Info()
	if info.Resolution != 4 || info.DetailWidth != 4 || info.DetailHeight != 4 {
		t.Errorf("unexpected grid info: %+v", info)
	}
}

func TestNewLayers_LayerMismatch(t *testing.T) {
	dtl := formats.NewDTL(2, 2, 2, 2, 2)
	if _, err := NewLayers(Info{Width: 1, Depth: 1}, []Prototype{{Name: "one"}}, dtl); err == nil {
		t.Error("expected error for layer/prototype mismatch")
	}
}

func TestDetailLayer(t *testing.T) {
	l := testLayers(t)

	tests := []struct {
		name       string
		x, z, w, h int
		want       [][]int
	}{
		{"inside", 1, 1, 2, 2, [][]int{{5, 6}, {9, 10}}},
		{"clipped low", -1, -1, 2, 2, [][]int{{0, 0}, {0, 0}}},
		{"clipped high", 3, 3, 2, 2, [][]int{{15, 0}, {0, 0}}},
		{"outside", 10, 10, 1, 1, [][]int{{0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.DetailLayer(tt.x, tt.z, tt.w, tt.h, 0)
			for z := range tt.want {
				for x := range tt.want[z] {
					if got[z][x] != tt.want[z][x] {
						t.Errorf("cell [%d][%d] = %d, want %d", z, x, got[z][x], tt.want[z][x])
					}
				}
			}
		})
	}

	if got := l.DetailLayer(0, 0, 1, 1, 0)[0][0]; got != 0 {
		t.Errorf("cell (0,0) = %d, want 0", got)
	}
	if got := l.DetailLayer(0, 0, 2, 2, 7); got[1][1] != 0 {
		t.Errorf("unknown prototype returned %v", got)
	}
}

func TestSampleHeight(t *testing.T) {
	l := testLayers(t)

	tests := []struct {
		x, z float32
		want float32
	}{
		{-4, -4, 0},
		{0, 0, 10},
		{2, 3, 15},
		{4, 4, 20},
		{100, 0, 20}, // clamped to the far edge
	}
	for _, tt := range tests {
		got := l.SampleHeight(math.Vec3{X: tt.x, Z: tt.z})
		if d := got - tt.want; d > 1e-4 || d < -1e-4 {
			t.Errorf("SampleHeight(%v, %v) = %v, want %v", tt.x, tt.z, got, tt.want)
		}
	}
}

func TestOpen_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultGenerateOptions()
	opts.Resolution = 64
	opts.HeightGrid = 9
	dtl := Generate(opts)
	if err := formats.WriteDTLFile(filepath.Join(dir, "meadow.dtl"), dtl); err != nil {
		t.Fatalf("WriteDTLFile failed: %v", err)
	}

	desc := DefaultDescription("meadow", "meadow.dtl", 256)
	descPath := filepath.Join(dir, "meadow.yaml")
	if err := SaveDescription(descPath, desc); err != nil {
		t.Fatalf("SaveDescription failed: %v", err)
	}

	l, err := Open(descPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	info := l.Info()
	if info.Name != "meadow" || info.Width != 256 || info.Resolution != 64 {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Position != (math.Vec3{X: -128, Z: -128}) {
		t.Errorf("unexpected position: %+v", info.Position)
	}

	protos := l.Prototypes()
	if len(protos) != 2 {
		t.Fatalf("expected 2 prototypes, got %d", len(protos))
	}
	if protos[0].LODCount() != 3 || protos[1].LODCount() != 2 {
		t.Errorf("unexpected LOD counts: %d, %d", protos[0].LODCount(), protos[1].LODCount())
	}
	if protos[1].NoiseSeed != 2000 {
		t.Errorf("expected noise seed 2000, got %d", protos[1].NoiseSeed)
	}
}

func TestOpen_MissingDetailMap(t *testing.T) {
	dir := t.TempDir()
	descPath := filepath.Join(dir, "empty.yaml")
	if err := SaveDescription(descPath, DefaultDescription("empty", "missing.dtl", 64)); err != nil {
		t.Fatalf("SaveDescription failed: %v", err)
	}
	if _, err := Open(descPath); err == nil {
		t.Error("expected error for missing detail map")
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	opts := DefaultGenerateOptions()
	opts.Resolution = 32
	opts.HeightGrid = 5

	a := Generate(opts)
	b := Generate(opts)
	if a.TotalInstances() != b.TotalInstances() {
		t.Fatalf("instance totals differ: %d vs %d", a.TotalInstances(), b.TotalInstances())
	}
	for i := range a.Heights {
		if a.Heights[i] != b.Heights[i] {
			t.Fatalf("height %d differs", i)
		}
	}
	for _, h := range a.Heights {
		if h < 0 || h > opts.MaxHeight {
			t.Fatalf("height %v outside [0, %v]", h, opts.MaxHeight)
		}
	}
	if len(a.Layers) != 2 {
		t.Errorf("expected 2 layers, got %d", len(a.Layers))
	}
}
