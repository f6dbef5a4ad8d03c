package glcompute

import (
	"strings"
	"testing"

	"github.com/Faultbox/midgard-details/internal/gpu"
	"github.com/Faultbox/midgard-details/internal/hiz"
	"github.com/Faultbox/midgard-details/pkg/math"
)

func TestKernelSources(t *testing.T) {
	for _, k := range gpu.Kernels() {
		src, ok := KernelSource(k)
		if !ok {
			t.Fatalf("no source for %s", k)
		}
		if !strings.HasPrefix(src, "#version 430 core\n") {
			t.Errorf("%s: missing version line", k)
		}
		if !strings.Contains(src, "void main()") {
			t.Errorf("%s: no entry point", k)
		}
		for _, name := range required[k] {
			if !strings.Contains(src, name+"[]") {
				t.Errorf("%s: binding %s not declared", k, name)
			}
		}
	}
	if _, ok := KernelSource("Nope"); ok {
		t.Error("source for unknown kernel")
	}
}

func TestBindingPoints(t *testing.T) {
	seen := map[uint32]string{}
	for name, point := range bindingPoints {
		if other, ok := seen[point]; ok {
			t.Errorf("%s and %s share binding %d", name, other, point)
		}
		seen[point] = name
	}
	if got, want := maxBindingPoint(), int32(len(bindingPoints)-1); got != want {
		t.Errorf("maxBindingPoint() = %d, want %d", got, want)
	}

	vs := drawVertexSource()
	for _, name := range []string{gpu.BindPositions, gpu.BindTransforms, gpu.BindColors, gpu.BindSHC, gpu.BindOcclusion} {
		if !strings.Contains(vs, name+"[]") {
			t.Errorf("draw program does not declare %s", name)
		}
	}
}

func TestHiZLevels(t *testing.T) {
	pyr, err := hiz.Build(make([]float32, 16*16), 16, 16, false)
	if err != nil {
		t.Fatal(err)
	}
	levels, n := hiZLevels(&gpu.Uniforms{HiZ: pyr.Levels})
	if n != len(pyr.Levels) {
		t.Fatalf("n = %d, want %d", n, len(pyr.Levels))
	}
	want := []int32{16, 16, 0, 0, 8, 8, 256, 0, 4, 4, 320, 0}
	for i, w := range want {
		if levels[i] != w {
			t.Errorf("levels[%d] = %d, want %d", i, levels[i], w)
		}
	}

	many := make([]hiz.Level, MaxHiZLevels+3)
	if _, n := hiZLevels(&gpu.Uniforms{HiZ: many}); n != MaxHiZLevels {
		t.Errorf("n = %d, want %d", n, MaxHiZLevels)
	}
}

func TestFrustumPlanes(t *testing.T) {
	vp := math.Perspective(1.2, 1, 0.1, 100).Mul(math.LookAt(math.Vec3{}, math.Vec3{Z: -1}, math.Vec3{Y: 1}))
	planes := frustumPlanes(vp)
	f := math.ExtractFrustum(vp)
	for i := range f {
		inside := math.Vec3{Z: -10}
		got := planes[i*4]*inside.X + planes[i*4+1]*inside.Y + planes[i*4+2]*inside.Z + planes[i*4+3]
		if d := f[i].Distance(inside); got-d > 1e-5 || d-got > 1e-5 {
			t.Errorf("plane %d distance %v, want %v", i, got, d)
		}
		if got <= 0 {
			t.Errorf("point ahead of the camera outside plane %d", i)
		}
	}
}
