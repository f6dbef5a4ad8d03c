package math

import (
	"testing"
)

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	n := Vec3{0, 3, 4}.Normalize()
	l := n.Length()
	if l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
	if (Vec3{}).Normalize() != (Vec3{}) {
		t.Error("normalizing the zero vector should return zero")
	}
}

func TestVec3Lerp(t *testing.T) {
	a := Vec3{0, 10, 20}
	b := Vec3{10, 20, 40}

	tests := []struct {
		t    float32
		want Vec3
	}{
		{0, a},
		{1, b},
		{0.5, Vec3{5, 15, 30}},
	}

	for _, tc := range tests {
		if got := a.Lerp(b, tc.t); got != tc.want {
			t.Errorf("Lerp(%v) = %v, want %v", tc.t, got, tc.want)
		}
	}
}

func TestVec4Get(t *testing.T) {
	v := Vec4{1, 2, 3, 4}
	for i, want := range []float32{1, 2, 3, 4} {
		if got := v.Get(i); got != want {
			t.Errorf("Get(%d) = %v, want %v", i, got, want)
		}
	}
	if v.XYZ() != (Vec3{1, 2, 3}) {
		t.Errorf("XYZ() = %v", v.XYZ())
	}
}

func TestRoundUp(t *testing.T) {
	tests := []struct {
		n, d, want int
	}{
		{0, 256, 0},
		{1, 256, 256},
		{255, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{1000, 256, 1024},
	}

	for _, tc := range tests {
		if got := RoundUp(tc.n, tc.d); got != tc.want {
			t.Errorf("RoundUp(%d, %d) = %d, want %d", tc.n, tc.d, got, tc.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if Clamp(-1, 0, 1) != 0 || Clamp(2, 0, 1) != 1 || Clamp(0.5, 0, 1) != 0.5 {
		t.Error("Clamp returned an out of range value")
	}
}
