package noise

import "testing"

func TestStream_Deterministic(t *testing.T) {
	a := NewStream(42)
	b := NewStream(7)
	b.Seed(42)

	for i := 0; i < 16; i++ {
		va, vb := a.Value(), b.Value()
		if va != vb {
			t.Fatalf("value %d: %v != %v", i, va, vb)
		}
		if va < 0 || va >= 1 {
			t.Fatalf("value %d out of range: %v", i, va)
		}
	}
}

func TestStream_ReseedRestarts(t *testing.T) {
	s := NewStream(3)
	first := s.Value()
	s.Value()
	s.Seed(3)
	if got := s.Value(); got != first {
		t.Errorf("reseed: got %v, want %v", got, first)
	}

	s.Seed(4)
	if got := s.Value(); got == first {
		t.Errorf("different seeds produced the same first value %v", got)
	}
}

func TestPerlin2_Range(t *testing.T) {
	for y := float32(-8); y < 8; y += 0.37 {
		for x := float32(-8); x < 8; x += 0.29 {
			n := Perlin2(x, y)
			if n < 0 || n > 1 {
				t.Fatalf("Perlin2(%v, %v) = %v, out of [0,1]", x, y, n)
			}
		}
	}
}

func TestPerlin2_LatticeIsHalf(t *testing.T) {
	tests := [][2]float32{{0, 0}, {1, 2}, {-3, 5}, {100, 7}}
	for _, p := range tests {
		if got := Perlin2(p[0], p[1]); got != 0.5 {
			t.Errorf("Perlin2(%v, %v) = %v, want 0.5", p[0], p[1], got)
		}
	}
}

func TestPerlin2_Deterministic(t *testing.T) {
	if Perlin2(0.3, 0.7) != Perlin2(0.3, 0.7) {
		t.Error("Perlin2 is not deterministic")
	}
}
