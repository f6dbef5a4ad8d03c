package hiz

import (
	"errors"
	"testing"
)

func TestBuildLevels(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		levels []Level
	}{
		{"square", 16, 16, []Level{{16, 16, 0}, {8, 8, 256}, {4, 4, 320}}},
		{"odd", 9, 5, []Level{{9, 5, 0}, {5, 3, 45}, {3, 2, 60}}},
		{"small", 4, 3, []Level{{4, 3, 0}}},
		{"wide", 32, 2, []Level{{32, 2, 0}, {16, 1, 64}, {8, 1, 80}, {4, 1, 88}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(make([]float32, tt.w*tt.h), tt.w, tt.h, false)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if len(p.Levels) != len(tt.levels) {
				t.Fatalf("levels = %v, want %v", p.Levels, tt.levels)
			}
			for i, l := range tt.levels {
				if p.Levels[i] != l {
					t.Errorf("level %d = %+v, want %+v", i, p.Levels[i], l)
				}
			}
			top := p.Top()
			if top.Width > MinLevelSize || top.Height > MinLevelSize {
				t.Errorf("top level %dx%d larger than %d", top.Width, top.Height, MinLevelSize)
			}
		})
	}
}

func TestBuildReduction(t *testing.T) {
	depth := make([]float32, 8*8)
	for i := range depth {
		depth[i] = 0.5
	}
	depth[3*8+5] = 0.9 // x=5 y=3
	depth[6*8+1] = 0.1 // x=1 y=6

	t.Run("max", func(t *testing.T) {
		p, err := Build(depth, 8, 8, false)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if got := p.At(1, 2, 1); got != 0.9 {
			t.Errorf("At(1,2,1) = %v, want 0.9", got)
		}
		if got := p.At(1, 0, 3); got != 0.5 {
			t.Errorf("At(1,0,3) = %v, want 0.5", got)
		}
	})

	t.Run("reversed", func(t *testing.T) {
		p, err := Build(depth, 8, 8, true)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if got := p.At(1, 0, 3); got != 0.1 {
			t.Errorf("At(1,0,3) = %v, want 0.1", got)
		}
		if got := p.At(1, 2, 1); got != 0.5 {
			t.Errorf("At(1,2,1) = %v, want 0.5", got)
		}
	})
}

func TestAtClamps(t *testing.T) {
	p, err := Build([]float32{0.1, 0.2, 0.3, 0.4}, 2, 2, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := p.At(0, -3, 5); got != 0.3 {
		t.Errorf("At(0,-3,5) = %v, want 0.3", got)
	}
}

func TestBuildSizeMismatch(t *testing.T) {
	if _, err := Build(make([]float32, 3), 2, 2, false); !errors.Is(err, ErrSize) {
		t.Errorf("err = %v, want ErrSize", err)
	}
	if _, err := Build(nil, 0, 0, false); !errors.Is(err, ErrSize) {
		t.Errorf("err = %v, want ErrSize", err)
	}
}
