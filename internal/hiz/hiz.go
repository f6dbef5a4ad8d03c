// Package hiz builds the hierarchical depth pyramid used for occlusion
// culling. Level 0 is the source depth buffer; every further level reduces
// 2x2 texels of the level below into one until both sides are at most
// MinLevelSize texels.
package hiz

import "errors"

// MinLevelSize is the side length at which reduction stops.
const MinLevelSize = 4

// ErrSize is returned when the depth buffer does not match its dimensions.
var ErrSize = errors.New("hiz: depth buffer size mismatch")

// Level describes one mip of the pyramid inside the packed Data slice.
type Level struct {
	Width  int
	Height int
	Offset int
}

// Pyramid holds every level packed back to back.
type Pyramid struct {
	Levels []Level
	Data   []float32

	// ReversedZ selects min reduction (near = 1) instead of max (near = 0).
	ReversedZ bool
}

// Build reduces depth (row-major, width*height texels in [0,1]) into a
// pyramid. The farthest depth of each 2x2 footprint survives.
func Build(depth []float32, width, height int, reversedZ bool) (*Pyramid, error) {
	if width <= 0 || height <= 0 || len(depth) != width*height {
		return nil, ErrSize
	}

	p := &Pyramid{ReversedZ: reversedZ}
	p.Levels = append(p.Levels, Level{Width: width, Height: height})
	p.Data = append(p.Data, depth...)

	w, h := width, height
	for w > MinLevelSize || h > MinLevelSize {
		src := p.Levels[len(p.Levels)-1]
		nw, nh := (w+1)/2, (h+1)/2
		dst := Level{Width: nw, Height: nh, Offset: len(p.Data)}
		p.Data = append(p.Data, make([]float32, nw*nh)...)

		for y := 0; y < nh; y++ {
			for x := 0; x < nw; x++ {
				v := p.at(src, 2*x, 2*y)
				for _, o := range [3][2]int{{1, 0}, {0, 1}, {1, 1}} {
					sx, sy := 2*x+o[0], 2*y+o[1]
					if sx >= w || sy >= h {
						continue
					}
					v = p.farther(v, p.at(src, sx, sy))
				}
				p.Data[dst.Offset+y*nw+x] = v
			}
		}

		p.Levels = append(p.Levels, dst)
		w, h = nw, nh
	}
	return p, nil
}

// At returns the texel (x, y) of a level. Coordinates are clamped.
func (p *Pyramid) At(level, x, y int) float32 {
	l := p.Levels[level]
	x = min(max(x, 0), l.Width-1)
	y = min(max(y, 0), l.Height-1)
	return p.at(l, x, y)
}

// Top returns the coarsest level.
func (p *Pyramid) Top() Level {
	return p.Levels[len(p.Levels)-1]
}

func (p *Pyramid) at(l Level, x, y int) float32 {
	return p.Data[l.Offset+y*l.Width+x]
}

func (p *Pyramid) farther(a, b float32) float32 {
	if p.ReversedZ {
		return min(a, b)
	}
	return max(a, b)
}
