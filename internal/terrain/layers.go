package terrain

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Faultbox/midgard-details/pkg/formats"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// Layers is a Source backed by a DTL detail map.
type Layers struct {
	info       Info
	prototypes []Prototype
	dtl        *formats.DTL
}

// NewLayers wraps a DTL. The DTL must carry one layer per prototype.
func NewLayers(info Info, prototypes []Prototype, dtl *formats.DTL) (*Layers, error) {
	if dtl == nil {
		return nil, fmt.Errorf("terrain %q: nil detail map", info.Name)
	}
	if len(dtl.Layers) != len(prototypes) {
		return nil, fmt.Errorf("terrain %q: detail map has %d layers, want %d", info.Name, len(dtl.Layers), len(prototypes))
	}
	if info.Width <= 0 || info.Depth <= 0 {
		return nil, fmt.Errorf("terrain %q: invalid size %vx%v", info.Name, info.Width, info.Depth)
	}

	info.DetailWidth = int(dtl.Width)
	info.DetailHeight = int(dtl.Height)
	if info.Resolution == 0 {
		info.Resolution = int(dtl.Width)
	}
	return &Layers{info: info, prototypes: prototypes, dtl: dtl}, nil
}

// Info returns the terrain metadata.
func (l *Layers) Info() Info {
	return l.info
}

// Prototypes returns the prototypes placed on the terrain.
func (l *Layers) Prototypes() []Prototype {
	return l.prototypes
}

// DTL returns the backing detail map.
func (l *Layers) DTL() *formats.DTL {
	return l.dtl
}

// DetailLayer implements Source.
func (l *Layers) DetailLayer(x, z, width, height, prototype int) [][]int {
	out := make([][]int, height)
	for row := range out {
		out[row] = make([]int, width)
	}
	if prototype < 0 || prototype >= len(l.dtl.Layers) || width <= 0 || height <= 0 {
		return out
	}

	// Clip the requested block against the grid; cells outside stay zero.
	req := r2.Box{Min: r2.Vec{X: float64(x), Y: float64(z)}, Max: r2.Vec{X: float64(x + width), Y: float64(z + height)}}
	grid := r2.Box{Max: r2.Vec{X: float64(l.dtl.Width), Y: float64(l.dtl.Height)}}
	clip := intersect(req, grid)
	if clip.Empty() {
		return out
	}

	layer := l.dtl.Layers[prototype]
	w := int(l.dtl.Width)
	for gz := int(clip.Min.Y); gz < int(clip.Max.Y); gz++ {
		row := out[gz-z]
		for gx := int(clip.Min.X); gx < int(clip.Max.X); gx++ {
			row[gx-x] = int(layer[gz*w+gx])
		}
	}
	return out
}

// SampleHeight implements Source with bilinear interpolation over the
// height grid.
func (l *Layers) SampleHeight(pos math.Vec3) float32 {
	hw, hd := int(l.dtl.HeightWidth), int(l.dtl.HeightDepth)
	if hw < 2 || hd < 2 {
		return l.dtl.HeightAt(0, 0)
	}

	local := pos.Sub(l.info.Position)
	fx := math.Clamp(local.X/l.info.Width, 0, 1) * float32(hw-1)
	fz := math.Clamp(local.Z/l.info.Depth, 0, 1) * float32(hd-1)

	cellX := min(int(fx), hw-2)
	cellZ := min(int(fz), hd-2)
	fracX := math.Clamp(fx-float32(cellX), 0, 1)
	fracZ := math.Clamp(fz-float32(cellZ), 0, 1)

	h00 := l.dtl.HeightAt(cellX, cellZ)
	h10 := l.dtl.HeightAt(cellX+1, cellZ)
	h01 := l.dtl.HeightAt(cellX, cellZ+1)
	h11 := l.dtl.HeightAt(cellX+1, cellZ+1)

	south := h00*(1-fracX) + h10*fracX
	north := h01*(1-fracX) + h11*fracX
	return south*(1-fracZ) + north*fracZ
}

func intersect(a, b r2.Box) r2.Box {
	return r2.Box{
		Min: r2.Vec{X: max(a.Min.X, b.Min.X), Y: max(a.Min.Y, b.Min.Y)},
		Max: r2.Vec{X: min(a.Max.X, b.Max.X), Y: min(a.Max.Y, b.Max.Y)},
	}
}
