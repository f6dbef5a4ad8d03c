// Package lightprobe samples ambient lighting for detail instances as
// order-2 spherical harmonics and packs the coefficients into the seven
// vectors the foliage shader evaluates.
package lightprobe

import (
	"sync"

	"github.com/Faultbox/midgard-details/internal/terrain"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// SH holds L2 coefficients per colour channel: [channel][coefficient].
// Coefficient order is L00, L1-1 (y), L10 (z), L11 (x), L2-2, L2-1, L20,
// L21, L22.
type SH [3][9]float32

// Packed is an SH ready for upload.
type Packed struct {
	Ar, Ag, Ab math.Vec4
	Br, Bg, Bb math.Vec4
	C          math.Vec4
}

// Pack rearranges the coefficients into the layout the foliage shader
// evaluates: the linear terms and constant in A, four quadratic terms in B
// and the last quadratic term of every channel in C.
func Pack(sh SH) Packed {
	var p Packed
	a := [3]*math.Vec4{&p.Ar, &p.Ag, &p.Ab}
	b := [3]*math.Vec4{&p.Br, &p.Bg, &p.Bb}
	for c := 0; c < 3; c++ {
		*a[c] = math.Vec4{X: sh[c][3], Y: sh[c][1], Z: sh[c][2], W: sh[c][0] - sh[c][5]}
		*b[c] = math.Vec4{X: sh[c][4], Y: sh[c][6], Z: sh[c][5] * 3, W: sh[c][7]}
	}
	p.C = math.Vec4{X: sh[0][8], Y: sh[1][8], Z: sh[2][8], W: 1}
	return p
}

// Sampler fills sh and occlusion for every position. The slices have the
// same length as positions.
type Sampler interface {
	Sample(positions []math.Vec3, sh []SH, occlusion []math.Vec4)
}

// Hemisphere lights instances with a sky colour from above and a ground
// colour from below. When a terrain is attached, instances in hollows are
// darkened by the height difference to their surroundings.
type Hemisphere struct {
	mu      sync.RWMutex
	sky     math.Vec3
	ground  math.Vec3
	terrain terrain.Source

	// Radius is the distance of the four neighbour height samples used for
	// occlusion.
	Radius float32
}

// NewHemisphere returns a sampler with the given colours.
func NewHemisphere(sky, ground math.Vec3) *Hemisphere {
	return &Hemisphere{sky: sky, ground: ground, Radius: 2}
}

// SetColors changes the lighting. Already uploaded probes keep the old
// colours until they are sampled again.
func (h *Hemisphere) SetColors(sky, ground math.Vec3) {
	h.mu.Lock()
	h.sky, h.ground = sky, ground
	h.mu.Unlock()
}

// Attach enables terrain occlusion.
func (h *Hemisphere) Attach(src terrain.Source) {
	h.mu.Lock()
	h.terrain = src
	h.mu.Unlock()
}

func (h *Hemisphere) Sample(positions []math.Vec3, sh []SH, occlusion []math.Vec4) {
	h.mu.RLock()
	sky, ground, src := h.sky, h.ground, h.terrain
	h.mu.RUnlock()

	avg := sky.Add(ground).Scale(0.5)
	half := sky.Sub(ground).Scale(0.5)
	col := [3][2]float32{{avg.X, half.X}, {avg.Y, half.Y}, {avg.Z, half.Z}}

	for i, pos := range positions {
		var s SH
		for c := 0; c < 3; c++ {
			s[c][0] = col[c][0]
			s[c][1] = col[c][1]
		}
		sh[i] = s

		ao := float32(1)
		if src != nil {
			ao = h.occlusion(src, pos)
		}
		occlusion[i] = math.Vec4{X: ao, Y: ao, Z: ao, W: ao}
	}
}

// occlusion compares the height at pos with the mean of four neighbours.
// A point one radius below its surroundings is fully occluded.
func (h *Hemisphere) occlusion(src terrain.Source, pos math.Vec3) float32 {
	r := h.Radius
	if r <= 0 {
		return 1
	}
	here := src.SampleHeight(pos)
	var around float32
	for _, o := range [4][2]float32{{r, 0}, {-r, 0}, {0, r}, {0, -r}} {
		around += src.SampleHeight(math.Vec3{X: pos.X + o[0], Y: pos.Y, Z: pos.Z + o[1]})
	}
	depth := around/4 - here
	return math.Clamp(1-depth/r, 0, 1)
}
