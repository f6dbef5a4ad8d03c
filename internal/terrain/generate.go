package terrain

import (
	"github.com/Faultbox/midgard-details/internal/noise"
	"github.com/Faultbox/midgard-details/pkg/formats"
)

// GenerateOptions controls procedural detail map generation.
type GenerateOptions struct {
	Resolution int     // detail cells per side
	HeightGrid int     // height samples per side
	Layers     int     // one per prototype
	MaxHeight  float32 // world height of the tallest hill
	MaxDensity int     // instances in the densest cell
	Scale      float32 // noise features per terrain side
	Seed       int
}

// DefaultGenerateOptions returns options producing a 1024x1024 meadow with
// two prototype layers.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Resolution: 1024,
		HeightGrid: 129,
		Layers:     2,
		MaxHeight:  20,
		MaxDensity: 4,
		Scale:      8,
		Seed:       1,
	}
}

// Generate builds a detail map of rolling hills with patchy vegetation. The
// same options always produce the same map.
func Generate(opts GenerateOptions) *formats.DTL {
	res := max(opts.Resolution, 1)
	hg := max(opts.HeightGrid, 2)
	dtl := formats.NewDTL(uint32(res), uint32(res), uint32(hg), uint32(hg), opts.Layers)

	offset := float32(opts.Seed%251) * 13.37
	for z := 0; z < hg; z++ {
		for x := 0; x < hg; x++ {
			u := float32(x) / float32(hg-1) * opts.Scale
			v := float32(z) / float32(hg-1) * opts.Scale
			h := 0.65*noise.Perlin2(u+offset, v+offset) + 0.35*noise.Perlin2(u*2.7+offset, v*2.7-offset)
			dtl.Heights[z*hg+x] = h * opts.MaxHeight
		}
	}

	for layer := 0; layer < opts.Layers; layer++ {
		lo := offset + float32(layer)*71.3
		// Grass-like first layer is dense; later layers form sparse patches.
		threshold := float32(0.35) + 0.15*float32(min(layer, 2))
		for z := 0; z < res; z++ {
			for x := 0; x < res; x++ {
				u := float32(x) / float32(res) * opts.Scale * 4
				v := float32(z) / float32(res) * opts.Scale * 4
				n := noise.Perlin2(u+lo, v-lo)
				if n <= threshold {
					continue
				}
				count := int((n - threshold) / (1 - threshold) * float32(opts.MaxDensity+1))
				dtl.SetDensity(layer, x, z, uint8(min(count, opts.MaxDensity, 255)))
			}
		}
	}
	return dtl
}

// DefaultDescription returns a description for a generated map with the
// standard grass and flower prototypes.
func DefaultDescription(name, detailMap string, size float32) *Description {
	return &Description{
		Name:      name,
		DetailMap: detailMap,
		Size:      [2]float32{size, size},
		Position:  [3]float32{-size / 2, 0, -size / 2},
		Prototypes: []PrototypeDescription{
			{Name: "grass", Mesh: "blades", LODs: 3, MinWidth: 0.6, MaxWidth: 1.2, MinHeight: 0.4, MaxHeight: 1.0, NoiseSeed: 1000},
			{Name: "flower", Mesh: "cross", LODs: 2, MinWidth: 0.3, MaxWidth: 0.5, MinHeight: 0.3, MaxHeight: 0.6, NoiseSeed: 2000},
		},
	}
}
