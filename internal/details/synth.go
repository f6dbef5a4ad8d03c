package details

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-details/internal/noise"
	"github.com/Faultbox/midgard-details/internal/quadtree"
	"github.com/Faultbox/midgard-details/pkg/math"
)

var white = math.Vec4{X: 1, Y: 1, Z: 1, W: 1}

// Generate implements quadtree.Data. It scatters the instances of the
// square of side size around center, given in quadtree space, and returns
// how many were appended.
//
// Each detail cell with count n yields n instances jittered by a random
// stream seeded with noiseSeed + x*width + z, so the same cell always
// produces the same instances.
func (d *Data) Generate(center math.Vec3, size float32) int {
	if d.Terrain == nil || d.DetailWidth <= 0 || d.DetailHeight <= 0 {
		return 0
	}

	widthScale := d.TerrainWidth / float32(d.DetailWidth)
	heightScale := d.TerrainHeight / float32(d.DetailHeight)

	indexScale := int(float32(d.Resolution) / quadtree.MaxSize)
	baseX := int(math32.Floor(center.X-size*0.5)) * indexScale
	baseZ := int(math32.Floor(center.Z-size*0.5)) * indexScale
	width := int(size) * indexScale
	height := int(size) * indexScale
	if width <= 0 || height <= 0 {
		return 0
	}

	stream := noise.NewStream(0)
	total := 0
	for i, proto := range d.Prototypes {
		layers := d.Terrain.DetailLayer(baseX, baseZ, width, height, i)

		minScale := math.Vec3{X: proto.MinWidth, Y: proto.MinHeight, Z: proto.MinWidth}
		maxScale := math.Vec3{X: proto.MaxWidth, Y: proto.MaxHeight, Z: proto.MaxWidth}

		for z := 0; z < height; z++ {
			for x := 0; x < width; x++ {
				count := layers[z][x]
				if count <= 0 {
					continue
				}
				stream.Seed(int64(proto.NoiseSeed + x*width + z))

				cell := math.Vec3{
					X: (float32(baseX) + 0.5 + float32(x)) * widthScale,
					Z: (float32(baseZ) + 0.5 + float32(z)) * heightScale,
				}.Add(d.Position)

				for j := 0; j < count; j++ {
					offX := stream.Value() * widthScale
					offZ := stream.Value() * heightScale
					n := noise.Perlin2(offX, offZ)

					pos := cell.Add(math.Vec3{X: offX, Z: offZ})
					pos.Y = d.Terrain.SampleHeight(pos)

					d.Positions = append(d.Positions, pos)
					d.Scales = append(d.Scales, minScale.Lerp(maxScale, n))
					d.RotateYs = append(d.RotateYs, n*2*math32.Pi)
					d.Colors = append(d.Colors, white)
					d.Types = append(d.Types, uint32(i))
				}
				total += count
			}
		}
	}
	return total
}
