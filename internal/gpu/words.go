package gpu

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-details/pkg/math"
)

// Tuple is one culling survivor: instance index, distance to the camera,
// prototype type and selected LOD.
type Tuple struct {
	Index    uint32
	Distance float32
	Type     uint32
	LOD      uint32
}

// Words packs t into its four-word layout.
func (t Tuple) Words() [TupleWords]uint32 {
	return [TupleWords]uint32{t.Index, math32.Float32bits(t.Distance), t.Type, t.LOD}
}

// TupleAt unpacks the tuple at element i of words.
func TupleAt(words []uint32, i int) Tuple {
	w := words[i*TupleWords : i*TupleWords+TupleWords]
	return Tuple{Index: w[0], Distance: math32.Float32frombits(w[1]), Type: w[2], LOD: w[3]}
}

// Tuples decodes count tuples from words.
func Tuples(words []uint32, count int) []Tuple {
	out := make([]Tuple, count)
	for i := range out {
		out[i] = TupleAt(words, i)
	}
	return out
}

// Vec3Words packs vectors as four-word elements with a zero w, the std430
// layout of a vec3 array.
func Vec3Words(vs []math.Vec3) []uint32 {
	out := make([]uint32, 0, len(vs)*4)
	for _, v := range vs {
		out = append(out, math32.Float32bits(v.X), math32.Float32bits(v.Y), math32.Float32bits(v.Z), 0)
	}
	return out
}

// Vec4Words packs vectors as four-word elements.
func Vec4Words(vs []math.Vec4) []uint32 {
	out := make([]uint32, 0, len(vs)*4)
	for _, v := range vs {
		out = append(out, math32.Float32bits(v.X), math32.Float32bits(v.Y), math32.Float32bits(v.Z), math32.Float32bits(v.W))
	}
	return out
}

// FloatWords reinterprets floats as words.
func FloatWords(fs []float32) []uint32 {
	out := make([]uint32, len(fs))
	for i, f := range fs {
		out[i] = math32.Float32bits(f)
	}
	return out
}

func vec3At(words []uint32, i int) math.Vec3 {
	return math.Vec3{
		X: math32.Float32frombits(words[i*4]),
		Y: math32.Float32frombits(words[i*4+1]),
		Z: math32.Float32frombits(words[i*4+2]),
	}
}

func floatAt(words []uint32, i int) float32 {
	return math32.Float32frombits(words[i])
}
