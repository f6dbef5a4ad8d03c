package gpu

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-details/internal/hiz"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// kernelRun is the reference implementation of one kernel. Workgroups run
// one after another and the items of a group in invocation order, which is
// the order the GLSL kernels reproduce with their in-group ranking.
type kernelRun func(k *invocation) error

type invocation struct {
	u      *Uniforms
	groups int
	bufs   map[string][]uint32
}

func (k *invocation) buffer(name string, words int) ([]uint32, error) {
	b, ok := k.bufs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingBinding, name)
	}
	if len(b) < words {
		return nil, fmt.Errorf("%w: %s holds %d words, need %d", ErrBufferRange, name, len(b), words)
	}
	return b, nil
}

var kernelRuns = map[Kernel]kernelRun{
	KernelCull:        runCull,
	KernelHistogram:   runHistogram,
	KernelColumnScan:  runColumnScan,
	KernelPrefixScan:  runPrefixScan,
	KernelPrefixTable: runPrefixTable,
	KernelFillArgs:    runFillArgs,
	KernelRearrange:   runRearrange,
}

func runCull(k *invocation) error {
	u := k.u
	n := min(u.VertexCount, k.groups*GroupSize)
	if n <= 0 {
		return nil
	}

	positions, err := k.buffer(BindPositions, n*4)
	if err != nil {
		return err
	}
	transforms, err := k.buffer(BindTransforms, n*4)
	if err != nil {
		return err
	}
	infos, err := k.buffer(BindInstanceInfos, n)
	if err != nil {
		return err
	}
	typeInfos, err := k.buffer(BindTypeInfos, u.TypeCount*2)
	if err != nil {
		return err
	}
	thresholds, err := k.buffer(BindLODThresholds, u.TypeCount*MaxLODCounts)
	if err != nil {
		return err
	}
	tuples, err := k.buffer(BindTuples, 0)
	if err != nil {
		return err
	}
	counter, err := k.buffer(BindCounter, 1)
	if err != nil {
		return err
	}
	var depth []uint32
	if u.EnableCull && len(u.HiZ) > 0 {
		top := u.HiZ[len(u.HiZ)-1]
		if depth, err = k.buffer(BindDepthPyramid, top.Offset+top.Width*top.Height); err != nil {
			return err
		}
	}

	frustum := math.ExtractFrustum(u.ViewProj)
	capacity := uint32(len(tuples) / TupleWords)

	for i := 0; i < n; i++ {
		pos := vec3At(positions, i)
		dist := pos.Distance(u.CameraPos)
		if dist > u.MaxCullingDistance {
			continue
		}

		t := infos[i]
		if int(t) >= u.TypeCount {
			continue
		}

		if u.EnableCull {
			tr := vec3At(transforms, i)
			radius := u.BoundingBoxRadius * max(tr.X, tr.Y)
			if !frustum.SphereVisible(pos, radius) {
				continue
			}
			if occluded(u, depth, pos, radius) {
				continue
			}
		}

		lod := selectLOD(dist, thresholds[t*MaxLODCounts:t*MaxLODCounts+MaxLODCounts], typeInfos[t*2+1])

		slot := counter[0]
		counter[0]++
		if slot >= capacity {
			continue
		}
		w := Tuple{Index: uint32(i), Distance: dist, Type: t, LOD: lod}.Words()
		copy(tuples[slot*TupleWords:], w[:])
	}
	return nil
}

// selectLOD returns the first level whose threshold lies beyond dist,
// limited to the prototype's level count.
func selectLOD(dist float32, thresholds []uint32, lodCount uint32) uint32 {
	lod := uint32(MaxLODCounts - 1)
	for j := range thresholds {
		if dist < floatAt(thresholds, j) {
			lod = uint32(j)
			break
		}
	}
	if lodCount == 0 {
		return 0
	}
	return min(lod, lodCount-1)
}

// occluded projects the bounding cube of a sphere and compares its nearest
// depth with the farthest occluder depth stored in the pyramid texels it
// covers. Boxes crossing the near plane are never occluded.
func occluded(u *Uniforms, depth []uint32, center math.Vec3, radius float32) bool {
	if len(u.HiZ) == 0 || depth == nil {
		return false
	}

	minU, minV := float32(1), float32(1)
	maxU, maxV := float32(0), float32(0)
	nearest := float32(1)
	if u.ReversedZ {
		nearest = 0
	}

	for c := 0; c < 8; c++ {
		corner := math.Vec3{
			X: center.X + radius*sign(c&1),
			Y: center.Y + radius*sign(c&2),
			Z: center.Z + radius*sign(c&4),
		}
		clip := u.ViewProj.MulVec4(math.Vec4{X: corner.X, Y: corner.Y, Z: corner.Z, W: 1})
		if clip.W <= 1e-5 {
			return false
		}
		x := math.Clamp(clip.X/clip.W*0.5+0.5, 0, 1)
		y := math.Clamp(clip.Y/clip.W*0.5+0.5, 0, 1)
		z := clip.Z/clip.W*0.5 + 0.5

		minU, maxU = min(minU, x), max(maxU, x)
		minV, maxV = min(minV, y), max(maxV, y)
		if u.ReversedZ {
			nearest = max(nearest, z)
		} else {
			nearest = min(nearest, z)
		}
	}

	base := u.HiZ[0]
	extent := max((maxU-minU)*float32(base.Width), (maxV-minV)*float32(base.Height))
	level := 0
	if extent > 1 {
		level = int(math32.Ceil(math32.Log2(extent)))
	}
	level = min(level, len(u.HiZ)-1)
	l := u.HiZ[level]

	x0 := min(int(minU*float32(base.Width))>>level, l.Width-1)
	x1 := min(int(maxU*float32(base.Width))>>level, l.Width-1)
	y0 := min(int(minV*float32(base.Height))>>level, l.Height-1)
	y1 := min(int(maxV*float32(base.Height))>>level, l.Height-1)

	farthest := floatAt(depth, l.Offset+y0*l.Width+x0)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			d := floatAt(depth, l.Offset+y*l.Width+x)
			if u.ReversedZ {
				farthest = min(farthest, d)
			} else {
				farthest = max(farthest, d)
			}
		}
	}

	if u.ReversedZ {
		return nearest < farthest
	}
	return nearest > farthest
}

func sign(bit int) float32 {
	if bit != 0 {
		return 1
	}
	return -1
}

// digitOf returns the sort key of the tuple at element i.
func digitOf(tuples []uint32, i int, d Digit, maxDistance float32) uint32 {
	w := tuples[i*TupleWords : i*TupleWords+TupleWords]
	if d == DigitType {
		return (w[2]*MaxLODCounts + w[3]) & DistTypeMask
	}
	if maxDistance <= 0 {
		return 0
	}
	b := int(math32.Floor(math32.Float32frombits(w[1]) / maxDistance * DistTypeSize))
	return uint32(min(max(b, 0), DistTypeMask))
}

func runHistogram(k *invocation) error {
	u := k.u
	src, err := k.buffer(BindTuples, u.ResultCount*TupleWords)
	if err != nil {
		return err
	}
	table, err := k.buffer(BindHistogramTable, DistTypeSize*u.Groups)
	if err != nil {
		return err
	}

	for g := 0; g < min(k.groups, u.Groups); g++ {
		var count [DistTypeSize]uint32
		for i := g * GroupSize; i < min((g+1)*GroupSize, u.ResultCount); i++ {
			count[digitOf(src, i, u.Digit, u.MaxCullingDistance)]++
		}
		for b := range count {
			table[b*u.Groups+g] = count[b]
		}
	}
	return nil
}

func runColumnScan(k *invocation) error {
	u := k.u
	table, err := k.buffer(BindHistogramTable, DistTypeSize*u.Groups)
	if err != nil {
		return err
	}
	prefix, err := k.buffer(BindPrefixScan, DistTypeSize+1)
	if err != nil {
		return err
	}

	for b := 0; b < DistTypeSize; b++ {
		var sum uint32
		for g := 0; g < u.Groups; g++ {
			v := table[b*u.Groups+g]
			table[b*u.Groups+g] = sum
			sum += v
		}
		prefix[b] = sum
	}
	return nil
}

func runPrefixScan(k *invocation) error {
	prefix, err := k.buffer(BindPrefixScan, DistTypeSize+1)
	if err != nil {
		return err
	}

	var sum uint32
	for b := 0; b < DistTypeSize; b++ {
		v := prefix[b]
		prefix[b] = sum
		sum += v
	}
	prefix[DistTypeSize] = sum
	return nil
}

func runPrefixTable(k *invocation) error {
	u := k.u
	table, err := k.buffer(BindHistogramTable, DistTypeSize*u.Groups)
	if err != nil {
		return err
	}
	prefix, err := k.buffer(BindPrefixScan, DistTypeSize+1)
	if err != nil {
		return err
	}

	n := min(DistTypeSize*u.Groups, k.groups*GroupSize)
	for i := 0; i < n; i++ {
		table[i] += prefix[i/u.Groups]
	}
	return nil
}

func runFillArgs(k *invocation) error {
	u := k.u
	prefix, err := k.buffer(BindPrefixScan, DistTypeSize+1)
	if err != nil {
		return err
	}
	typeInfos, err := k.buffer(BindTypeInfos, u.TypeCount*2)
	if err != nil {
		return err
	}
	args, err := k.buffer(BindDrawArgs, u.TypeCount*MaxLODCounts*ArgsStride)
	if err != nil {
		return err
	}

	for t := 0; t < min(u.TypeCount, MaxPrototypes); t++ {
		lodCount := min(int(typeInfos[t*2+1]), MaxLODCounts)
		for l := 0; l < lodCount; l++ {
			slot := t*MaxLODCounts + l
			args[slot*ArgsStride+1] = prefix[slot+1] - prefix[slot]
			args[slot*ArgsStride+4] = prefix[slot]
		}
	}
	return nil
}

func runRearrange(k *invocation) error {
	u := k.u
	src, err := k.buffer(BindTuples, u.ResultCount*TupleWords)
	if err != nil {
		return err
	}
	dst, err := k.buffer(BindTempTuples, u.ResultCount*TupleWords)
	if err != nil {
		return err
	}
	table, err := k.buffer(BindHistogramTable, DistTypeSize*u.Groups)
	if err != nil {
		return err
	}

	for g := 0; g < min(k.groups, u.Groups); g++ {
		var seen [DistTypeSize]uint32
		for i := g * GroupSize; i < min((g+1)*GroupSize, u.ResultCount); i++ {
			d := digitOf(src, i, u.Digit, u.MaxCullingDistance)
			at := int(table[int(d)*u.Groups+g] + seen[d])
			seen[d]++
			copy(dst[at*TupleWords:at*TupleWords+TupleWords], src[i*TupleWords:i*TupleWords+TupleWords])
		}
	}
	return nil
}

// DepthWords packs a pyramid for upload to BindDepthPyramid.
func DepthWords(p *hiz.Pyramid) []uint32 {
	return FloatWords(p.Data)
}
