package culling

import (
	"go.uber.org/multierr"

	"github.com/Faultbox/midgard-details/internal/gpu"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// BucketSize rounds an instance count up to whole workgroups. Zero
// instances need no buffers.
func BucketSize(n int) int {
	if n <= 0 {
		return 0
	}
	return math.RoundUp(n, GroupSize)
}

// tempSize is the element count of the sort scratch buffers, which always
// hold at least one workgroup.
func tempSize(n int) int {
	return max(BucketSize(n), GroupSize)
}

// Buffers are the device allocations of the pass. Per-instance buffers all
// hold Size elements; elements past the instance count are never read
// because the cull kernel stops at the instance count.
type Buffers struct {
	Size      int
	TypeCount int

	Positions     gpu.Buffer
	Transforms    gpu.Buffer
	Colors        gpu.Buffer
	InstanceInfos gpu.Buffer
	SHAr          gpu.Buffer
	SHAg          gpu.Buffer
	SHAb          gpu.Buffer
	SHBr          gpu.Buffer
	SHBg          gpu.Buffer
	SHBb          gpu.Buffer
	SHC           gpu.Buffer
	Occlusion     gpu.Buffer
	Tuples        gpu.Buffer

	TypeInfos     gpu.Buffer
	LODThresholds gpu.Buffer
	DrawArgs      gpu.Buffer

	TempTuples     gpu.Buffer
	HistogramTable gpu.Buffer
	PrefixScan     gpu.Buffer

	Counter gpu.Buffer
	Depth   gpu.Buffer
}

// instance lists the per-instance buffers with their binding names.
func (b *Buffers) instance() []struct {
	name string
	buf  *gpu.Buffer
} {
	return []struct {
		name string
		buf  *gpu.Buffer
	}{
		{gpu.BindPositions, &b.Positions},
		{gpu.BindTransforms, &b.Transforms},
		{gpu.BindColors, &b.Colors},
		{gpu.BindInstanceInfos, &b.InstanceInfos},
		{gpu.BindSHAr, &b.SHAr},
		{gpu.BindSHAg, &b.SHAg},
		{gpu.BindSHAb, &b.SHAb},
		{gpu.BindSHBr, &b.SHBr},
		{gpu.BindSHBg, &b.SHBg},
		{gpu.BindSHBb, &b.SHBb},
		{gpu.BindSHC, &b.SHC},
		{gpu.BindOcclusion, &b.Occlusion},
		{gpu.BindTuples, &b.Tuples},
	}
}

// allocInstance allocates every per-instance and scratch buffer for size
// elements.
func (b *Buffers) allocInstance(d gpu.Device, size int) error {
	b.releaseInstance()
	for _, e := range b.instance() {
		words := size * 4
		if e.name == gpu.BindInstanceInfos {
			words = size
		}
		buf, err := d.NewBuffer(words)
		if err != nil {
			b.releaseInstance()
			return err
		}
		*e.buf = buf
	}

	temp := tempSize(size)
	var err error
	if b.TempTuples, err = d.NewBuffer(temp * gpu.TupleWords); err != nil {
		b.releaseInstance()
		return err
	}
	if b.HistogramTable, err = d.NewBuffer(temp); err != nil {
		b.releaseInstance()
		return err
	}
	if b.PrefixScan, err = d.NewBuffer(DistTypeSize + 1); err != nil {
		b.releaseInstance()
		return err
	}
	b.Size = size
	return nil
}

// allocTypes allocates the per-prototype tables.
func (b *Buffers) allocTypes(d gpu.Device, types int) error {
	b.releaseTypes()
	var err error
	if b.TypeInfos, err = d.NewBuffer(max(types, 1) * 2); err != nil {
		return err
	}
	if b.LODThresholds, err = d.NewBuffer(max(types, 1) * MaxLODCounts); err != nil {
		b.releaseTypes()
		return err
	}
	if b.DrawArgs, err = d.NewBuffer(max(types, 1) * MaxLODCounts * gpu.ArgsStride); err != nil {
		b.releaseTypes()
		return err
	}
	b.TypeCount = types
	return nil
}

func (b *Buffers) releaseInstance() {
	for _, e := range b.instance() {
		release(e.buf)
	}
	release(&b.TempTuples)
	release(&b.HistogramTable)
	release(&b.PrefixScan)
	b.Size = 0
}

func (b *Buffers) releaseTypes() {
	release(&b.TypeInfos)
	release(&b.LODThresholds)
	release(&b.DrawArgs)
	b.TypeCount = 0
}

// Release frees every allocation, the counter included.
func (b *Buffers) Release() {
	b.releaseInstance()
	b.releaseTypes()
	release(&b.Counter)
	release(&b.Depth)
}

func release(b *gpu.Buffer) {
	if *b != nil {
		(*b).Release()
		*b = nil
	}
}

// Bindings returns every allocated buffer under its binding name, the way
// the draw pass's vertex stage reads them.
func (b *Buffers) Bindings() gpu.Bindings {
	out := gpu.Bindings{}
	for _, e := range b.instance() {
		if *e.buf != nil {
			out[e.name] = *e.buf
		}
	}
	if b.TypeInfos != nil {
		out[gpu.BindTypeInfos] = b.TypeInfos
	}
	if b.DrawArgs != nil {
		out[gpu.BindDrawArgs] = b.DrawArgs
	}
	return out
}

// tailWrites zeroes the per-instance slots from count up to Size, so a
// snapshot that shrinks inside the same bucket leaves no stale instances
// behind. Sort scratch buffers are left alone.
func (b *Buffers) tailWrites(count int) []write {
	if count >= b.Size {
		return nil
	}
	zeros := make([]uint32, (b.Size-count)*4)
	var out []write
	for _, e := range b.instance() {
		if e.name == gpu.BindTuples || *e.buf == nil {
			continue
		}
		stride := 4
		if e.name == gpu.BindInstanceInfos {
			stride = 1
		}
		out = append(out, write{*e.buf, count * stride, zeros[:(b.Size-count)*stride]})
	}
	return out
}

// upload writes several buffers and returns every failure.
func upload(d gpu.Device, writes ...write) error {
	var err error
	for _, w := range writes {
		if w.buf == nil {
			continue
		}
		err = multierr.Append(err, d.Write(w.buf, w.offset, w.data))
	}
	return err
}

type write struct {
	buf    gpu.Buffer
	offset int
	data   []uint32
}
