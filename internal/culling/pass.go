package culling

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/details"
	"github.com/Faultbox/midgard-details/internal/doublebuffer"
	"github.com/Faultbox/midgard-details/internal/foliage"
	"github.com/Faultbox/midgard-details/internal/gpu"
	"github.com/Faultbox/midgard-details/internal/hiz"
	"github.com/Faultbox/midgard-details/internal/lightprobe"
	"github.com/Faultbox/midgard-details/internal/logger"
	"github.com/Faultbox/midgard-details/internal/terrain"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// AssetSource provides the baked assets of the scene and the streaming
// options. *details.Manager implements it.
type AssetSource interface {
	Assets() []*details.Asset
	Options() details.Options
}

// Frame is the camera state of one rendered view.
type Frame struct {
	Camera   CameraKind
	Position math.Vec3
	ViewProj math.Mat4

	// HiZ is the depth pyramid of the view; nil disables occlusion.
	HiZ *hiz.Pyramid
}

// Output is what the draw pass consumes after Execute.
type Output struct {
	Data      *details.Data
	Buffers   *Buffers
	Instances int
	Survivors int
}

// Pass owns the streamed instance snapshot and its device buffers.
type Pass struct {
	device   gpu.Device
	settings Settings
	terrains AssetSource
	probes   lightprobe.Sampler
	data     *doublebuffer.Manager[details.Data]

	ready bool
	bufs  Buffers

	init        bool
	vertexCount int
	uploaded    uint64
	probeIndex  int
	resultCount int
	baseArgs    []uint32
}

// NewPass creates the pass. Kernels the device lacks are logged and leave
// the pass disabled; it then only streams data.
func NewPass(device gpu.Device, terrains AssetSource, probes lightprobe.Sampler, settings Settings) *Pass {
	p := &Pass{
		device:      device,
		settings:    settings,
		terrains:    terrains,
		probes:      probes,
		data:        doublebuffer.New(details.NewData),
		ready:       true,
		vertexCount: -1,
	}
	for _, k := range gpu.Kernels() {
		if !device.HasKernel(k) {
			logger.Error("compute kernel not found", zap.String("kernel", string(k)), zap.String("device", device.Name()))
			p.ready = false
		}
	}

	if assets := terrains.Assets(); len(assets) > 0 && assets[0] != nil {
		first := assets[0].Data
		p.data.CreateData(func(read, write *details.Data) {
			read.InitData(first)
			write.InitData(first)
		})
	}
	return p
}

// Settings returns the current settings.
func (p *Pass) Settings() Settings { return p.settings }

// SetSettings replaces the settings from the next frame on.
func (p *Pass) SetSettings(s Settings) { p.settings = s }

// Snapshots exposes the double buffer, for shutdown and inspection.
func (p *Pass) Snapshots() *doublebuffer.Manager[details.Data] { return p.data }

// Output returns the state left by the last Execute.
func (p *Pass) Output() Output {
	return Output{
		Data:      p.data.GetData(),
		Buffers:   &p.bufs,
		Instances: max(p.vertexCount, 0),
		Survivors: p.resultCount,
	}
}

// Release frees every device buffer.
func (p *Pass) Release() {
	p.data.Wait()
	p.bufs.Release()
	p.vertexCount = -1
}

// Execute streams, culls and sorts for one view. Failures are logged and
// leave nothing to draw for the frame.
func (p *Pass) Execute(ctx context.Context, frame Frame) {
	if !p.settings.ShouldExecute(frame.Camera) || ctx.Err() != nil {
		return
	}

	p.UpdateDetailsData(frame.Position)
	if err := p.ConfigureComputeBuffers(); err != nil {
		logger.Error("configure details buffers", zap.Error(err))
		p.resultCount = 0
		return
	}

	if p.vertexCount <= 0 || !p.ready {
		p.resultCount = 0
		return
	}

	if err := p.cullAndSort(ctx, frame); err != nil {
		logger.Error("details culling", zap.Error(err))
		p.resultCount = 0
		p.clearArgs()
	}
}

// UpdateDetailsData rebuilds the snapshot around center from every asset.
// It runs on the first frame and afterwards only while UpdateData is set.
// Edit mode rebuilds synchronously so edits show in the same frame.
func (p *Pass) UpdateDetailsData(center math.Vec3) {
	opts := p.terrains.Options()
	if !opts.UpdateData && p.init {
		return
	}
	p.init = true

	center.Y = 0
	assets := p.terrains.Assets()
	radius := opts.LoadToGPUDistance

	reset := func(w *details.Data) { w.Clear(true) }
	fill := func(scratch *details.Data, i int) error {
		if assets[i] != nil {
			assets[i].ClearAndCopyDataTo(scratch, center, radius)
		}
		return nil
	}
	merge := func(dst, src *details.Data) { dst.Add(src) }

	if opts.EnableEdit {
		if err := p.data.UpdateDataSlow(reset, fill, merge, len(assets)); err != nil {
			logger.Error("rebuild details snapshot", zap.Error(err))
		}
		return
	}
	p.data.UpdateData(reset, fill, merge, len(assets))
}

// ConfigureComputeBuffers uploads a newly published snapshot, reallocating
// when its bucket size changed. An unchanged snapshot only refreshes a
// window of light probes.
func (p *Pass) ConfigureComputeBuffers() error {
	if err := p.ensureCounter(); err != nil {
		return err
	}

	data := p.data.GetData()
	swaps := p.data.Swaps()
	edit := p.terrains.Options().EnableEdit

	if p.vertexCount != data.Count() || p.uploaded != swaps || edit {
		p.uploaded = swaps
		return p.updateComputeBuffers(data)
	}
	return p.refreshProbeWindow(data.Positions)
}

func (p *Pass) ensureCounter() error {
	if p.bufs.Counter != nil {
		return nil
	}
	c, err := p.device.NewBuffer(1)
	if err != nil {
		return fmt.Errorf("allocate counter: %w", err)
	}
	p.bufs.Counter = c
	return nil
}

func (p *Pass) updateComputeBuffers(data *details.Data) error {
	count := data.Count()
	p.vertexCount = count
	p.probeIndex = 0

	if count <= 0 {
		p.bufs.releaseInstance()
		return nil
	}

	size := BucketSize(count)
	if size != p.bufs.Size {
		logger.Debug("reallocating details buffers",
			zap.Int("instances", count), zap.Int("bucket_size", size))
		if err := p.bufs.allocInstance(p.device, size); err != nil {
			p.vertexCount = 0
			return fmt.Errorf("allocate instance buffers: %w", err)
		}
	}

	types := min(len(data.Prototypes), MaxPrototypes)
	if len(data.Prototypes) > MaxPrototypes {
		logger.Warn("too many detail prototypes, extra ones are not drawn",
			zap.Int("prototypes", len(data.Prototypes)), zap.Int("max", MaxPrototypes))
	}
	if types != p.bufs.TypeCount || p.bufs.DrawArgs == nil {
		if err := p.bufs.allocTypes(p.device, types); err != nil {
			p.vertexCount = 0
			return fmt.Errorf("allocate type buffers: %w", err)
		}
	}

	transforms := make([]math.Vec4, count)
	for i := range transforms {
		transforms[i] = math.Vec4{X: data.Scales[i].X, Y: data.Scales[i].Y, Z: data.RotateYs[i]}
	}

	typeInfos := make([]uint32, max(types, 1)*2)
	thresholds := make([]float32, max(types, 1)*MaxLODCounts)
	for i := 0; i < types; i++ {
		typeInfos[i*2] = uint32(data.TypeInfos[i].PrototypeIndex)
		typeInfos[i*2+1] = uint32(min(data.TypeInfos[i].LODCount, MaxLODCounts))
		th := data.LODThresholds[i].Array()
		copy(thresholds[i*MaxLODCounts:], th[:])
	}
	p.baseArgs = indirectArgs(data.Prototypes[:types], max(types, 1))

	b := &p.bufs
	writes := append(b.tailWrites(count),
		write{b.Positions, 0, gpu.Vec3Words(data.Positions)},
		write{b.Transforms, 0, gpu.Vec4Words(transforms)},
		write{b.Colors, 0, gpu.Vec4Words(data.Colors)},
		write{b.InstanceInfos, 0, data.Types},
		write{b.TypeInfos, 0, typeInfos},
		write{b.LODThresholds, 0, gpu.FloatWords(thresholds)},
		write{b.DrawArgs, 0, p.baseArgs},
	)
	err := upload(p.device, writes...)
	if err != nil {
		p.vertexCount = 0
		return fmt.Errorf("upload instances: %w", err)
	}

	if p.settings.EnableRealtimeGI {
		return p.uploadProbes(data.Positions, 0)
	}
	return nil
}

// indirectArgs builds the argument blocks of every prototype LOD with a
// zero instance count. Slots beyond a prototype's LOD count stay zero.
func indirectArgs(protos []terrain.Prototype, types int) []uint32 {
	args := make([]uint32, types*MaxLODCounts*gpu.ArgsStride)
	for i, proto := range protos {
		for j, sub := range proto.SubMeshes {
			if j >= min(MaxLODCounts, foliage.MaxLODs) {
				break
			}
			at := (i*MaxLODCounts + j) * gpu.ArgsStride
			args[at+0] = sub.IndexCount
			args[at+2] = sub.IndexStart
			args[at+3] = uint32(sub.BaseVertex)
		}
	}
	return args
}

// clearArgs zeroes every instance count so nothing from an older frame is
// drawn.
func (p *Pass) clearArgs() {
	if p.bufs.DrawArgs == nil || p.baseArgs == nil {
		return
	}
	if err := p.device.Write(p.bufs.DrawArgs, 0, p.baseArgs); err != nil {
		logger.Debug("reset draw arguments", zap.Error(err))
	}
}

func (p *Pass) uniforms(frame Frame) *gpu.Uniforms {
	u := &gpu.Uniforms{
		ViewProj:           frame.ViewProj,
		CameraPos:          frame.Position,
		BoundingBoxRadius:  p.settings.BoundingBoxRadius,
		MaxCullingDistance: p.settings.MaxCullingDistance,
		EnableCull:         p.settings.EnableCull,
		VertexCount:        p.vertexCount,
		TypeCount:          p.bufs.TypeCount,
	}
	if frame.HiZ != nil && len(frame.HiZ.Levels) > 0 {
		u.HiZ = frame.HiZ.Levels
		u.ReversedZ = frame.HiZ.ReversedZ
	}
	return u
}

func (p *Pass) uploadDepth(pyr *hiz.Pyramid) error {
	if p.bufs.Depth == nil || p.bufs.Depth.Len() != len(pyr.Data) {
		release(&p.bufs.Depth)
		d, err := p.device.NewBuffer(len(pyr.Data))
		if err != nil {
			return err
		}
		p.bufs.Depth = d
	}
	return p.device.Write(p.bufs.Depth, 0, gpu.DepthWords(pyr))
}

func (p *Pass) cullAndSort(ctx context.Context, frame Frame) error {
	u := p.uniforms(frame)
	b := &p.bufs

	bindings := gpu.Bindings{
		gpu.BindPositions:     b.Positions,
		gpu.BindTransforms:    b.Transforms,
		gpu.BindInstanceInfos: b.InstanceInfos,
		gpu.BindTypeInfos:     b.TypeInfos,
		gpu.BindLODThresholds: b.LODThresholds,
		gpu.BindTuples:        b.Tuples,
		gpu.BindCounter:       b.Counter,
	}
	if len(u.HiZ) > 0 && u.EnableCull {
		if err := p.uploadDepth(frame.HiZ); err != nil {
			return fmt.Errorf("upload depth pyramid: %w", err)
		}
		bindings[gpu.BindDepthPyramid] = b.Depth
	}

	if err := p.device.Write(b.Counter, 0, []uint32{0}); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	if err := p.device.Dispatch(gpu.KernelCull, gpu.Groups(p.vertexCount), bindings, u); err != nil {
		return err
	}

	var counter [1]uint32
	if err := p.device.Read(b.Counter, 0, counter[:]); err != nil {
		return fmt.Errorf("read counter: %w", err)
	}
	p.resultCount = min(int(counter[0]), b.Size)
	if p.resultCount <= 0 {
		p.clearArgs()
		return nil
	}

	if err := p.sortDigit(u, gpu.DigitDistance, b.Tuples, b.TempTuples); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.sortDigit(u, gpu.DigitType, b.TempTuples, b.Tuples)
}

// sortDigit runs one stable counting-sort pass over the survivors from src
// into dst. The type digit also fills the indirect argument counts.
func (p *Pass) sortDigit(base *gpu.Uniforms, digit gpu.Digit, src, dst gpu.Buffer) error {
	u := *base
	u.ResultCount = p.resultCount
	u.Groups = gpu.Groups(p.resultCount)
	u.Digit = digit

	b := &p.bufs
	bindings := gpu.Bindings{
		gpu.BindTuples:         src,
		gpu.BindTempTuples:     dst,
		gpu.BindHistogramTable: b.HistogramTable,
		gpu.BindPrefixScan:     b.PrefixScan,
		gpu.BindTypeInfos:      b.TypeInfos,
		gpu.BindDrawArgs:       b.DrawArgs,
	}

	steps := []struct {
		kernel gpu.Kernel
		groups int
	}{
		{gpu.KernelHistogram, u.Groups},
		{gpu.KernelColumnScan, 1},
		{gpu.KernelPrefixScan, 1},
		{gpu.KernelPrefixTable, u.Groups},
		{gpu.KernelFillArgs, 1},
		{gpu.KernelRearrange, u.Groups},
	}
	for _, s := range steps {
		if s.kernel == gpu.KernelFillArgs && digit != gpu.DigitType {
			continue
		}
		if err := p.device.Dispatch(s.kernel, s.groups, bindings, &u); err != nil {
			return err
		}
	}
	return nil
}
