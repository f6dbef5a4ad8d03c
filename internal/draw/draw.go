// Package draw issues the indirect instanced draws of the culled and sorted
// detail instances, one per prototype LOD.
package draw

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/culling"
	"github.com/Faultbox/midgard-details/internal/foliage"
	"github.com/Faultbox/midgard-details/internal/gpu"
	"github.com/Faultbox/midgard-details/internal/logger"
	"github.com/Faultbox/midgard-details/internal/terrain"
)

type meshKey struct {
	kind string
	lods int
}

// Pass draws detail instances. Prototype meshes are built and uploaded on
// first use and shared by prototypes of the same kind and LOD count.
type Pass struct {
	device gpu.Device
	meshes map[meshKey]gpu.Mesh
	failed map[meshKey]bool
}

// NewPass creates a draw pass on device.
func NewPass(device gpu.Device) *Pass {
	return &Pass{
		device: device,
		meshes: make(map[meshKey]gpu.Mesh),
		failed: make(map[meshKey]bool),
	}
}

// Execute draws every LOD of every prototype of out with the argument
// block the culling pass left for it, and returns the number of draws
// issued. Errors are logged and skip the affected prototype.
func (p *Pass) Execute(out culling.Output, state *gpu.DrawState) int {
	b := out.Buffers
	if out.Instances <= 0 || out.Data == nil || b == nil || b.Counter == nil || b.DrawArgs == nil || b.Tuples == nil {
		return 0
	}

	bindings := b.Bindings()
	bindings[gpu.BindTuples] = b.Tuples

	protos := out.Data.Prototypes
	types := min(len(protos), len(out.Data.TypeInfos), culling.MaxPrototypes, b.TypeCount)

	draws := 0
	for i := 0; i < types; i++ {
		mesh, err := p.mesh(protos[i])
		if err != nil {
			logger.Warn("detail prototype mesh unavailable",
				zap.String("prototype", protos[i].Name), zap.Error(err))
			continue
		}
		lods := min(int(out.Data.TypeInfos[i].LODCount), culling.MaxLODCounts)
		for j := 0; j < lods; j++ {
			offset := ArgsOffset(i, j)
			if err := p.device.DrawIndexedIndirect(mesh, b.DrawArgs, offset, bindings, state); err != nil {
				logger.Error("draw details",
					zap.String("prototype", protos[i].Name), zap.Int("lod", j), zap.Error(err))
				continue
			}
			draws++
		}
	}
	return draws
}

// ArgsOffset returns the byte offset of the argument block of a prototype
// LOD in the draw argument buffer.
func ArgsOffset(prototype, lod int) int {
	return (prototype*culling.MaxLODCounts + lod) * gpu.ArgsStride * 4
}

func (p *Pass) mesh(proto terrain.Prototype) (gpu.Mesh, error) {
	key := meshKey{kind: proto.Mesh, lods: proto.LODCount()}
	if m, ok := p.meshes[key]; ok {
		return m, nil
	}
	if p.failed[key] {
		return nil, fmt.Errorf("mesh %s/%d failed to load", key.kind, key.lods)
	}

	src, err := foliage.Build(key.kind, key.lods)
	if err == nil {
		var m gpu.Mesh
		if m, err = p.device.UploadMesh(src); err == nil {
			p.meshes[key] = m
			logger.Debug("uploaded detail mesh",
				zap.String("kind", key.kind), zap.Int("lods", key.lods), zap.Int("indices", len(src.Indices)))
			return m, nil
		}
	}
	p.failed[key] = true
	return nil, err
}

// Meshes returns the number of uploaded meshes.
func (p *Pass) Meshes() int {
	return len(p.meshes)
}

// Release frees every uploaded mesh. A released pass rebuilds meshes on
// the next Execute.
func (p *Pass) Release() {
	for key, m := range p.meshes {
		m.Release()
		delete(p.meshes, key)
	}
	clear(p.failed)
}
