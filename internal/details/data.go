// Package details holds the vegetation instance store, its synthesis from
// terrain detail layers, the baked per-terrain asset and the registry of
// scene terrains.
package details

import (
	"slices"

	"github.com/Faultbox/midgard-details/internal/quadtree"
	"github.com/Faultbox/midgard-details/internal/terrain"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// TypeInfo describes the draw layout of one prototype.
type TypeInfo struct {
	PrototypeIndex int32
	LODCount       int32
	Reserved       int32
}

// Data is a set of detail instances stored as parallel arrays, plus the
// prototype metadata and terrain linkage needed to synthesize more.
//
// All instance arrays have the same length, and TypeInfos, LODThresholds
// and Prototypes have the same length. Every Types entry indexes Prototypes.
type Data struct {
	Positions []math.Vec3
	Scales    []math.Vec3
	RotateYs  []float32
	Colors    []math.Vec4
	Types     []uint32

	Prototypes    []terrain.Prototype
	TypeInfos     []TypeInfo
	LODThresholds []math.Vec4
	TotalLODCount int

	Terrain       terrain.Source
	Position      math.Vec3 // terrain world position
	Resolution    int
	DetailWidth   int
	DetailHeight  int
	TerrainWidth  float32
	TerrainHeight float32
}

var _ quadtree.Data[*Data] = (*Data)(nil)

// NewData returns an empty store.
func NewData() *Data {
	return &Data{}
}

// Count returns the number of instances.
func (d *Data) Count() int {
	return len(d.Positions)
}

// Link copies the terrain linkage and prototypes of src into d.
func (d *Data) Link(src terrain.Source) {
	info := src.Info()
	d.Terrain = src
	d.Position = info.Position
	d.Resolution = info.Resolution
	d.DetailWidth = info.DetailWidth
	d.DetailHeight = info.DetailHeight
	d.TerrainWidth = info.Width
	d.TerrainHeight = info.Depth
	d.Prototypes = slices.Clone(src.Prototypes())
}

// Append implements quadtree.Data by copying the data range of node from
// src.
func (d *Data) Append(src *Data, node quadtree.Node) int {
	return d.AppendRange(src, node.DataIndex, node.DataCount)
}

// AppendRange appends instances [start, start+count) of src and returns the
// number appended. A range outside src appends nothing and returns 0; this
// happens when node metadata outlives a rebuilt store.
func (d *Data) AppendRange(src *Data, start, count int) int {
	if start < 0 || count < 0 || start+count > src.Count() {
		return 0
	}
	end := start + count
	d.Positions = append(d.Positions, src.Positions[start:end]...)
	d.Scales = append(d.Scales, src.Scales[start:end]...)
	d.RotateYs = append(d.RotateYs, src.RotateYs[start:end]...)
	d.Colors = append(d.Colors, src.Colors[start:end]...)
	d.Types = append(d.Types, src.Types[start:end]...)
	return count
}

// Add merges all of src into d. Prototype tables are concatenated without
// deduplication, and the types of src's instances are shifted by d's
// previous prototype count so they keep naming their own prototype.
func (d *Data) Add(src *Data) {
	base := uint32(len(d.Prototypes))

	d.Positions = append(d.Positions, src.Positions...)
	d.Scales = append(d.Scales, src.Scales...)
	d.RotateYs = append(d.RotateYs, src.RotateYs...)
	d.Colors = append(d.Colors, src.Colors...)
	for _, t := range src.Types {
		d.Types = append(d.Types, t+base)
	}

	d.Prototypes = append(d.Prototypes, src.Prototypes...)
	for i := range src.Prototypes {
		var info TypeInfo
		if i < len(src.TypeInfos) {
			info = src.TypeInfos[i]
		}
		info.PrototypeIndex += int32(base)
		d.TypeInfos = append(d.TypeInfos, info)

		var th math.Vec4
		if i < len(src.LODThresholds) {
			th = src.LODThresholds[i]
		}
		d.LODThresholds = append(d.LODThresholds, th)
	}
	d.TotalLODCount += src.TotalLODCount
}

// Clear empties the instance arrays, and the prototype tables too when
// clearPrototypes is set.
func (d *Data) Clear(clearPrototypes bool) {
	d.Positions = d.Positions[:0]
	d.Scales = d.Scales[:0]
	d.RotateYs = d.RotateYs[:0]
	d.Colors = d.Colors[:0]
	d.Types = d.Types[:0]

	if clearPrototypes {
		d.Prototypes = nil
		d.TypeInfos = nil
		d.LODThresholds = nil
		d.TotalLODCount = 0
	}
}

// InitData copies the terrain linkage and prototype tables of src.
func (d *Data) InitData(src *Data) {
	d.Terrain = src.Terrain
	d.Position = src.Position
	d.Resolution = src.Resolution
	d.DetailWidth = src.DetailWidth
	d.DetailHeight = src.DetailHeight
	d.TerrainWidth = src.TerrainWidth
	d.TerrainHeight = src.TerrainHeight
	d.TotalLODCount = src.TotalLODCount

	d.Prototypes = slices.Clone(src.Prototypes)
	d.TypeInfos = slices.Clone(src.TypeInfos)
	d.LODThresholds = slices.Clone(src.LODThresholds)
}

// Clone returns a deep copy of d.
func (d *Data) Clone() *Data {
	c := &Data{}
	c.InitData(d)
	c.Positions = slices.Clone(d.Positions)
	c.Scales = slices.Clone(d.Scales)
	c.RotateYs = slices.Clone(d.RotateYs)
	c.Colors = slices.Clone(d.Colors)
	c.Types = slices.Clone(d.Types)
	return c
}

// ComputeLODs derives TypeInfos, LODThresholds and TotalLODCount from the
// prototype meshes. A prototype with n LODs switches level every 100/n
// units of distance; unused levels get an unreachable threshold.
func (d *Data) ComputeLODs() {
	d.TotalLODCount = 0
	d.TypeInfos = make([]TypeInfo, len(d.Prototypes))
	d.LODThresholds = make([]math.Vec4, len(d.Prototypes))

	for i, p := range d.Prototypes {
		lodCount := p.LODCount()
		d.TotalLODCount += lodCount
		d.TypeInfos[i] = TypeInfo{PrototypeIndex: int32(i), LODCount: int32(lodCount)}
		d.LODThresholds[i] = LODThresholds(lodCount)
	}
}

// LODThresholds returns the switch distances for a mesh with lodCount
// levels.
func LODThresholds(lodCount int) math.Vec4 {
	th := math.Vec4{X: MaxDistance, Y: MaxDistance, Z: MaxDistance, W: MaxDistance}
	if lodCount <= 0 {
		return th
	}
	step := 100 / float32(lodCount)
	if lodCount > 1 {
		th.X = step
	}
	if lodCount > 2 {
		th.Y = step * 2
	}
	if lodCount > 3 {
		th.Z = step * 3
	}
	return th
}

// MaxDistance is the threshold of a LOD level that is never left.
const MaxDistance float32 = 3.4028235e38
