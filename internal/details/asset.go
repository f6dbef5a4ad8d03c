package details

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/foliage"
	"github.com/Faultbox/midgard-details/internal/logger"
	"github.com/Faultbox/midgard-details/internal/quadtree"
	"github.com/Faultbox/midgard-details/internal/terrain"
	"github.com/Faultbox/midgard-details/pkg/formats"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// RootCenter is the quadtree root center of every baked asset. The tree
// spans [0, MaxSize] on both axes of quadtree space, which maps onto the
// terrain square.
var RootCenter = math.Vec3{X: quadtree.MaxSize / 2, Z: quadtree.MaxSize / 2}

// Asset is the baked, full-resolution instance set of one terrain and the
// quadtree indexing it.
type Asset struct {
	Name string
	Data *Data
	Tree *quadtree.Tree[*Data]
}

// NewAsset returns an empty asset.
func NewAsset(name string) *Asset {
	return &Asset{
		Name: name,
		Data: NewData(),
		Tree: quadtree.New[*Data](),
	}
}

// Bake rebuilds the asset from a terrain: every quadtree leaf is
// synthesized and LOD tables are derived from the prototype meshes.
func (a *Asset) Bake(src terrain.Source) {
	if a.Data == nil {
		a.Data = NewData()
	}
	if a.Tree == nil {
		a.Tree = quadtree.New[*Data]()
	}

	a.Data.Clear(true)
	a.Data.Link(src)

	if a.Data.Resolution < int(quadtree.MaxSize) {
		logger.Warn("detail resolution below quadtree size, no instances will be placed",
			zap.String("terrain", a.Name),
			zap.Int("resolution", a.Data.Resolution))
	}

	a.Tree.Update(a.Data, RootCenter, true)
	a.Data.ComputeLODs()

	logger.Info("baked details asset",
		zap.String("terrain", a.Name),
		zap.Int("instances", a.Data.Count()),
		zap.Int("prototypes", len(a.Data.Prototypes)))
}

// CopyFrom rebuilds a from the leaves of src's tree without synthesizing:
// every leaf copies the instances src indexes under the same center, so
// instances no leaf of src references are dropped. src must not be a. It
// returns the number of instances copied.
func (a *Asset) CopyFrom(src *Asset) int {
	a.Data.Clear(true)
	a.Data.InitData(src.Data)
	a.Tree.UpdateFrom(a.Data, RootCenter, src.Tree, src.Data, true)
	return a.Data.Count()
}

// ClearAndCopyDataTo replaces the contents of dst with the instances within
// size world units of center (on X and Z), and the asset's metadata.
func (a *Asset) ClearAndCopyDataTo(dst *Data, center math.Vec3, size float32) {
	dst.Clear(true)
	dst.InitData(a.Data)

	width := min(a.Data.TerrainWidth, a.Data.TerrainHeight)
	if width <= 0 {
		return
	}
	local := center.Sub(a.Data.Position).Scale(quadtree.MaxSize / width)
	localSize := size / width * quadtree.MaxSize
	a.Tree.SearchAndFillQuadData(dst, a.Data, local, localSize)
}

// Encode converts the asset to its DDA form.
func (a *Asset) Encode() *formats.DDA {
	d := a.Data
	dda := &formats.DDA{
		Version: formats.DDAVersionCurrent,
		Header: formats.DDAHeader{
			Resolution:    int32(d.Resolution),
			DetailWidth:   int32(d.DetailWidth),
			DetailHeight:  int32(d.DetailHeight),
			TerrainWidth:  d.TerrainWidth,
			TerrainHeight: d.TerrainHeight,
			Position:      [3]float32{d.Position.X, d.Position.Y, d.Position.Z},
			TotalLODCount: int32(d.TotalLODCount),
		},
		Positions: make([][3]float32, d.Count()),
		Scales:    make([][3]float32, d.Count()),
		RotateYs:  append([]float32(nil), d.RotateYs...),
		Colors:    make([][4]float32, d.Count()),
		Types:     append([]uint32(nil), d.Types...),
	}

	for _, p := range d.Prototypes {
		subs := make([]formats.DDASubMesh, len(p.SubMeshes))
		for i, s := range p.SubMeshes {
			subs[i] = formats.DDASubMesh(s)
		}
		dda.Prototypes = append(dda.Prototypes, formats.DDAPrototype{
			Name:      p.Name,
			Mesh:      p.Mesh,
			MinWidth:  p.MinWidth,
			MaxWidth:  p.MaxWidth,
			MinHeight: p.MinHeight,
			MaxHeight: p.MaxHeight,
			NoiseSeed: int32(p.NoiseSeed),
			SubMeshes: subs,
		})
	}
	for _, info := range d.TypeInfos {
		dda.TypeInfos = append(dda.TypeInfos, [3]int32{info.PrototypeIndex, info.LODCount, info.Reserved})
	}
	for _, th := range d.LODThresholds {
		dda.LODThresholds = append(dda.LODThresholds, th.Array())
	}

	for i := range d.Positions {
		p, s := d.Positions[i], d.Scales[i]
		dda.Positions[i] = [3]float32{p.X, p.Y, p.Z}
		dda.Scales[i] = [3]float32{s.X, s.Y, s.Z}
		dda.Colors[i] = d.Colors[i].Array()
	}

	for _, n := range a.Tree.Nodes() {
		dda.Nodes = append(dda.Nodes, formats.DDANode{
			Index:     int32(n.Index),
			Center:    [3]float32{n.Center.X, n.Center.Y, n.Center.Z},
			Size:      n.Size,
			DataIndex: int32(n.DataIndex),
			DataCount: int32(n.DataCount),
		})
	}
	return dda
}

// DecodeAsset rebuilds an asset from its DDA form. The result has no
// terrain attached; call Data.Link before synthesizing into it.
func DecodeAsset(name string, dda *formats.DDA) (*Asset, error) {
	if len(dda.TypeInfos) != len(dda.Prototypes) || len(dda.LODThresholds) != len(dda.Prototypes) {
		return nil, fmt.Errorf("asset %q: %d prototypes, %d type infos, %d thresholds",
			name, len(dda.Prototypes), len(dda.TypeInfos), len(dda.LODThresholds))
	}

	a := NewAsset(name)
	d := a.Data
	h := dda.Header
	d.Resolution = int(h.Resolution)
	d.DetailWidth = int(h.DetailWidth)
	d.DetailHeight = int(h.DetailHeight)
	d.TerrainWidth = h.TerrainWidth
	d.TerrainHeight = h.TerrainHeight
	d.Position = math.Vec3{X: h.Position[0], Y: h.Position[1], Z: h.Position[2]}
	d.TotalLODCount = int(h.TotalLODCount)

	for _, p := range dda.Prototypes {
		subs := make([]foliage.SubMesh, len(p.SubMeshes))
		for i, s := range p.SubMeshes {
			subs[i] = foliage.SubMesh(s)
		}
		d.Prototypes = append(d.Prototypes, terrain.Prototype{
			Name:      p.Name,
			Mesh:      p.Mesh,
			MinWidth:  p.MinWidth,
			MaxWidth:  p.MaxWidth,
			MinHeight: p.MinHeight,
			MaxHeight: p.MaxHeight,
			NoiseSeed: int(p.NoiseSeed),
			SubMeshes: subs,
		})
	}
	for i, info := range dda.TypeInfos {
		if lods := d.Prototypes[i].LODCount(); int(info[1]) != lods {
			return nil, fmt.Errorf("asset %q: prototype %s has %d LODs but type info says %d",
				name, d.Prototypes[i].Name, lods, info[1])
		}
		d.TypeInfos = append(d.TypeInfos, TypeInfo{PrototypeIndex: info[0], LODCount: info[1], Reserved: info[2]})
	}
	for _, th := range dda.LODThresholds {
		d.LODThresholds = append(d.LODThresholds, math.Vec4{X: th[0], Y: th[1], Z: th[2], W: th[3]})
	}

	n := dda.InstanceCount()
	d.Positions = make([]math.Vec3, n)
	d.Scales = make([]math.Vec3, n)
	d.Colors = make([]math.Vec4, n)
	d.RotateYs = append([]float32(nil), dda.RotateYs...)
	d.Types = append([]uint32(nil), dda.Types...)
	for i := 0; i < n; i++ {
		p, s, c := dda.Positions[i], dda.Scales[i], dda.Colors[i]
		d.Positions[i] = math.Vec3{X: p[0], Y: p[1], Z: p[2]}
		d.Scales[i] = math.Vec3{X: s[0], Y: s[1], Z: s[2]}
		d.Colors[i] = math.Vec4{X: c[0], Y: c[1], Z: c[2], W: c[3]}
		if int(d.Types[i]) >= len(d.Prototypes) {
			return nil, fmt.Errorf("asset %q: instance %d has type %d of %d prototypes", name, i, d.Types[i], len(d.Prototypes))
		}
	}

	nodes := make([]quadtree.Node, 0, len(dda.Nodes))
	for _, n := range dda.Nodes {
		nodes = append(nodes, quadtree.Node{
			Index:     int(n.Index),
			Init:      true,
			Center:    math.Vec3{X: n.Center[0], Y: n.Center[1], Z: n.Center[2]},
			Size:      n.Size,
			DataIndex: int(n.DataIndex),
			DataCount: int(n.DataCount),
		})
	}
	if err := a.Tree.SetNodes(nodes); err != nil {
		return nil, fmt.Errorf("asset %q: %w", name, err)
	}
	return a, nil
}
