package draw

import (
	"testing"

	"github.com/Faultbox/midgard-details/internal/culling"
	"github.com/Faultbox/midgard-details/internal/details"
	"github.com/Faultbox/midgard-details/internal/foliage"
	"github.com/Faultbox/midgard-details/internal/gpu"
	"github.com/Faultbox/midgard-details/internal/terrain"
)

func prototype(t *testing.T, name, kind string, lods int) terrain.Prototype {
	t.Helper()
	subs, err := foliage.SubMeshes(kind, lods)
	if err != nil {
		t.Fatalf("SubMeshes(%s): %v", kind, err)
	}
	return terrain.Prototype{Name: name, Mesh: kind, SubMeshes: subs}
}

func output(t *testing.T, dev *gpu.Software, protos []terrain.Prototype) culling.Output {
	t.Helper()
	args, err := dev.NewBuffer(len(protos) * culling.MaxLODCounts * gpu.ArgsStride)
	if err != nil {
		t.Fatal(err)
	}
	words := make([]uint32, args.Len())
	for i := range words {
		words[i] = uint32(i)
	}
	if err := dev.Write(args, 0, words); err != nil {
		t.Fatal(err)
	}
	tuples, err := dev.NewBuffer(256 * gpu.TupleWords)
	if err != nil {
		t.Fatal(err)
	}
	counter, err := dev.NewBuffer(1)
	if err != nil {
		t.Fatal(err)
	}

	data := details.NewData()
	data.Prototypes = protos
	data.ComputeLODs()
	return culling.Output{
		Data:      data,
		Buffers:   &culling.Buffers{Size: 256, TypeCount: len(protos), DrawArgs: args, Tuples: tuples, Counter: counter},
		Instances: 10,
		Survivors: 10,
	}
}

func TestArgsOffset(t *testing.T) {
	tests := []struct{ proto, lod, want int }{
		{0, 0, 0},
		{0, 1, 20},
		{0, 3, 60},
		{1, 0, 80},
		{2, 2, 200},
	}
	for _, tt := range tests {
		if got := ArgsOffset(tt.proto, tt.lod); got != tt.want {
			t.Errorf("ArgsOffset(%d, %d) = %d, want %d", tt.proto, tt.lod, got, tt.want)
		}
	}
}

func TestExecute(t *testing.T) {
	dev := gpu.NewSoftware()
	protos := []terrain.Prototype{
		prototype(t, "grass", foliage.KindBlades, 3),
		prototype(t, "flower", foliage.KindCross, 1),
		prototype(t, "weed", foliage.KindBlades, 3),
	}
	p := NewPass(dev)
	defer p.Release()

	if n := p.Execute(output(t, dev, protos), &gpu.DrawState{}); n != 7 {
		t.Fatalf("Execute issued %d draws, want 7", n)
	}
	if p.Meshes() != 2 {
		t.Errorf("uploaded %d meshes, want 2 shared by kind and LOD count", p.Meshes())
	}

	draws := dev.Draws()
	wantOffsets := []int{0, 20, 40, 80, 160, 180, 200}
	if len(draws) != len(wantOffsets) {
		t.Fatalf("recorded %d draws", len(draws))
	}
	for i, d := range draws {
		if d.ByteOffset != wantOffsets[i] {
			t.Errorf("draw %d offset = %d, want %d", i, d.ByteOffset, wantOffsets[i])
		}
		if first := uint32(wantOffsets[i] / 4); d.Args[0] != first || d.Args[4] != first+4 {
			t.Errorf("draw %d args = %v", i, d.Args)
		}
	}
	if draws[0].Mesh != draws[4].Mesh {
		t.Error("prototypes of the same mesh did not share it")
	}
	if draws[0].Mesh == draws[3].Mesh {
		t.Error("different kinds shared a mesh")
	}
}

func TestExecuteFollowsTypeInfo(t *testing.T) {
	dev := gpu.NewSoftware()
	p := NewPass(dev)
	defer p.Release()

	out := output(t, dev, []terrain.Prototype{prototype(t, "grass", foliage.KindBlades, 3)})
	out.Data.TypeInfos[0].LODCount = 2

	if n := p.Execute(out, &gpu.DrawState{}); n != 2 {
		t.Fatalf("Execute issued %d draws, want the 2 LODs of the type info", n)
	}
	out.Data.TypeInfos = nil
	if n := p.Execute(out, &gpu.DrawState{}); n != 0 {
		t.Errorf("Execute issued %d draws without type infos", n)
	}
}

func TestExecuteSkips(t *testing.T) {
	dev := gpu.NewSoftware()
	p := NewPass(dev)
	protos := []terrain.Prototype{prototype(t, "grass", foliage.KindBlades, 2)}

	empty := output(t, dev, protos)
	empty.Instances = 0
	if n := p.Execute(empty, nil); n != 0 {
		t.Errorf("drew %d with no instances", n)
	}

	noArgs := output(t, dev, protos)
	noArgs.Buffers.DrawArgs = nil
	if n := p.Execute(noArgs, nil); n != 0 {
		t.Errorf("drew %d without argument buffer", n)
	}

	noCounter := output(t, dev, protos)
	noCounter.Buffers.Counter = nil
	if n := p.Execute(noCounter, nil); n != 0 {
		t.Errorf("drew %d without counter", n)
	}

	if n := p.Execute(culling.Output{Instances: 5}, nil); n != 0 {
		t.Errorf("drew %d without buffers", n)
	}
	if len(dev.Draws()) != 0 {
		t.Error("draws recorded")
	}
}

func TestExecuteBadPrototype(t *testing.T) {
	dev := gpu.NewSoftware()
	p := NewPass(dev)
	protos := []terrain.Prototype{
		{Name: "rock", Mesh: "boulder", SubMeshes: make([]foliage.SubMesh, 1)},
		prototype(t, "flower", foliage.KindCross, 1),
	}
	out := output(t, dev, protos)

	for range 2 {
		if n := p.Execute(out, nil); n != 1 {
			t.Errorf("Execute issued %d draws, want 1", n)
		}
	}
	if p.Meshes() != 1 {
		t.Errorf("uploaded %d meshes", p.Meshes())
	}

	p.Release()
	if p.Meshes() != 0 {
		t.Error("meshes kept after Release")
	}
	if n := p.Execute(out, nil); n != 1 {
		t.Errorf("Execute after Release issued %d draws", n)
	}
}
