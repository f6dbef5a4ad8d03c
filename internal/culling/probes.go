package culling

import (
	"github.com/Faultbox/midgard-details/internal/gpu"
	"github.com/Faultbox/midgard-details/internal/lightprobe"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// probeWords samples positions and returns the packed probe vectors in
// binding order: Ar, Ag, Ab, Br, Bg, Bb, C, occlusion.
func probeWords(s lightprobe.Sampler, positions []math.Vec3) [8][]uint32 {
	n := len(positions)
	sh := make([]lightprobe.SH, n)
	occ := make([]math.Vec4, n)
	s.Sample(positions, sh, occ)

	var cols [8][]math.Vec4
	for i := range cols {
		cols[i] = make([]math.Vec4, n)
	}
	for i := range sh {
		p := lightprobe.Pack(sh[i])
		cols[0][i], cols[1][i], cols[2][i] = p.Ar, p.Ag, p.Ab
		cols[3][i], cols[4][i], cols[5][i] = p.Br, p.Bg, p.Bb
		cols[6][i] = p.C
		cols[7][i] = occ[i]
	}

	var out [8][]uint32
	for i := range cols {
		out[i] = gpu.Vec4Words(cols[i])
	}
	return out
}

func (b *Buffers) probeBuffers() [8]gpu.Buffer {
	return [8]gpu.Buffer{b.SHAr, b.SHAg, b.SHAb, b.SHBr, b.SHBg, b.SHBb, b.SHC, b.Occlusion}
}

// uploadProbes samples positions and writes them starting at element first.
func (p *Pass) uploadProbes(positions []math.Vec3, first int) error {
	if p.probes == nil || len(positions) == 0 {
		return nil
	}
	words := probeWords(p.probes, positions)
	bufs := p.bufs.probeBuffers()
	writes := make([]write, 0, len(bufs))
	for i, buf := range bufs {
		writes = append(writes, write{buf: buf, offset: first * 4, data: words[i]})
	}
	return upload(p.device, writes...)
}

// RefreshProbes re-samples every instance of the current snapshot.
func (p *Pass) RefreshProbes() error {
	if !p.settings.EnableRealtimeGI || p.bufs.Positions == nil {
		return nil
	}
	data := p.data.GetData()
	n := min(data.Count(), p.vertexCount)
	return p.uploadProbes(data.Positions[:n], 0)
}

// refreshProbeWindow re-samples the next UpdateProbesPerFrame instances,
// wrapping at the end of the snapshot.
func (p *Pass) refreshProbeWindow(positions []math.Vec3) error {
	upf := p.settings.UpdateProbesPerFrame
	end := min(len(positions), p.vertexCount)
	if !p.settings.EnableRealtimeGI || upf <= 0 || end <= 0 || p.bufs.Positions == nil {
		return nil
	}
	if p.probeIndex >= end {
		p.probeIndex = 0
	}
	first := p.probeIndex
	n := min(upf, end-first)
	if err := p.uploadProbes(positions[first:first+n], first); err != nil {
		return err
	}
	p.probeIndex = (first + n) % end
	return nil
}
