package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/config"
	"github.com/Faultbox/midgard-details/internal/culling"
	"github.com/Faultbox/midgard-details/internal/draw"
	"github.com/Faultbox/midgard-details/internal/gpu"
	"github.com/Faultbox/midgard-details/internal/logger"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// CullingSettings converts the config section into pass settings.
func CullingSettings(cfg config.CullingConfig) culling.Settings {
	return culling.Settings{
		BoundingBoxRadius:     cfg.BoundingBoxRadius,
		MaxCullingDistance:    cfg.MaxCullingDistance,
		EnableCull:            cfg.EnableCull,
		EnableCullInSceneView: cfg.EnableCullInSceneView,
		EnableRealtimeGI:      cfg.EnableRealtimeGI,
		UpdateProbesPerFrame:  cfg.UpdateProbesPerFrame,
	}
}

// Stats describe the last frame.
type Stats struct {
	Instances int // streamed to the device
	Survivors int // left after culling
	Draws     int // indirect draws issued
}

// Pipeline runs the culling and draw passes of a scene on one device.
type Pipeline struct {
	scene   *Scene
	device  gpu.Device
	culling *culling.Pass
	draw    *draw.Pass
	stats   Stats
}

// New creates the passes for scene on device.
func New(device gpu.Device, scene *Scene, settings culling.Settings) *Pipeline {
	logger.Info("details pipeline created",
		zap.String("device", device.Name()),
		zap.Int("terrains", len(scene.Terrains)),
		zap.Int("baked_instances", scene.Instances()),
	)
	return &Pipeline{
		scene:   scene,
		device:  device,
		culling: culling.NewPass(device, scene.Manager, scene.Probes, settings),
		draw:    draw.NewPass(device),
	}
}

// Scene returns the scene being drawn.
func (p *Pipeline) Scene() *Scene { return p.scene }

// Culling returns the culling pass.
func (p *Pipeline) Culling() *culling.Pass { return p.culling }

// Stats returns the counts of the last frame.
func (p *Pipeline) Stats() Stats { return p.stats }

// Frame streams, culls, sorts and draws the details for one view. In edit
// mode it first schedules a background rebake of the edit-active terrains.
func (p *Pipeline) Frame(ctx context.Context, frame culling.Frame, lightDir math.Vec3) Stats {
	if p.scene.Manager.Options().EnableEdit {
		p.scene.Manager.EditUpdate(ctx)
	}

	p.culling.Execute(ctx, frame)
	out := p.culling.Output()
	draws := p.draw.Execute(out, &gpu.DrawState{
		ViewProj:  frame.ViewProj,
		CameraPos: frame.Position,
		LightDir:  lightDir,
	})

	p.stats = Stats{Instances: out.Instances, Survivors: out.Survivors, Draws: draws}
	return p.stats
}

// ToggleCull flips frustum, distance and occlusion culling.
func (p *Pipeline) ToggleCull() bool {
	s := p.culling.Settings()
	s.EnableCull = !s.EnableCull
	p.culling.SetSettings(s)
	return s.EnableCull
}

// ToggleRealtimeGI flips the rolling probe refresh.
func (p *Pipeline) ToggleRealtimeGI() bool {
	s := p.culling.Settings()
	s.EnableRealtimeGI = !s.EnableRealtimeGI
	p.culling.SetSettings(s)
	return s.EnableRealtimeGI
}

// RefreshProbes resamples the probes of every streamed instance.
func (p *Pipeline) RefreshProbes() {
	if err := p.culling.RefreshProbes(); err != nil {
		logger.Warn("probe refresh failed", zap.Error(err))
	}
}

// Close waits for background work and releases every device resource.
func (p *Pipeline) Close() {
	p.scene.Manager.Wait()
	p.culling.Snapshots().Wait()
	p.draw.Release()
	p.culling.Release()
}
