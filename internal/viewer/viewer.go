// Package viewer implements the interactive details viewer: a fly camera
// over the configured terrains with the culling and draw passes running
// every frame.
package viewer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/config"
	"github.com/Faultbox/midgard-details/internal/culling"
	"github.com/Faultbox/midgard-details/internal/details"
	"github.com/Faultbox/midgard-details/internal/engine/camera"
	"github.com/Faultbox/midgard-details/internal/engine/debug"
	"github.com/Faultbox/midgard-details/internal/engine/input"
	"github.com/Faultbox/midgard-details/internal/engine/lighting"
	"github.com/Faultbox/midgard-details/internal/engine/renderer"
	"github.com/Faultbox/midgard-details/internal/engine/terrain"
	"github.com/Faultbox/midgard-details/internal/engine/window"
	"github.com/Faultbox/midgard-details/internal/gpu"
	"github.com/Faultbox/midgard-details/internal/gpu/glcompute"
	"github.com/Faultbox/midgard-details/internal/hiz"
	"github.com/Faultbox/midgard-details/internal/logger"
	"github.com/Faultbox/midgard-details/internal/pipeline"
	"github.com/Faultbox/midgard-details/pkg/math"
)

const (
	title       = "Midgard Details"
	groundCells = 128
	sunSpeed    = 30 // degrees per second
	nodeDepth   = 5  // quadtree depth of the node overlay
	nodeHeight  = 4
)

var nodeColor = [3]float32{1, 0.8, 0.2}

// Viewer owns the window and every pass.
type Viewer struct {
	cfg *config.Config

	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.FlyCamera
	sun      lighting.Sun

	device   gpu.Device
	gl       *glcompute.Device
	pipeline *pipeline.Pipeline

	capture   *debug.Capture
	pyramid   *hiz.Pyramid
	showNodes bool
	wantShot  bool
	nodes     []float32
	nodesOf   []*details.Asset

	mouseLook bool
	occlusion bool
}

// New opens the window, loads the scene and creates the passes.
func New(cfg *config.Config) (*Viewer, error) {
	v := &Viewer{
		cfg:       cfg,
		sun:       lighting.DefaultSun,
		capture:   debug.NewCapture("screenshots", "details"),
		occlusion: true,
	}

	var err error
	v.window, err = window.New(window.Config{
		Title:      title,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	w, h := v.window.GetSize()
	v.renderer, err = renderer.New(renderer.Config{Width: w, Height: h})
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	v.input = input.New()

	scene, err := pipeline.LoadScene(cfg.Details)
	if scene == nil {
		v.Close()
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}
	if err != nil {
		logger.Warn("scene loaded with errors", zap.Error(err))
	}
	for _, t := range scene.Terrains {
		v.renderer.AddGround(terrain.BuildMesh(t, groundCells))
	}

	v.device = v.newDevice(cfg.Culling.Backend)
	v.pipeline = pipeline.New(v.device, scene, pipeline.CullingSettings(cfg.Culling))
	if v.gl != nil {
		v.gl.SetProbes(cfg.Culling.EnableRealtimeGI)
	}

	center := scene.Center()
	v.camera = camera.NewFlyCamera(center.Add(math.Vec3{Y: 25}))
	v.camera.Far = max(cfg.Culling.MaxCullingDistance, cfg.Details.LoadToGPUDistance) * 2

	logger.Info("viewer initialized",
		zap.String("device", v.device.Name()),
		zap.Int("terrains", len(scene.Terrains)),
	)
	return v, nil
}

// newDevice creates the compute device. A GL device that cannot be created
// falls back to the software device, which culls but draws nothing.
func (v *Viewer) newDevice(backend string) gpu.Device {
	if backend == config.BackendSoftware {
		return gpu.NewSoftware()
	}
	d, err := glcompute.New()
	if err != nil {
		logger.Warn("OpenGL compute unavailable, using software device", zap.Error(err))
		return gpu.NewSoftware()
	}
	v.gl = d
	return d
}

// Run drives the frame loop until the window closes, Escape is pressed or
// ctx is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	last := time.Now()
	fpsTimer := last
	frames := 0

	logger.Info("starting frame loop")
	for ctx.Err() == nil {
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		if v.input.Update() || !v.handleEvents() {
			break
		}
		v.update(dt)
		stats := v.render(ctx)
		if v.wantShot {
			v.saveScreenshot()
			v.wantShot = false
		}
		v.window.SwapBuffers()

		frames++
		if time.Since(fpsTimer) >= time.Second {
			v.window.SetTitle(fmt.Sprintf("%s - %d fps - %d/%d instances, %d draws",
				title, frames, stats.Survivors, stats.Instances, stats.Draws))
			logger.Debug("frame stats",
				zap.Int("fps", frames),
				zap.Int("instances", stats.Instances),
				zap.Int("survivors", stats.Survivors),
				zap.Int("draws", stats.Draws),
			)
			frames = 0
			fpsTimer = time.Now()
		}
	}
	return nil
}

// handleEvents applies this frame's events and reports whether to keep
// running.
func (v *Viewer) handleEvents() bool {
	for _, e := range v.input.Events() {
		switch e.Type {
		case input.EventWindowResize:
			v.renderer.Resize(v.window.GetSize())
		case input.EventMouseMove:
			if v.mouseLook {
				v.camera.HandleLook(float32(e.DeltaX), float32(e.DeltaY))
			}
		case input.EventMouseWheel:
			v.camera.HandleZoom(float32(e.DeltaY))
		case input.EventKeyDown:
			if !v.handleKey(e.Key) {
				return false
			}
		}
	}
	return true
}

func (v *Viewer) handleKey(key sdl.Scancode) bool {
	switch key {
	case sdl.SCANCODE_ESCAPE:
		return false
	case sdl.SCANCODE_TAB:
		v.mouseLook = !v.mouseLook
		v.window.SetRelativeMouse(v.mouseLook)
	case sdl.SCANCODE_C:
		logger.Info("culling toggled", zap.Bool("enabled", v.pipeline.ToggleCull()))
	case sdl.SCANCODE_O:
		v.occlusion = !v.occlusion
		logger.Info("occlusion toggled", zap.Bool("enabled", v.occlusion))
	case sdl.SCANCODE_G:
		on := v.pipeline.ToggleRealtimeGI()
		if v.gl != nil {
			v.gl.SetProbes(on)
		}
		logger.Info("realtime GI toggled", zap.Bool("enabled", on))
	case sdl.SCANCODE_P:
		v.pipeline.RefreshProbes()
	case sdl.SCANCODE_B:
		v.showNodes = !v.showNodes
	case sdl.SCANCODE_F11:
		v.saveDepth()
	case sdl.SCANCODE_F12:
		v.wantShot = true
	}
	return true
}

func (v *Viewer) saveScreenshot() {
	pixels, w, h := v.renderer.ReadColor()
	path, err := v.capture.SaveColor(pixels, w, h)
	if err != nil {
		logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	logger.Info("screenshot saved", zap.String("path", path))
}

// saveDepth writes every level of the last depth pyramid.
func (v *Viewer) saveDepth() {
	if v.pyramid == nil {
		logger.Warn("no depth pyramid, occlusion is off")
		return
	}
	for level := range v.pyramid.Levels {
		path, err := v.capture.SaveDepth(v.pyramid, level)
		if err != nil {
			logger.Warn("depth capture failed", zap.Int("level", level), zap.Error(err))
			return
		}
		logger.Debug("depth level saved", zap.String("path", path))
	}
	logger.Info("depth pyramid saved", zap.Int("levels", len(v.pyramid.Levels)))
}

// nodeLines returns the overlay of the quadtree nodes holding instances,
// rebuilt whenever an asset was replaced.
func (v *Viewer) nodeLines() []float32 {
	assets := v.pipeline.Scene().Manager.Assets()
	if slices.Equal(assets, v.nodesOf) {
		return v.nodes
	}
	v.nodes = v.nodes[:0]
	for _, a := range assets {
		if a != nil {
			v.nodes = append(v.nodes, debug.NodeLines(a, nodeDepth, nodeHeight)...)
		}
	}
	v.nodesOf = assets
	return v.nodes
}

func (v *Viewer) update(dt float32) {
	forward := v.input.Axis(sdl.SCANCODE_S, sdl.SCANCODE_W)
	right := v.input.Axis(sdl.SCANCODE_A, sdl.SCANCODE_D)
	up := v.input.Axis(sdl.SCANCODE_LCTRL, sdl.SCANCODE_SPACE)
	v.camera.HandleMovement(forward, right, up, dt, v.input.IsKeyDown(sdl.SCANCODE_LSHIFT))

	if turn := v.input.Axis(sdl.SCANCODE_Q, sdl.SCANCODE_E); turn != 0 {
		v.sun.Rotate(turn * sunSpeed * dt)
	}
}

// render draws the ground, builds the depth pyramid from it and runs the
// details passes against that pyramid.
func (v *Viewer) render(ctx context.Context) pipeline.Stats {
	v.renderer.Begin()
	viewProj := v.camera.ViewProj(v.renderer.Aspect())
	light := v.sun.Direction()
	v.renderer.DrawGround(viewProj, light)

	var pyramid *hiz.Pyramid
	if v.occlusion {
		depth, w, h := v.renderer.ReadDepth()
		p, err := hiz.Build(depth, w, h, false)
		if err != nil {
			logger.Warn("depth pyramid", zap.Error(err))
		}
		pyramid = p
	}
	v.pyramid = pyramid

	stats := v.pipeline.Frame(ctx, culling.Frame{
		Camera:   culling.CameraGame,
		Position: v.camera.Position,
		ViewProj: viewProj,
		HiZ:      pyramid,
	}, light)

	if v.showNodes {
		v.renderer.DrawLines(v.nodeLines(), viewProj, nodeColor)
	}

	if sw, ok := v.device.(*gpu.Software); ok {
		sw.Draws()
		sw.Dispatches()
	}
	return stats
}

// Close waits for background work and releases every resource.
func (v *Viewer) Close() {
	logger.Info("closing viewer")
	if v.pipeline != nil {
		v.pipeline.Close()
	}
	if v.gl != nil {
		v.gl.Release()
	}
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
