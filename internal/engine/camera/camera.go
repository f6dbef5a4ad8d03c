// Package camera provides camera implementations for 3D rendering.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-details/pkg/math"
)

// FlyCamera is a free camera steered by yaw and pitch.
type FlyCamera struct {
	Position math.Vec3
	Yaw      float32 // radians, 0 looks down -Z
	Pitch    float32 // radians, positive looks up

	FovY       float32
	Near, Far  float32
	MaxPitch   float32
	Speed      float32 // world units per second
	Boost      float32 // speed multiplier while boosting
	LookFactor float32 // radians per mouse pixel
}

// NewFlyCamera creates a camera at pos with default settings.
func NewFlyCamera(pos math.Vec3) *FlyCamera {
	return &FlyCamera{
		Position:   pos,
		FovY:       math32.Pi / 3,
		Near:       0.1,
		Far:        1000,
		MaxPitch:   1.5,
		Speed:      20,
		Boost:      4,
		LookFactor: 0.003,
	}
}

// Forward returns the unit view direction.
func (c *FlyCamera) Forward() math.Vec3 {
	sy, cy := math32.Sincos(c.Yaw)
	sp, cp := math32.Sincos(c.Pitch)
	return math.Vec3{X: -sy * cp, Y: sp, Z: -cy * cp}
}

// Right returns the unit right direction on the XZ plane.
func (c *FlyCamera) Right() math.Vec3 {
	sy, cy := math32.Sincos(c.Yaw)
	return math.Vec3{X: cy, Z: -sy}
}

// ViewMatrix returns the view matrix for this camera.
func (c *FlyCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position, c.Position.Add(c.Forward()), math.Vec3{Y: 1})
}

// Projection returns the perspective matrix for the given aspect ratio.
func (c *FlyCamera) Projection(aspect float32) math.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return math.Perspective(c.FovY, aspect, c.Near, c.Far)
}

// ViewProj returns projection * view.
func (c *FlyCamera) ViewProj(aspect float32) math.Mat4 {
	return c.Projection(aspect).Mul(c.ViewMatrix())
}

// HandleLook turns the camera by a mouse delta in pixels.
func (c *FlyCamera) HandleLook(dx, dy float32) {
	c.Yaw -= dx * c.LookFactor
	c.Pitch = math.Clamp(c.Pitch-dy*c.LookFactor, -c.MaxPitch, c.MaxPitch)
}

// HandleMovement moves along the view direction, the right direction and
// world up for dt seconds.
func (c *FlyCamera) HandleMovement(forward, right, up, dt float32, boost bool) {
	speed := c.Speed * dt
	if boost {
		speed *= c.Boost
	}
	move := c.Forward().Scale(forward).Add(c.Right().Scale(right)).Add(math.Vec3{Y: up})
	c.Position = c.Position.Add(move.Scale(speed))
}

// HandleZoom changes the movement speed by scroll wheel steps.
func (c *FlyCamera) HandleZoom(steps float32) {
	c.Speed = math.Clamp(c.Speed*math32.Pow(1.2, steps), 1, 500)
}
