package camera

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-details/pkg/math"
)

func near(a, b math.Vec3) bool {
	const eps = 1e-4
	return math32.Abs(a.X-b.X) < eps && math32.Abs(a.Y-b.Y) < eps && math32.Abs(a.Z-b.Z) < eps
}

func TestFlyCameraDirections(t *testing.T) {
	tests := []struct {
		name           string
		yaw, pitch     float32
		forward, right math.Vec3
	}{
		{"default", 0, 0, math.Vec3{Z: -1}, math.Vec3{X: 1}},
		{"quarter turn left", math32.Pi / 2, 0, math.Vec3{X: -1}, math.Vec3{Z: -1}},
		{"looking up", 0, math32.Pi / 2, math.Vec3{Y: 1}, math.Vec3{X: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewFlyCamera(math.Vec3{})
			c.Yaw, c.Pitch = tt.yaw, tt.pitch
			if f := c.Forward(); !near(f, tt.forward) {
				t.Errorf("Forward() = %+v, want %+v", f, tt.forward)
			}
			if r := c.Right(); !near(r, tt.right) {
				t.Errorf("Right() = %+v, want %+v", r, tt.right)
			}
		})
	}
}

func TestFlyCameraViewProj(t *testing.T) {
	c := NewFlyCamera(math.Vec3{Y: 2})
	vp := c.ViewProj(16.0 / 9.0)

	ahead := vp.MulVec4(math.Vec4{Y: 2, Z: -10, W: 1})
	if ahead.W <= 0 {
		t.Fatalf("point ahead has w = %v", ahead.W)
	}
	if x, y := ahead.X/ahead.W, ahead.Y/ahead.W; math32.Abs(x) > 1e-4 || math32.Abs(y) > 1e-4 {
		t.Errorf("point ahead projects to (%v, %v), want center", x, y)
	}

	behind := vp.MulVec4(math.Vec4{Y: 2, Z: 10, W: 1})
	if behind.W >= 0 {
		t.Errorf("point behind has w = %v", behind.W)
	}
}

func TestFlyCameraLookClampsPitch(t *testing.T) {
	c := NewFlyCamera(math.Vec3{})
	c.HandleLook(0, -10000)
	if c.Pitch != c.MaxPitch {
		t.Errorf("pitch = %v, want %v", c.Pitch, c.MaxPitch)
	}
	c.HandleLook(0, 20000)
	if c.Pitch != -c.MaxPitch {
		t.Errorf("pitch = %v, want %v", c.Pitch, -c.MaxPitch)
	}
	c.HandleLook(100, 0)
	if c.Yaw >= 0 {
		t.Errorf("moving the mouse right turned yaw to %v", c.Yaw)
	}
}

func TestFlyCameraMovement(t *testing.T) {
	c := NewFlyCamera(math.Vec3{})
	c.Speed = 10

	c.HandleMovement(1, 0, 0, 0.5, false)
	if !near(c.Position, math.Vec3{Z: -5}) {
		t.Errorf("after forward: %+v", c.Position)
	}
	c.HandleMovement(0, 1, 1, 0.5, true)
	if !near(c.Position, math.Vec3{X: 20, Y: 20, Z: -5}) {
		t.Errorf("after boosted right/up: %+v", c.Position)
	}

	c.HandleZoom(100)
	if c.Speed != 500 {
		t.Errorf("speed = %v, want clamp at 500", c.Speed)
	}
}
