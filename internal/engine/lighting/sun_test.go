package lighting

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-details/pkg/math"
)

func TestSunDirection(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float32
		want     math.Vec3
	}{
		{"horizon north", 0, 0, math.Vec3{Z: 1}},
		{"horizon east", 90, 0, math.Vec3{X: 1}},
		{"zenith", 30, 90, math.Vec3{Y: 1}},
		{"below horizon clamps", 0, -45, math.Vec3{Z: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SunDirection(tt.lon, tt.lat)
			if got.Sub(tt.want).Length() > 1e-5 {
				t.Errorf("SunDirection(%v, %v) = %+v, want %+v", tt.lon, tt.lat, got, tt.want)
			}
			if l := got.Length(); math32.Abs(l-1) > 1e-5 {
				t.Errorf("length = %v", l)
			}
		})
	}
}

func TestSunRotate(t *testing.T) {
	s := Sun{Longitude: 350, Latitude: 40}
	s.Rotate(20)
	if math32.Abs(s.Longitude-10) > 1e-4 {
		t.Errorf("Longitude = %v, want 10", s.Longitude)
	}
	s.Rotate(-30)
	if math32.Abs(s.Longitude-340) > 1e-4 {
		t.Errorf("Longitude = %v, want 340", s.Longitude)
	}
}
