// Package lighting provides the directional sun used by the ground and
// detail passes.
package lighting

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-details/pkg/math"
)

// Sun is a directional light given by compass angles in degrees.
type Sun struct {
	Longitude float32 // rotation around Y, 0 points at +Z
	Latitude  float32 // elevation above the horizon
}

// DefaultSun is a mid-morning sun.
var DefaultSun = Sun{Longitude: 45, Latitude: 50}

// Direction returns the unit vector pointing towards the sun.
func (s Sun) Direction() math.Vec3 {
	return SunDirection(s.Longitude, s.Latitude)
}

// Rotate moves the sun by the given number of degrees of longitude.
func (s *Sun) Rotate(degrees float32) {
	s.Longitude = math32.Mod(s.Longitude+degrees, 360)
	if s.Longitude < 0 {
		s.Longitude += 360
	}
}

// SunDirection converts longitude/latitude angles to a light direction.
// Latitude is clamped to [0, 90].
func SunDirection(longitude, latitude float32) math.Vec3 {
	lat := math.Clamp(latitude, 0, 90) * math32.Pi / 180
	lon := longitude * math32.Pi / 180

	sinLon, cosLon := math32.Sincos(lon)
	sinLat, cosLat := math32.Sincos(lat)
	return math.Vec3{X: cosLat * sinLon, Y: sinLat, Z: cosLat * cosLon}
}
