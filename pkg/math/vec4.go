package math

// Vec4 is a 4-component vector. It carries colors, packed transforms,
// spherical-harmonics rows and per-prototype LOD thresholds.
type Vec4 struct {
	X, Y, Z, W float32
}

// Get returns component i (0..3). Out of range indices return W.
func (v Vec4) Get(i int) float32 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	default:
		return v.W
	}
}

// XYZ drops the W component.
func (v Vec4) XYZ() Vec3 {
	return Vec3{v.X, v.Y, v.Z}
}

// Dot returns the 4D dot product.
func (v Vec4) Dot(other Vec4) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z + v.W*other.W
}

// Array returns the components as an array, in GPU upload order.
func (v Vec4) Array() [4]float32 {
	return [4]float32{v.X, v.Y, v.Z, v.W}
}
