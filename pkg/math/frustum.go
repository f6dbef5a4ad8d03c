package math

// Plane is a plane in Hessian normal form: Normal·p + D = 0. Points with a
// positive signed distance are on the inner side.
type Plane struct {
	Normal Vec3
	D      float32
}

// Distance returns the signed distance from p to the plane.
func (p Plane) Distance(pt Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// Frustum holds the six clip planes in the order left, right, bottom, top,
// near, far.
type Frustum [6]Plane

// ExtractFrustum derives normalized frustum planes from a column-major
// view-projection matrix (Gribb/Hartmann).
func ExtractFrustum(viewProj Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	raw := [6]Vec4{
		add4(r3, r0), // left
		sub4(r3, r0), // right
		add4(r3, r1), // bottom
		sub4(r3, r1), // top
		add4(r3, r2), // near
		sub4(r3, r2), // far
	}

	var f Frustum
	for i, p := range raw {
		n := p.XYZ()
		l := n.Length()
		if l == 0 {
			continue
		}
		f[i] = Plane{Normal: n.Scale(1 / l), D: p.W / l}
	}
	return f
}

// SphereVisible reports whether a sphere touches or is inside the frustum.
func (f *Frustum) SphereVisible(center Vec3, radius float32) bool {
	for i := range f {
		if f[i].Distance(center) < -radius {
			return false
		}
	}
	return true
}

func add4(a, b Vec4) Vec4 { return Vec4{a.X + b.X, a.Y + b.Y, a.Z + b.Z, a.W + b.W} }
func sub4(a, b Vec4) Vec4 { return Vec4{a.X - b.X, a.Y - b.Y, a.Z - b.Z, a.W - b.W} }
