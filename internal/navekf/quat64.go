package navekf

import "math"

// quat64 mirrors the algebra in pkg/spatial at float64 precision. The filter
// keeps its state vector and covariance in float64 for numerical stability
// across hundreds of predict/update cycles; converting every quaternion
// touch through the float32 spatial.Quaternion on the hot path would cost
// more in round-trip conversions than it saves. Sensor samples still enter
// and leave the filter as spatial.Vector3/Quaternion at the public boundary.
type quat64 struct {
	w, x, y, z float64
}

func identityQuat() quat64 { return quat64{w: 1} }

func (q quat64) norm() float64 {
	return math.Sqrt(q.w*q.w + q.x*q.x + q.y*q.y + q.z*q.z)
}

// normalize returns q scaled to unit length, or the identity quaternion if
// |q| < 1e-6.
func (q quat64) normalize() quat64 {
	n := q.norm()
	if n < 1e-6 {
		return identityQuat()
	}
	inv := 1 / n
	return quat64{q.w * inv, q.x * inv, q.y * inv, q.z * inv}
}

func (q quat64) multiply(r quat64) quat64 {
	return quat64{
		w: q.w*r.w - q.x*r.x - q.y*r.y - q.z*r.z,
		x: q.w*r.x + q.x*r.w + q.y*r.z - q.z*r.y,
		y: q.w*r.y - q.x*r.z + q.y*r.w + q.z*r.x,
		z: q.w*r.z + q.x*r.y - q.y*r.x + q.z*r.w,
	}
}

func (q quat64) conjugate() quat64 {
	return quat64{q.w, -q.x, -q.y, -q.z}
}

// dcm returns the 3x3 direction-cosine matrix equivalent to q, rotating a
// body-frame vector into NED.
func (q quat64) dcm() [3][3]float64 {
	w, x, y, z := q.w, q.x, q.y, q.z
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

func (q quat64) rotate(v [3]float64) [3]float64 {
	r := q.dcm()
	return [3]float64{
		r[0][0]*v[0] + r[0][1]*v[1] + r[0][2]*v[2],
		r[1][0]*v[0] + r[1][1]*v[1] + r[1][2]*v[2],
		r[2][0]*v[0] + r[2][1]*v[1] + r[2][2]*v[2],
	}
}

func (q quat64) rotateInverse(v [3]float64) [3]float64 {
	return q.conjugate().rotate(v)
}

// derivative returns 0.5 * q ⊗ (0, omega).
func (q quat64) derivative(omega [3]float64) quat64 {
	d := q.multiply(quat64{0, omega[0], omega[1], omega[2]})
	return quat64{d.w * 0.5, d.x * 0.5, d.y * 0.5, d.z * 0.5}
}

func (q quat64) toEuler() (roll, pitch, yaw float64) {
	w, x, y, z := q.w, q.x, q.y, q.z

	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	sinp := 2 * (w*y - z*x)
	switch {
	case sinp >= 1:
		pitch = math.Pi / 2
	case sinp <= -1:
		pitch = -math.Pi / 2
	default:
		pitch = math.Asin(sinp)
	}

	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}
