package spatial

import "github.com/chewxy/math32"

// Quaternion is (w, x, y, z) with w the scalar part. It rotates a vector
// from body frame to NED frame: v_ned = Quaternion.RotateVector(q, v_body).
type Quaternion struct {
	W, X, Y, Z float32
}

// IdentityQuaternion returns the no-rotation quaternion (1,0,0,0).
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// Norm returns the quaternion's Euclidean length.
func (q Quaternion) Norm() float32 {
	return math32.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalize returns q scaled to unit length. If |q| < 1e-6 it returns the
// identity quaternion rather than dividing by a near-zero magnitude.
func (q Quaternion) Normalize() Quaternion {
	n := q.Norm()
	if n < 1e-6 {
		return IdentityQuaternion()
	}
	inv := 1 / n
	return Quaternion{q.W * inv, q.X * inv, q.Y * inv, q.Z * inv}
}

// Multiply returns the Hamilton product q*r. Non-commutative; used to
// compose a body-frame rotation r onto a world-frame attitude q as
// q_world ∘ q_body.
func (q Quaternion) Multiply(r Quaternion) Quaternion {
	return Quaternion{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Conjugate returns (w, -x, -y, -z).
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{q.W, -q.X, -q.Y, -q.Z}
}

// Inverse returns the multiplicative inverse of q. For a unit quaternion
// this equals the conjugate; the general form divides by |q|^2 so a
// slightly denormalized q still inverts correctly.
func (q Quaternion) Inverse() Quaternion {
	n2 := q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z
	if n2 < 1e-12 {
		return IdentityQuaternion()
	}
	c := q.Conjugate()
	inv := 1 / n2
	return Quaternion{c.W * inv, c.X * inv, c.Y * inv, c.Z * inv}
}

// dcm returns the 3x3 direction-cosine matrix equivalent to q, rotating a
// body-frame vector into the NED frame it is a member of.
func (q Quaternion) dcm() [3][3]float32 {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	return [3][3]float32{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// RotateVector returns q ⊗ (0,v) ⊗ q⁻¹, computed via the direction-cosine
// matrix form of q to avoid two quaternion multiplications.
func (q Quaternion) RotateVector(v Vector3) Vector3 {
	r := q.dcm()
	return Vector3{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

// RotateVectorInverse rotates v by the inverse of q, i.e. from NED back into
// body frame. Equivalent to q.Conjugate().RotateVector(v) for a unit q.
func (q Quaternion) RotateVectorInverse(v Vector3) Vector3 {
	return q.Conjugate().RotateVector(v)
}

// Derivative returns the quaternion kinematic rate 0.5 * q ⊗ (0, ω) for a
// body-frame angular rate ω.
func (q Quaternion) Derivative(omega Vector3) Quaternion {
	d := q.Multiply(Quaternion{0, omega.X, omega.Y, omega.Z})
	return Quaternion{d.W * 0.5, d.X * 0.5, d.Y * 0.5, d.Z * 0.5}
}

// FromEuler builds a quaternion from roll/pitch/yaw (radians) using the ZYX
// aerospace convention (yaw, then pitch, then roll), normalized on return.
func FromEuler(roll, pitch, yaw float32) Quaternion {
	cr, sr := math32.Cos(roll*0.5), math32.Sin(roll*0.5)
	cp, sp := math32.Cos(pitch*0.5), math32.Sin(pitch*0.5)
	cy, sy := math32.Cos(yaw*0.5), math32.Sin(yaw*0.5)

	q := Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
	return q.Normalize()
}

// ToEuler returns (roll, pitch, yaw) in radians using the ZYX aerospace
// convention. Pitch is clamped to +/-pi/2 at the gimbal-lock boundary
// instead of propagating a NaN from asin.
func (q Quaternion) ToEuler() (roll, pitch, yaw float32) {
	w, x, y, z := q.W, q.X, q.Y, q.Z

	roll = math32.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	sinp := 2 * (w*y - z*x)
	if sinp >= 1 {
		pitch = math32.Pi / 2
	} else if sinp <= -1 {
		pitch = -math32.Pi / 2
	} else {
		pitch = math32.Asin(sinp)
	}

	yaw = math32.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}
