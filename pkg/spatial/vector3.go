// Package spatial implements the float32 3-vector and quaternion algebra
// used at the navigation filter's public boundary: body/NED rotations,
// quaternion derivatives, and the Euler conversions used at the query
// boundary. The filter's own predict/update path uses a float64 copy of
// this algebra instead.
//
// Values are float32, matching the native width of the IMU and magnetometer
// samples the filter consumes; the filter's own state and covariance keep
// float64 precision (see internal/navekf) and convert at the boundary.
package spatial

import "github.com/chewxy/math32"

// Vector3 is a 3-component vector in either body or NED frame, depending on
// where it is produced.
type Vector3 struct {
	X, Y, Z float32
}

// Add returns v+u.
func (v Vector3) Add(u Vector3) Vector3 {
	return Vector3{v.X + u.X, v.Y + u.Y, v.Z + u.Z}
}

// Sub returns v-u.
func (v Vector3) Sub(u Vector3) Vector3 {
	return Vector3{v.X - u.X, v.Y - u.Y, v.Z - u.Z}
}

// Scale returns v scaled by s.
func (v Vector3) Scale(s float32) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product of v and u.
func (v Vector3) Dot(u Vector3) float32 {
	return v.X*u.X + v.Y*u.Y + v.Z*u.Z
}

// Cross returns the cross product v x u.
func (v Vector3) Cross(u Vector3) Vector3 {
	return Vector3{
		X: v.Y*u.Z - v.Z*u.Y,
		Y: v.Z*u.X - v.X*u.Z,
		Z: v.X*u.Y - v.Y*u.X,
	}
}

// Norm returns the Euclidean length of v.
func (v Vector3) Norm() float32 {
	return math32.Sqrt(v.Dot(v))
}

// Normalize returns v scaled to unit length. If |v| < 1e-6 it returns v
// unchanged rather than dividing by a near-zero magnitude.
func (v Vector3) Normalize() Vector3 {
	n := v.Norm()
	if n < 1e-6 {
		return v
	}
	return v.Scale(1 / n)
}
