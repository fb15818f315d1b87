package spatial

import (
	"math"
	"testing"
)

func almostEqual32(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestQuaternionMultiplyByInverseIsIdentity(t *testing.T) {
	q := FromEuler(0.3, -0.2, 1.1)
	id := q.Multiply(q.Inverse())
	if !almostEqual32(id.W, 1, 1e-5) || !almostEqual32(id.X, 0, 1e-5) ||
		!almostEqual32(id.Y, 0, 1e-5) || !almostEqual32(id.Z, 0, 1e-5) {
		t.Errorf("q * q^-1 = %+v, want identity", id)
	}
}

func TestNormalizeNearZeroReturnsIdentity(t *testing.T) {
	q := Quaternion{1e-9, 1e-9, 1e-9, 1e-9}.Normalize()
	want := IdentityQuaternion()
	if q != want {
		t.Errorf("Normalize of near-zero quaternion = %+v, want %+v", q, want)
	}
}

func TestEulerRoundTrip(t *testing.T) {
	cases := []struct{ roll, pitch, yaw float32 }{
		{0, 0, 0},
		{0.1, 0.2, 0.3},
		{-0.5, 0.4, -1.2},
		{1.0, -1.0, 2.5},
	}
	for _, c := range cases {
		q := FromEuler(c.roll, c.pitch, c.yaw)
		r, p, y := q.ToEuler()
		if !almostEqual32(r, c.roll, 1e-3) || !almostEqual32(p, c.pitch, 1e-3) || !almostEqual32(y, c.yaw, 1e-3) {
			t.Errorf("round trip (%v,%v,%v) -> (%v,%v,%v)", c.roll, c.pitch, c.yaw, r, p, y)
		}
	}
}

func TestRotateVectorInverseUndoesRotation(t *testing.T) {
	q := FromEuler(0.2, 0.1, float32(math.Pi/3))
	v := Vector3{1, 2, 3}
	rotated := q.RotateVector(v)
	back := q.RotateVectorInverse(rotated)
	if !almostEqual32(back.X, v.X, 1e-4) || !almostEqual32(back.Y, v.Y, 1e-4) || !almostEqual32(back.Z, v.Z, 1e-4) {
		t.Errorf("rotate then inverse-rotate = %+v, want %+v", back, v)
	}
}

func TestYawRotationMatchesExpectedField(t *testing.T) {
	// A 90-degree yaw rotation should carry north (1,0,0) in NED onto
	// (0,-1,0) in body frame, matching the magnetometer update scenario.
	q := FromEuler(0, 0, float32(math.Pi/2))
	body := q.RotateVectorInverse(Vector3{1, 0, 0})
	if !almostEqual32(body.X, 0, 1e-3) || !almostEqual32(body.Y, -1, 1e-3) || !almostEqual32(body.Z, 0, 1e-3) {
		t.Errorf("body field = %+v, want (0,-1,0)", body)
	}
}

func TestVector3CrossAndDot(t *testing.T) {
	x := Vector3{1, 0, 0}
	y := Vector3{0, 1, 0}
	z := x.Cross(y)
	if z != (Vector3{0, 0, 1}) {
		t.Errorf("x cross y = %+v, want (0,0,1)", z)
	}
	if x.Dot(y) != 0 {
		t.Error("orthogonal vectors should dot to 0")
	}
}

func TestVector3Normalize(t *testing.T) {
	v := Vector3{3, 4, 0}.Normalize()
	if !almostEqual32(v.Norm(), 1, 1e-6) {
		t.Errorf("normalized norm = %v, want 1", v.Norm())
	}

	tiny := Vector3{1e-9, 0, 0}.Normalize()
	if tiny != (Vector3{1e-9, 0, 0}) {
		t.Error("Normalize of near-zero vector should return it unchanged")
	}
}

func TestDerivativeMatchesHalfProduct(t *testing.T) {
	q := IdentityQuaternion()
	omega := Vector3{0.1, 0.2, 0.3}
	d := q.Derivative(omega)
	want := q.Multiply(Quaternion{0, omega.X, omega.Y, omega.Z})
	if !almostEqual32(d.W, want.W*0.5, 1e-7) || !almostEqual32(d.X, want.X*0.5, 1e-7) {
		t.Errorf("Derivative() = %+v, want half of %+v", d, want)
	}
}
