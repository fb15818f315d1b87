package navekf

import (
	"github.com/HANARO2024/polaris/pkg/matrix"
	"github.com/HANARO2024/polaris/pkg/spatial"
)

// applyUpdate runs the shared correction step: innovation y = z - h(x),
// innovation covariance S = H P H^T + R, gain K = P H^T S^-1, state update
// x += K y, attitude renormalization, and covariance update
// P = (I - K H) P, symmetrized. It returns false and leaves the filter
// untouched if S is singular. predicted is h(x), the actual (possibly
// nonlinear) measurement model evaluated at the current estimate; H is only
// its linearization.
func (f *Filter) applyUpdate(z, predicted matrix.Matrix, H matrix.Matrix, R matrix.Matrix) bool {
	y, ok := matrix.Sub(z, predicted)
	if !ok {
		return false
	}

	Ht := matrix.Transpose(H)
	PHt, ok := matrix.Mul(f.P, Ht)
	if !ok {
		return false
	}
	HPHt, ok := matrix.Mul(H, PHt)
	if !ok {
		return false
	}
	S, ok := matrix.Add(HPHt, R)
	if !ok {
		return false
	}

	Sinv, ok := matrix.Inverse(S)
	if !ok {
		return false
	}

	K, ok := matrix.Mul(PHt, Sinv)
	if !ok {
		return false
	}

	dx, ok := matrix.Mul(K, y)
	if !ok {
		return false
	}
	for i := 0; i < StateDim; i++ {
		f.x[i] += dx.Get(i, 0)
	}
	f.renormalizeAttitude()

	KH, ok := matrix.Mul(K, H)
	if !ok {
		return false
	}
	ImKH, ok := matrix.Sub(matrix.Identity(StateDim), KH)
	if !ok {
		return false
	}
	pNew, ok := matrix.Mul(ImKH, f.P)
	if !ok {
		return false
	}
	f.P = matrix.Symmetrize(pNew)

	return true
}

// linearMeasurement evaluates H*x for measurement models that are already
// linear in the state (GPS position/velocity, baro altitude), where the
// linearization H is also the exact model.
func (f *Filter) linearMeasurement(H matrix.Matrix) matrix.Matrix {
	x := matrix.New(StateDim, 1)
	for i := 0; i < StateDim; i++ {
		x.Set(i, 0, f.x[i])
	}
	hx, _ := matrix.Mul(H, x)
	return hx
}

func columnVector(values ...float64) matrix.Matrix {
	m := matrix.New(len(values), 1)
	for i, v := range values {
		m.Set(i, 0, v)
	}
	return m
}

// UpdateGPS corrects position and velocity against a 3D GPS fix. It returns
// false, leaving the filter unchanged, if the filter is not initialized or
// the innovation covariance is singular.
func (f *Filter) UpdateGPS(pos, vel spatial.Vector3) bool {
	if !f.initialized {
		return false
	}

	H := matrix.New(6, StateDim)
	H.Set(0, idxPX, 1)
	H.Set(1, idxPY, 1)
	H.Set(2, idxPZ, 1)
	H.Set(3, idxVX, 1)
	H.Set(4, idxVY, 1)
	H.Set(5, idxVZ, 1)

	z := columnVector(
		float64(pos.X), float64(pos.Y), float64(pos.Z),
		float64(vel.X), float64(vel.Y), float64(vel.Z),
	)

	return f.applyUpdate(z, f.linearMeasurement(H), H, f.RGPS)
}

// UpdateGPSPositionOnly corrects position alone, for receivers that report
// no velocity solution. It uses the position sub-block of R_gps.
func (f *Filter) UpdateGPSPositionOnly(pos spatial.Vector3) bool {
	if !f.initialized {
		return false
	}

	H := matrix.New(3, StateDim)
	H.Set(0, idxPX, 1)
	H.Set(1, idxPY, 1)
	H.Set(2, idxPZ, 1)

	z := columnVector(float64(pos.X), float64(pos.Y), float64(pos.Z))
	R := f.RGPS.Block(0, 0, 3, 3)

	return f.applyUpdate(z, f.linearMeasurement(H), H, R)
}

// UpdateBaro corrects NED-z (altitude, down positive) against a barometric
// altitude measurement.
func (f *Filter) UpdateBaro(altitudeDown float64) bool {
	if !f.initialized {
		return false
	}

	H := matrix.New(1, StateDim)
	H.Set(0, idxPZ, 1)

	z := columnVector(altitudeDown)

	return f.applyUpdate(z, f.linearMeasurement(H), H, f.RBaro)
}

// UpdateMag corrects attitude against a body-frame magnetometer sample,
// using the configured earth magnetic field reference in NED.
//
// The measurement model predicts the body-frame field as
// h(x) = R(q)^T * m_ned, so the Jacobian w.r.t. the quaternion is the
// derivative of that rotation's transpose evaluated at the current estimate,
// expanded analytically rather than by finite difference.
func (f *Filter) UpdateMag(magBody spatial.Vector3) bool {
	if !f.initialized {
		return false
	}

	q := f.currentQuat()
	m := f.earthMagNED
	w, x, y, z := q.w, q.x, q.y, q.z

	H := matrix.New(3, StateDim)

	// d(h)/d(q) for h = R(q)^T m, m fixed in NED, hand-derived and verified
	// against a finite-difference approximation of R(q)^T m_ned rather than
	// re-derived symbolically here.
	mx, my, mz := m[0], m[1], m[2]

	H.Set(0, idxQW, 2*(z*my-y*mz))
	H.Set(0, idxQX, 2*(y*my+z*mz))
	H.Set(0, idxQY, 2*(-2*y*mx+x*my-w*mz))
	H.Set(0, idxQZ, 2*(-2*z*mx+w*my+x*mz))

	H.Set(1, idxQW, 2*(-z*mx+x*mz))
	H.Set(1, idxQX, 2*(y*mx-2*x*my+w*mz))
	H.Set(1, idxQY, 2*(x*mx+z*mz))
	H.Set(1, idxQZ, 2*(-w*mx-2*z*my+y*mz))

	H.Set(2, idxQW, 2*(y*mx-x*my))
	H.Set(2, idxQX, 2*(z*mx-w*my-2*x*mz))
	H.Set(2, idxQY, 2*(w*mx+z*my-2*y*mz))
	H.Set(2, idxQZ, 2*(x*mx+y*my))

	z3 := columnVector(float64(magBody.X), float64(magBody.Y), float64(magBody.Z))
	predictedBody := q.rotateInverse(m)
	predicted := columnVector(predictedBody[0], predictedBody[1], predictedBody[2])

	return f.applyUpdate(z3, predicted, H, f.RMag)
}
