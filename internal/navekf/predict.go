package navekf

import (
	"github.com/HANARO2024/polaris/pkg/matrix"
	"github.com/HANARO2024/polaris/pkg/spatial"
)

// gravityNED is the gravity vector acting in the NED frame: down is +Z, so
// gravity points along +Z with the filter's configured magnitude.
func (f *Filter) gravityNED() [3]float64 {
	return [3]float64{0, 0, f.gravity}
}

// Predict advances the filter by dt seconds using a gyro sample (rad/s,
// body frame) and an accelerometer sample (m/s^2, body frame, specific
// force). It returns false without mutating state if the filter has not
// been initialized or dt is not strictly positive.
func (f *Filter) Predict(gyro, accel spatial.Vector3, dt float64) bool {
	if !f.initialized || dt <= 0 {
		return false
	}

	f.renormalizeAttitude()
	q := f.currentQuat()

	omega := [3]float64{
		float64(gyro.X) - f.x[idxBGX],
		float64(gyro.Y) - f.x[idxBGY],
		float64(gyro.Z) - f.x[idxBGZ],
	}

	qdot := q.derivative(omega)
	qNew := quat64{
		w: q.w + qdot.w*dt,
		x: q.x + qdot.x*dt,
		y: q.y + qdot.y*dt,
		z: q.z + qdot.z*dt,
	}.normalize()

	accelBody := [3]float64{
		float64(accel.X) - f.x[idxBAX],
		float64(accel.Y) - f.x[idxBAY],
		float64(accel.Z) - f.x[idxBAZ],
	}
	// Specific force plus gravity recovers true inertial acceleration: a
	// stationary vehicle reads f = (0,0,-g) and should integrate to zero.
	specificForceNED := q.rotate(accelBody)
	g := f.gravityNED()

	accelTrueNED := [3]float64{
		specificForceNED[0] + g[0],
		specificForceNED[1] + g[1],
		specificForceNED[2] + g[2],
	}

	vel := [3]float64{f.x[idxVX], f.x[idxVY], f.x[idxVZ]}
	pos := [3]float64{f.x[idxPX], f.x[idxPY], f.x[idxPZ]}

	velNew := [3]float64{
		vel[0] + accelTrueNED[0]*dt,
		vel[1] + accelTrueNED[1]*dt,
		vel[2] + accelTrueNED[2]*dt,
	}
	// Position uses the just-updated velocity, not the pre-step value.
	posNew := [3]float64{
		pos[0] + velNew[0]*dt,
		pos[1] + velNew[1]*dt,
		pos[2] + velNew[2]*dt,
	}

	Fjac := f.stateTransitionJacobian(q, dt)

	f.x[idxPX], f.x[idxPY], f.x[idxPZ] = posNew[0], posNew[1], posNew[2]
	f.x[idxVX], f.x[idxVY], f.x[idxVZ] = velNew[0], velNew[1], velNew[2]
	f.writeQuat(qNew)
	// Biases follow a random walk: no deterministic update, only the
	// process-noise contribution to their covariance below.

	fp, _ := matrix.Mul(Fjac, f.P)
	fpft, _ := matrix.Mul(fp, matrix.Transpose(Fjac))
	qdt := matrix.Scale(f.Q, dt)
	pNew, ok := matrix.Add(fpft, qdt)
	if !ok {
		return false
	}
	f.P = matrix.Symmetrize(pNew)

	return true
}

// stateTransitionJacobian builds F = d(x_new)/d(x) linearized about the
// pre-step quaternion q, with the position/velocity/quaternion/bias blocks
// that actually depend on the state; all other off-diagonal blocks are zero,
// matching a first-order strapdown mechanization.
func (f *Filter) stateTransitionJacobian(q quat64, dt float64) matrix.Matrix {
	F := matrix.Identity(StateDim)

	// d(position)/d(velocity) = I*dt
	posVel := matrix.Scale(matrix.Identity(3), dt)
	F.SetBlock(idxPX, idxVX, posVel)

	// d(velocity)/d(accelBias) = -R(q)*dt
	dcm := q.dcm()
	var negRdt matrix.Matrix = matrix.New(3, 3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			negRdt.Set(i, j, -dcm[i][j]*dt)
		}
	}
	F.SetBlock(idxVX, idxBAX, negRdt)

	// d(quaternion)/d(gyroBias), 4x3, scaled by dt:
	//   w: [-qx, -qy, -qz]/2
	//   x: [+qw, -qz, +qy]/2
	//   y: [+qz, +qw, -qx]/2
	//   z: [-qy, +qx, +qw]/2
	xi := matrix.New(4, 3)
	xi.Set(0, 0, -q.x)
	xi.Set(0, 1, -q.y)
	xi.Set(0, 2, -q.z)
	xi.Set(1, 0, q.w)
	xi.Set(1, 1, -q.z)
	xi.Set(1, 2, q.y)
	xi.Set(2, 0, q.z)
	xi.Set(2, 1, q.w)
	xi.Set(2, 2, -q.x)
	xi.Set(3, 0, -q.y)
	xi.Set(3, 1, q.x)
	xi.Set(3, 2, q.w)
	qBias := matrix.Scale(xi, 0.5*dt)
	F.SetBlock(idxQW, idxBGX, qBias)

	return F
}
