// Package navekf implements a 16-state Extended Kalman Filter for strapdown
// inertial navigation: it fuses rate-gyro and accelerometer samples with GPS,
// barometric altitude and magnetometer aiding to produce a NED position,
// velocity, attitude and inertial-sensor-bias estimate.
//
// The filter is single-threaded cooperative: Predict and the Update*
// methods are meant to be called in strict arrival order by one goroutine.
// It keeps no internal state machine beyond Initialized/Uninitialized and
// performs no I/O, allocation beyond its own fixed-size matrices, or
// background work of its own.
package navekf

import (
	"github.com/HANARO2024/polaris/pkg/matrix"
	"github.com/HANARO2024/polaris/pkg/spatial"
	"github.com/sirupsen/logrus"
)

// State vector layout. x is conceptually 16x1: position, velocity, attitude
// quaternion (w,x,y,z, body->NED), gyro bias, accel bias.
const (
	idxPX = iota
	idxPY
	idxPZ
	idxVX
	idxVY
	idxVZ
	idxQW
	idxQX
	idxQY
	idxQZ
	idxBGX
	idxBGY
	idxBGZ
	idxBAX
	idxBAY
	idxBAZ
	StateDim
)

// DefaultGravity is the nominal gravitational acceleration magnitude, acting
// along +Z in NED.
const DefaultGravity = 9.80665

// quaternionNormEpsilon is the smallest quaternion norm the filter will
// divide by; below it, renormalize substitutes the identity attitude.
const quaternionNormEpsilon = 1e-6

// DefaultEarthMagNED is the Seoul-latitude test-bench earth magnetic field
// reference in NED, used until the caller supplies a calibrated one via
// SetEarthMagneticField or InitializeMagneticField.
var DefaultEarthMagNED = [3]float64{0.29, -0.05, 0.42}

// Filter holds the EKF's full state: the estimate x, its covariance P, the
// process and measurement noise models, and the reference constants the
// process/measurement models are built from. It owns every matrix it
// touches; getters return copies, never internal references.
type Filter struct {
	x [StateDim]float64
	P matrix.Matrix // 16x16

	Q     matrix.Matrix // 16x16 process noise, diagonal
	RGPS  matrix.Matrix // 6x6 measurement noise: position then velocity
	RBaro matrix.Matrix // 1x1
	RMag  matrix.Matrix // 3x3

	gravity     float64
	earthMagNED [3]float64

	initialized bool

	// degradedAttitude latches true the first time renormalization had to
	// fall back to the identity quaternion. It is cleared on Reset.
	degradedAttitude bool

	logger *logrus.Logger
}

// New allocates a filter with defaults applied and initialized == false. No
// operation except SetInitialState, Reset, or a noise/earth-field setter may
// mutate state before SetInitialState is called.
func New() *Filter {
	f := &Filter{
		gravity:     DefaultGravity,
		earthMagNED: DefaultEarthMagNED,
	}
	f.applyDefaults()
	return f
}

func (f *Filter) applyDefaults() {
	f.x = [StateDim]float64{}
	f.x[idxQW] = 1 // identity attitude

	f.P = matrix.DiagonalVector([]float64{
		1, 1, 1, // position
		1, 1, 1, // velocity
		0.01, 0.01, 0.01, 0.01, // attitude quaternion
		0.001, 0.001, 0.001, // gyro bias
		0.01, 0.01, 0.01, // accel bias
	})

	f.setProcessNoiseDefaults()
	f.setGPSNoiseDefaults()
	f.setBaroNoiseDefaults()
	f.setMagNoiseDefaults()

	f.initialized = false
	f.degradedAttitude = false
}

func (f *Filter) setProcessNoiseDefaults() {
	f.SetProcessNoise(0.01, 0.1, 0.001, 1e-4, 1e-3)
}

func (f *Filter) setGPSNoiseDefaults() {
	f.SetGPSNoise(1.5, 0.5)
}

func (f *Filter) setBaroNoiseDefaults() {
	f.SetBaroNoise(0.5)
}

func (f *Filter) setMagNoiseDefaults() {
	f.SetMagNoise(0.05)
}

// SetLogger attaches a structured logger used to report degraded-attitude
// recoveries; it is not required for correct operation. A nil logger
// disables logging.
func (f *Filter) SetLogger(logger *logrus.Logger) {
	f.logger = logger
}

// Initialized reports whether SetInitialState has been called since
// construction or the last Reset.
func (f *Filter) Initialized() bool {
	return f.initialized
}

// SetInitialState writes the initial position, velocity and attitude,
// widens the covariance to a larger default, and marks the filter
// initialized. It may be called at any time, including to re-anchor an
// already-initialized filter.
func (f *Filter) SetInitialState(pos, vel spatial.Vector3, q spatial.Quaternion) {
	f.x[idxPX], f.x[idxPY], f.x[idxPZ] = float64(pos.X), float64(pos.Y), float64(pos.Z)
	f.x[idxVX], f.x[idxVY], f.x[idxVZ] = float64(vel.X), float64(vel.Y), float64(vel.Z)

	qn := q.Normalize()
	f.x[idxQW], f.x[idxQX], f.x[idxQY], f.x[idxQZ] = float64(qn.W), float64(qn.X), float64(qn.Y), float64(qn.Z)

	f.P = matrix.DiagonalVector([]float64{
		25, 25, 25,
		9, 9, 9,
		0.1, 0.1, 0.1, 0.1,
		0.01, 0.01, 0.01,
		0.1, 0.1, 0.1,
	})

	f.initialized = true
}

// Reset restores default noise models and an identity attitude, and clears
// the initialized flag. All subsequent predict/update calls are no-ops
// until SetInitialState is called again.
func (f *Filter) Reset() {
	f.applyDefaults()
}

// SetProcessNoise fills Q's 16 diagonal entries by squaring the supplied
// per-second standard deviations, one per state group.
func (f *Filter) SetProcessNoise(sigmaPos, sigmaVel, sigmaAtt, sigmaGyroBias, sigmaAccelBias float64) {
	f.Q = matrix.DiagonalVector([]float64{
		sq(sigmaPos), sq(sigmaPos), sq(sigmaPos),
		sq(sigmaVel), sq(sigmaVel), sq(sigmaVel),
		sq(sigmaAtt), sq(sigmaAtt), sq(sigmaAtt), sq(sigmaAtt),
		sq(sigmaGyroBias), sq(sigmaGyroBias), sq(sigmaGyroBias),
		sq(sigmaAccelBias), sq(sigmaAccelBias), sq(sigmaAccelBias),
	})
}

// SetGPSNoise sets R_gps: three position variances followed by three
// velocity variances, from the supplied standard deviations.
func (f *Filter) SetGPSNoise(sigmaPos, sigmaVel float64) {
	f.RGPS = matrix.DiagonalVector([]float64{
		sq(sigmaPos), sq(sigmaPos), sq(sigmaPos),
		sq(sigmaVel), sq(sigmaVel), sq(sigmaVel),
	})
}

// SetBaroNoise sets the scalar R_baro variance on NED-z.
func (f *Filter) SetBaroNoise(sigma float64) {
	f.RBaro = matrix.DiagonalVector([]float64{sq(sigma)})
}

// SetMagNoise sets R_mag: three body-frame field variances.
func (f *Filter) SetMagNoise(sigma float64) {
	f.RMag = matrix.DiagonalVector([]float64{sq(sigma), sq(sigma), sq(sigma)})
}

// SetEarthMagneticField replaces the NED earth-field reference used by
// UpdateMag.
func (f *Filter) SetEarthMagneticField(v spatial.Vector3) {
	f.earthMagNED = [3]float64{float64(v.X), float64(v.Y), float64(v.Z)}
}

// Position returns the current NED position estimate.
func (f *Filter) Position() spatial.Vector3 {
	if !f.initialized {
		return spatial.Vector3{}
	}
	return spatial.Vector3{X: float32(f.x[idxPX]), Y: float32(f.x[idxPY]), Z: float32(f.x[idxPZ])}
}

// Velocity returns the current NED velocity estimate.
func (f *Filter) Velocity() spatial.Vector3 {
	if !f.initialized {
		return spatial.Vector3{}
	}
	return spatial.Vector3{X: float32(f.x[idxVX]), Y: float32(f.x[idxVY]), Z: float32(f.x[idxVZ])}
}

// Attitude returns the current body->NED attitude quaternion.
func (f *Filter) Attitude() spatial.Quaternion {
	if !f.initialized {
		return spatial.IdentityQuaternion()
	}
	return spatial.Quaternion{
		W: float32(f.x[idxQW]), X: float32(f.x[idxQX]), Y: float32(f.x[idxQY]), Z: float32(f.x[idxQZ]),
	}
}

// Euler returns (roll, pitch, yaw) in radians, ZYX convention.
func (f *Filter) Euler() (roll, pitch, yaw float64) {
	if !f.initialized {
		return 0, 0, 0
	}
	return f.currentQuat().toEuler()
}

// GyroBias returns the current body-frame gyro bias estimate.
func (f *Filter) GyroBias() spatial.Vector3 {
	if !f.initialized {
		return spatial.Vector3{}
	}
	return spatial.Vector3{X: float32(f.x[idxBGX]), Y: float32(f.x[idxBGY]), Z: float32(f.x[idxBGZ])}
}

// AccelBias returns the current body-frame accelerometer bias estimate.
func (f *Filter) AccelBias() spatial.Vector3 {
	if !f.initialized {
		return spatial.Vector3{}
	}
	return spatial.Vector3{X: float32(f.x[idxBAX]), Y: float32(f.x[idxBAY]), Z: float32(f.x[idxBAZ])}
}

// Covariance returns a copy of the current state covariance.
func (f *Filter) Covariance() matrix.Matrix {
	return matrix.Clone(f.P)
}

// DegradedAttitude reports whether a prior renormalization had to fall back
// to the identity quaternion because the pre-normalization norm collapsed
// below quaternionNormEpsilon.
func (f *Filter) DegradedAttitude() bool {
	return f.degradedAttitude
}

func (f *Filter) currentQuat() quat64 {
	return quat64{w: f.x[idxQW], x: f.x[idxQX], y: f.x[idxQY], z: f.x[idxQZ]}
}

func (f *Filter) writeQuat(q quat64) {
	f.x[idxQW], f.x[idxQX], f.x[idxQY], f.x[idxQZ] = q.w, q.x, q.y, q.z
}

// renormalizeAttitude normalizes the quaternion sub-state in place. If its
// pre-normalization norm is below quaternionNormEpsilon it substitutes the
// identity and latches degradedAttitude rather than reporting an error: per
// the filter's error-handling policy this is a last-resort recovery, since a
// collapsed quaternion norm almost always reflects a problem upstream.
func (f *Filter) renormalizeAttitude() {
	q := f.currentQuat()
	if q.norm() < quaternionNormEpsilon {
		f.writeQuat(identityQuat())
		f.degradedAttitude = true
		if f.logger != nil {
			f.logger.Warn("navekf: quaternion norm collapsed below epsilon, substituting identity attitude")
		}
		return
	}
	f.writeQuat(q.normalize())
}

func sq(v float64) float64 { return v * v }
