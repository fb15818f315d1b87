package navekf

import (
	"testing"

	"github.com/HANARO2024/polaris/pkg/spatial"
	"github.com/stretchr/testify/assert"
)

func TestPredictRejectsUninitializedFilter(t *testing.T) {
	f := New()
	ok := f.Predict(spatial.Vector3{}, spatial.Vector3{Z: -DefaultGravity}, 0.01)
	assert.False(t, ok)
}

func TestPredictRejectsNonPositiveDt(t *testing.T) {
	f := New()
	f.SetInitialState(spatial.Vector3{}, spatial.Vector3{}, spatial.IdentityQuaternion())

	assert.False(t, f.Predict(spatial.Vector3{}, spatial.Vector3{}, 0))
	assert.False(t, f.Predict(spatial.Vector3{}, spatial.Vector3{}, -0.01))
}

// TestStationaryPredictHoldsPositionAndBias exercises the stationary-bias
// scenario: a level, motionless vehicle reporting specific force (0,0,-g)
// and zero rotation should not drift in position, velocity or bias over
// many steps.
func TestStationaryPredictHoldsPositionAndBias(t *testing.T) {
	f := New()
	f.SetInitialState(spatial.Vector3{}, spatial.Vector3{}, spatial.IdentityQuaternion())

	accel := spatial.Vector3{Z: -float32(DefaultGravity)}
	for i := 0; i < 200; i++ {
		ok := f.Predict(spatial.Vector3{}, accel, 0.01)
		assert.True(t, ok)
	}

	pos := f.Position()
	vel := f.Velocity()
	assert.InDelta(t, 0, float64(pos.X), 1e-3)
	assert.InDelta(t, 0, float64(pos.Y), 1e-3)
	assert.InDelta(t, 0, float64(pos.Z), 1e-3)
	assert.InDelta(t, 0, float64(vel.X), 1e-3)
	assert.InDelta(t, 0, float64(vel.Y), 1e-3)
	assert.InDelta(t, 0, float64(vel.Z), 1e-3)
	assert.Equal(t, spatial.Vector3{}, f.GyroBias())
	assert.Equal(t, spatial.Vector3{}, f.AccelBias())
}

// TestPureRotationPreservesQuaternionNorm exercises the pure-rotation
// scenario: integrating a constant body rate should keep the attitude
// quaternion at unit norm throughout, never merely at the end.
func TestPureRotationPreservesQuaternionNorm(t *testing.T) {
	f := New()
	f.SetInitialState(spatial.Vector3{}, spatial.Vector3{}, spatial.IdentityQuaternion())

	gyro := spatial.Vector3{Z: 0.5}
	accel := spatial.Vector3{Z: -float32(DefaultGravity)}
	for i := 0; i < 500; i++ {
		assert.True(t, f.Predict(gyro, accel, 0.002))
		q := f.currentQuat()
		n := q.norm()
		assert.InDelta(t, 1.0, n, 1e-6)
	}
}

func TestPredictPropagatesCovarianceForward(t *testing.T) {
	f := New()
	f.SetInitialState(spatial.Vector3{}, spatial.Vector3{}, spatial.IdentityQuaternion())

	before := f.Covariance()
	assert.True(t, f.Predict(spatial.Vector3{}, spatial.Vector3{Z: -float32(DefaultGravity)}, 0.1))
	after := f.Covariance()

	// Position variance only grows under pure prediction (no aiding yet).
	assert.Greater(t, after.Get(idxPX, idxPX), before.Get(idxPX, idxPX)-1e-9)
}
