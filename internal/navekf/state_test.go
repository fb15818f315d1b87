package navekf

import (
	"math"
	"testing"

	"github.com/HANARO2024/polaris/pkg/spatial"
	"github.com/stretchr/testify/assert"
)

func TestNewFilterIsUninitialized(t *testing.T) {
	f := New()
	assert.False(t, f.Initialized())
	assert.Equal(t, spatial.Vector3{}, f.Position())
	assert.Equal(t, spatial.IdentityQuaternion(), f.Attitude())
}

func TestSetInitialStateMarksInitialized(t *testing.T) {
	f := New()
	f.SetInitialState(spatial.Vector3{X: 1, Y: 2, Z: 3}, spatial.Vector3{}, spatial.IdentityQuaternion())

	assert.True(t, f.Initialized())
	assert.Equal(t, spatial.Vector3{X: 1, Y: 2, Z: 3}, f.Position())
}

func TestResetClearsInitializedAndBias(t *testing.T) {
	f := New()
	f.SetInitialState(spatial.Vector3{X: 5, Y: 5, Z: 5}, spatial.Vector3{}, spatial.IdentityQuaternion())
	f.Reset()

	assert.False(t, f.Initialized())
	assert.Equal(t, spatial.Vector3{}, f.GyroBias())
}

func TestCovarianceStaysSymmetricAfterInit(t *testing.T) {
	f := New()
	f.SetInitialState(spatial.Vector3{}, spatial.Vector3{}, spatial.IdentityQuaternion())

	P := f.Covariance()
	for i := 0; i < StateDim; i++ {
		for j := 0; j < StateDim; j++ {
			assert.InDelta(t, P.Get(i, j), P.Get(j, i), 1e-12)
		}
	}
}

func TestRenormalizeAttitudeFallsBackToIdentityOnCollapse(t *testing.T) {
	f := New()
	f.SetInitialState(spatial.Vector3{}, spatial.Vector3{}, spatial.IdentityQuaternion())
	f.x[idxQW], f.x[idxQX], f.x[idxQY], f.x[idxQZ] = 1e-9, 1e-9, 1e-9, 1e-9

	f.renormalizeAttitude()

	assert.True(t, f.DegradedAttitude())
	q := f.Attitude()
	assert.InDelta(t, 1.0, float64(q.W), 1e-9)
}

func TestRenormalizeAttitudePreservesUnitNorm(t *testing.T) {
	f := New()
	f.SetInitialState(spatial.Vector3{}, spatial.Vector3{}, spatial.IdentityQuaternion())
	f.x[idxQW], f.x[idxQX], f.x[idxQY], f.x[idxQZ] = 2, 0, 0, 0

	f.renormalizeAttitude()

	q := f.currentQuat()
	n := math.Sqrt(q.w*q.w + q.x*q.x + q.y*q.y + q.z*q.z)
	assert.InDelta(t, 1.0, n, 1e-9)
	assert.False(t, f.DegradedAttitude())
}

func TestSetProcessNoiseSquaresSigmas(t *testing.T) {
	f := New()
	f.SetProcessNoise(0.1, 0.2, 0.3, 0.4, 0.5)
	assert.InDelta(t, 0.01, f.Q.Get(idxPX, idxPX), 1e-12)
	assert.InDelta(t, 0.04, f.Q.Get(idxVX, idxVX), 1e-12)
	assert.InDelta(t, 0.16, f.Q.Get(idxBGX, idxBGX), 1e-12)
}
