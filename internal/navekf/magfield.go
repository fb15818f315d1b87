package navekf

import (
	"github.com/HANARO2024/polaris/pkg/spatial"
	"gonum.org/v1/gonum/stat"
)

// InitializeMagneticField derives the NED earth magnetic field reference
// from a batch of (magnetometer, accelerometer) sample pairs taken while
// the vehicle is stationary or in slow, gentle motion. It averages each
// component across the batch with gonum/stat, uses the mean accelerometer
// reading to recover the local down direction, and projects the mean
// magnetometer reading onto a down/east/north frame before rotating it into
// NED. The result is safe to hand directly to SetEarthMagneticField.
//
// On bad input — mismatched or empty sample slices, or a mean accelerometer
// reading too small to fix a down direction — it returns the default
// reference rather than failing.
func InitializeMagneticField(magBody, accelBody []spatial.Vector3) spatial.Vector3 {
	n := len(magBody)
	if n <= 0 || len(accelBody) != n {
		return InitializeDefaultMagneticField()
	}

	meanMag := meanVector3(magBody)
	meanAccel := meanVector3(accelBody)

	// Gravity points +Z (down) in NED; the body measures specific force
	// opposing gravity, so down is the negated mean accel reading.
	down := meanAccel.Scale(-1).Normalize()
	if down.Norm() < 0.5 {
		return InitializeDefaultMagneticField()
	}

	// East is an arbitrary orthogonalization against the body Y axis: true
	// north is unobservable from accel alone.
	east := down.Cross(spatial.Vector3{Y: 1}).Normalize()
	if east.Norm() < 0.5 {
		return InitializeDefaultMagneticField()
	}
	north := east.Cross(down).Normalize()
	east = north.Cross(down).Normalize()

	magDown := meanMag.Dot(down)
	magEast := meanMag.Dot(east)
	magNorth := meanMag.Dot(north)

	result := spatial.Vector3{X: magNorth, Y: magEast, Z: magDown}.Normalize()
	if result.Norm() < 0.5 {
		return InitializeDefaultMagneticField()
	}
	return result
}

// InitializeDefaultMagneticField returns DefaultEarthMagNED as a
// spatial.Vector3, for callers that have no calibration samples and accept
// the filter's built-in reference field.
func InitializeDefaultMagneticField() spatial.Vector3 {
	return spatial.Vector3{
		X: float32(DefaultEarthMagNED[0]),
		Y: float32(DefaultEarthMagNED[1]),
		Z: float32(DefaultEarthMagNED[2]),
	}
}

func meanVector3(samples []spatial.Vector3) spatial.Vector3 {
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	zs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = float64(s.X)
		ys[i] = float64(s.Y)
		zs[i] = float64(s.Z)
	}
	return spatial.Vector3{
		X: float32(stat.Mean(xs, nil)),
		Y: float32(stat.Mean(ys, nil)),
		Z: float32(stat.Mean(zs, nil)),
	}
}
