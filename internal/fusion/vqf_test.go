package fusion

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ts = 0.01

var gravity = mgl32.Vec3{0, 0, 9.81}

func newVQF(t *testing.T) *VQF {
	t.Helper()
	v, err := New(ts, ts, ts, DefaultParams())
	require.NoError(t, err)
	return v
}

func assertQuat(t *testing.T, want, got mgl32.Quat, delta float64) {
	t.Helper()
	assert.InDelta(t, want.W, got.W, delta, "w")
	assert.InDelta(t, want.V[0], got.V[0], delta, "x")
	assert.InDelta(t, want.V[1], got.V[1], delta, "y")
	assert.InDelta(t, want.V[2], got.V[2], delta, "z")
}

func TestNew_RejectsInvalidInput(t *testing.T) {
	_, err := New(0, ts, ts, DefaultParams())
	assert.ErrorIs(t, err, ErrInvalidSampleTime)

	_, err = New(ts, ts, -1, DefaultParams())
	assert.ErrorIs(t, err, ErrInvalidSampleTime)

	p := DefaultParams()
	p.TauAcc = 0
	_, err = New(ts, ts, ts, p)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestNew_InitialState(t *testing.T) {
	v := newVQF(t)

	assert.Equal(t, mgl32.QuatIdent(), v.Quat3D())
	assert.Equal(t, mgl32.QuatIdent(), v.Quat6D())
	assert.Equal(t, mgl32.QuatIdent(), v.Quat9D())
	assert.False(t, v.RestDetected())
	assert.True(t, v.MagDistDetected())

	s := v.State()
	assert.Equal(t, float32(1), s.KMagInit)
	assert.Equal(t, float32(-1), s.MagCandidateNorm)
	assert.Equal(t, DefaultParams().MagMaxRejectionTime, s.MagRejectT)
}

func TestCoefficients(t *testing.T) {
	c := newVQF(t).Coefficients()

	assert.InDelta(t, 2500.0, c.BiasP0, 1e-9)
	assert.InDelta(t, 0.01, c.BiasV, 1e-9)
	// Params are float32; expectations are built from the same values.
	p := DefaultParams()
	pMotion := math.Pow(float64(p.BiasSigmaMotion)*100, 2)
	pRest := math.Pow(float64(p.BiasSigmaRest)*100, 2)
	assert.InEpsilon(t, pMotion*pMotion/c.BiasV+pMotion, c.BiasMotionW, 1e-9)
	assert.InEpsilon(t, c.BiasMotionW/float64(p.BiasVerticalForgettingFactor), c.BiasVerticalW, 1e-9)
	assert.InEpsilon(t, pRest*pRest/c.BiasV+pRest, c.BiasRestW, 1e-9)
	assert.InDelta(t, 1-math.Exp(-ts/9.0), c.KMag, 1e-7)
}

func TestUpdateGyr_SingleStep(t *testing.T) {
	for _, tc := range []struct {
		name string
		gyr  mgl32.Vec3
		want mgl32.Quat
	}{
		{"same", mgl32.Vec3{0.021, 0.021, 0.021}, mgl32.Quat{W: 1, V: mgl32.Vec3{0.000105, 0.000105, 0.000105}}},
		{"x", mgl32.Vec3{0.25, 0, 0}, mgl32.Quat{W: 0.9999999, V: mgl32.Vec3{0.00125, 0, 0}}},
		{"y", mgl32.Vec3{0, 0.25, 0}, mgl32.Quat{W: 0.9999999, V: mgl32.Vec3{0, 0.00125, 0}}},
		{"z", mgl32.Vec3{0, 0, 0.25}, mgl32.Quat{W: 0.9999999, V: mgl32.Vec3{0, 0, 0.00125}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v := newVQF(t)
			v.UpdateGyr(tc.gyr)
			assertQuat(t, tc.want, v.Quat3D(), 1e-6)
		})
	}
}

func TestUpdateGyr_ConstantRateIntegrates(t *testing.T) {
	v := newVQF(t)
	gyr := mgl32.Vec3{0.021, 0.021, 0.021}
	for i := 0; i < 10000; i++ {
		v.UpdateGyr(gyr)
	}

	// 100 s about the diagonal axis.
	angle := gyr.Len() * 100
	want := mgl32.QuatRotate(angle, gyr.Normalize())
	assertQuat(t, want, v.Quat3D(), 2e-3)
	assert.InDelta(t, 1.0, v.Quat3D().Len(), 1e-5)
}

func TestUpdateGyr_ZeroRateKeepsOrientation(t *testing.T) {
	v := newVQF(t)
	for i := 0; i < 100; i++ {
		v.UpdateGyr(mgl32.Vec3{})
	}
	assert.Equal(t, mgl32.QuatIdent(), v.Quat3D())
}

func TestUpdateAcc_ZeroVectorIsIgnored(t *testing.T) {
	v := newVQF(t)
	v.Update(mgl32.Vec3{0.1, 0, 0}, gravity)
	before := v.State()

	v.UpdateAcc(mgl32.Vec3{})
	assert.Equal(t, before, v.State())
}

func TestUpdateAcc_LevelsToGravity(t *testing.T) {
	v := newVQF(t)
	v.UpdateAcc(mgl32.Vec3{9.81, 0, 0})

	// The first sample is taken as is, so the sensor x axis must map to up.
	up := v.Quat6D().Rotate(mgl32.Vec3{1, 0, 0})
	assert.InDelta(t, 0, up[0], 1e-5)
	assert.InDelta(t, 0, up[1], 1e-5)
	assert.InDelta(t, 1, up[2], 1e-5)
	assertQuat(t, mgl32.Quat{W: 0.7071068, V: mgl32.Vec3{0, -0.7071068, 0}}, v.Quat6D(), 1e-5)
}

func TestUpdateAcc_UpsideDownHasNoNaN(t *testing.T) {
	v := newVQF(t)
	v.UpdateAcc(mgl32.Vec3{0, 0, -9.81})

	q := v.Quat6D()
	for _, c := range []float32{q.W, q.V[0], q.V[1], q.V[2]} {
		require.False(t, math.IsNaN(float64(c)))
	}
	up := q.Rotate(mgl32.Vec3{0, 0, -1})
	assert.InDelta(t, 1, up[2], 1e-5)
}

func TestRestDetection(t *testing.T) {
	v := newVQF(t)
	for i := 0; i < 140; i++ {
		v.Update(mgl32.Vec3{}, gravity)
	}
	assert.False(t, v.RestDetected(), "rest needs RestMinT of stillness")

	for i := 0; i < 60; i++ {
		v.Update(mgl32.Vec3{}, gravity)
	}
	assert.True(t, v.RestDetected())
	assertQuat(t, mgl32.QuatIdent(), v.Quat6D(), 1e-6)

	dev := v.RelativeRestDeviations()
	assert.Less(t, dev[0], float32(1))
	assert.Less(t, dev[1], float32(1))

	// A rotation well above the threshold ends rest immediately.
	v.Update(mgl32.Vec3{1, 0, 0}, gravity)
	assert.False(t, v.RestDetected())
}

func TestRestBiasEstimation(t *testing.T) {
	v := newVQF(t)
	bias := mgl32.Vec3{0.01, -0.005, 0.008}
	for i := 0; i < 3000; i++ {
		v.Update(bias, gravity)
	}
	require.True(t, v.RestDetected())

	est, sigma := v.BiasEstimate()
	assert.InDelta(t, bias[0], est[0], 1e-3)
	assert.InDelta(t, bias[1], est[1], 1e-3)
	assert.InDelta(t, bias[2], est[2], 1e-3)
	_, initial := newVQF(t).BiasEstimate()
	assert.Less(t, sigma, initial)
}

func TestMotionBiasEstimation(t *testing.T) {
	v := newVQF(t)
	bias := mgl32.Vec3{0.01, -0.005, 0}
	gyr := mgl32.Vec3{0, 0, 0.5}.Add(bias)

	// Turning about the vertical makes the horizontal bias observable.
	for i := 0; i < int(300/ts); i++ {
		v.Update(gyr, gravity)
	}
	require.False(t, v.RestDetected())

	est, _ := v.BiasEstimate()
	assert.InDelta(t, bias[0], est[0], 5e-4)
	assert.InDelta(t, bias[1], est[1], 5e-4)
	assert.InDelta(t, bias[2], est[2], 5e-4)
}

func TestBiasEstimate_Clipped(t *testing.T) {
	clip := mgl32.DegToRad(DefaultParams().BiasClip)
	for _, sign := range []float32{1, -1} {
		v := newVQF(t)
		gyr := mgl32.Vec3{sign * 0.1, 0, 0}
		v.SetBiasEstimate(gyr, 0.001)
		v.Update(gyr, gravity)

		est, _ := v.BiasEstimate()
		assert.InDelta(t, sign*clip, est[0], 1e-6)
		assert.InDelta(t, 0, est[1], 1e-3)
		assert.InDelta(t, 0, est[2], 1e-3)
	}
}

func TestBiasEstimate_RoundTrip(t *testing.T) {
	v := newVQF(t)
	_, sigma := v.BiasEstimate()
	assert.InDelta(t, mgl32.DegToRad(0.5), sigma, 1e-6)

	v.SetBiasEstimate(mgl32.Vec3{0.001, 0.002, 0.003}, 0.005)
	b, sigma := v.BiasEstimate()
	assert.Equal(t, mgl32.Vec3{0.001, 0.002, 0.003}, b)
	assert.InDelta(t, 0.005, sigma, 1e-6)

	// Sigma is capped at the initial uncertainty.
	v.SetBiasEstimate(b, 1)
	_, sigma = v.BiasEstimate()
	assert.InDelta(t, mgl32.DegToRad(0.5), sigma, 1e-6)
}

func TestUpdateMag_UnknownFieldStaysDisturbedWithoutMotion(t *testing.T) {
	v := newVQF(t)
	mag := mgl32.Vec3{20, 0, -40}
	for i := 0; i < 1000; i++ {
		v.Update9D(mgl32.Vec3{}, gravity, mag)
	}
	assert.True(t, v.MagDistDetected())
	norm, _ := v.MagRef()
	assert.Zero(t, norm)
}

func TestUpdateMag_KnownFieldIsAccepted(t *testing.T) {
	v := newVQF(t)
	mag := mgl32.Vec3{20, 0, -40}
	norm := mag.Len()
	v.SetMagRef(norm, float32(math.Asin(40/float64(norm))))

	for i := 0; i < 100; i++ {
		v.Update9D(mgl32.Vec3{}, gravity, mag)
	}
	assert.False(t, v.MagDistDetected())
	refNorm, _ := v.MagRef()
	assert.InDelta(t, norm, refNorm, 1e-3)
}

func TestUpdateMag_HeadingPointsNorth(t *testing.T) {
	v := newVQF(t)
	mag := mgl32.Vec3{20, 0, -40}
	for i := 0; i < 50; i++ {
		v.Update9D(mgl32.Vec3{}, gravity, mag)
	}

	assert.InDelta(t, math.Pi/2, v.Delta(), 1e-4)
	north := v.Quat9D().Rotate(mag)
	assert.InDelta(t, 0, north[0], 1e-3)
	assert.Greater(t, north[1], float32(0))

	// The 6D estimate is untouched by heading correction.
	assertQuat(t, mgl32.QuatIdent(), v.Quat6D(), 1e-6)
}

func TestUpdateMag_ZeroVectorIsIgnored(t *testing.T) {
	v := newVQF(t)
	before := v.State()
	v.UpdateMag(mgl32.Vec3{})
	assert.Equal(t, before, v.State())
}

func TestSetState_Replays(t *testing.T) {
	a := newVQF(t)
	gyr := mgl32.Vec3{0.3, -0.1, 0.2}
	acc := mgl32.Vec3{1, 0.5, 9.7}
	for i := 0; i < 200; i++ {
		a.Update(gyr, acc)
	}
	snap := a.State()

	b := newVQF(t)
	b.SetState(snap)
	for i := 0; i < 100; i++ {
		a.Update(gyr, acc)
		b.Update(gyr, acc)
	}
	assert.Equal(t, a.Quat6D(), b.Quat6D())
	assert.Equal(t, a.State().Bias, b.State().Bias)
}

func TestSetters(t *testing.T) {
	v := newVQF(t)

	v.SetTauMag(2)
	assert.Equal(t, float32(2), v.Params().TauMag)
	assert.InDelta(t, 1-math.Exp(-ts/2.0), v.Coefficients().KMag, 1e-7)

	for i := 0; i < 400; i++ {
		v.Update(mgl32.Vec3{}, mgl32.Vec3{0, 0.5, 9.8})
	}
	before := v.Quat6D()
	v.SetTauAcc(1)
	assert.Equal(t, float32(1), v.Params().TauAcc)
	v.Update(mgl32.Vec3{}, mgl32.Vec3{0, 0.5, 9.8})
	assertQuat(t, before, v.Quat6D(), 1e-4)

	v.SetRestBiasEstEnabled(false)
	assert.False(t, v.RestDetected())
	v.SetMagDistRejectionEnabled(false)
	assert.True(t, v.MagDistDetected())
	v.SetMotionBiasEstEnabled(false)
	assert.False(t, v.Params().MotionBiasEstEnabled)

	v.SetRestDetectionThresholds(4, 1)
	assert.Equal(t, float32(4), v.Params().RestThGyr)
	assert.Equal(t, float32(1), v.Params().RestThAcc)
}

func TestReset(t *testing.T) {
	v := newVQF(t)
	for i := 0; i < 300; i++ {
		v.Update9D(mgl32.Vec3{0.5, 0, 0}, gravity, mgl32.Vec3{1, 2, 3})
	}
	v.Reset()
	assert.Equal(t, newVQF(t).State(), v.State())
}
