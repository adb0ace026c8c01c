// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fusion estimates sensor orientation from gyroscope, accelerometer
// and magnetometer samples with the VQF algorithm.
//
// The estimate is split in three stages: strapdown gyroscope integration
// (Quat3D), inclination correction from gravity (Quat6D) and heading
// correction from the magnetic field (Quat9D). Gyroscope bias is estimated
// with a small Kalman filter both at rest and during motion. The earth frame
// is z-up: x east, y north.
package fusion

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/body_tracker/internal/filter"
)

// axisEpsilon guards normalization of vectors used as rotation axes.
const axisEpsilon = 1e-6

var (
	// ErrInvalidSampleTime is returned by New for non-positive sample periods.
	ErrInvalidSampleTime = errors.New("fusion: sample time must be positive")
	// ErrInvalidParams is returned by New for unusable filter time constants.
	ErrInvalidParams = errors.New("fusion: invalid parameters")
)

// State is the complete mutable state of a VQF instance. It is a plain value:
// a copy can be restored later with SetState.
type State struct {
	GyrQuat mgl32.Quat
	AccQuat mgl32.Quat
	// Delta is the heading offset (rad) between the 6D and 9D frames.
	Delta float32

	RestDetected    bool
	MagDistDetected bool

	LastAccLp              mgl32.Vec3
	AccLp                  filter.LowPass
	LastAccCorrAngularRate float32

	KMagInit               float32
	LastMagDisAngle        float32
	LastMagCorrAngularRate float32

	// Bias is the gyroscope bias estimate (rad/s).
	Bias mgl32.Vec3
	// BiasP is the row-major bias covariance in (0.01 °/s)².
	BiasP [9]float64

	MotionBiasEstRLp    filter.LowPass
	MotionBiasEstBiasLp filter.LowPass

	RestLastSquaredDeviations [2]float32
	RestT                     float32
	RestLastGyrLp             mgl32.Vec3
	RestGyrLp                 filter.LowPass
	RestLastAccLp             mgl32.Vec3
	RestAccLp                 filter.LowPass

	MagRefNorm       float32
	MagRefDip        float32
	MagUndisturbedT  float32
	MagRejectT       float32
	MagCandidateNorm float32
	MagCandidateDip  float32
	MagCandidateT    float32
	MagNormDip       [2]float32
	MagNormDipLp     filter.LowPass
}

// VQF is a single-sensor orientation estimator. It is not safe for concurrent
// use; each tracker owns its instance.
type VQF struct {
	params Params
	coeffs Coefficients
	state  State
}

// New creates an estimator for the given sample periods (s). Use the same
// period three times when all sensors are sampled together.
func New(gyrTs, accTs, magTs float32, params Params) (*VQF, error) {
	if !(gyrTs > 0) || !(accTs > 0) || !(magTs > 0) {
		return nil, fmt.Errorf("%w: gyr=%v acc=%v mag=%v", ErrInvalidSampleTime, gyrTs, accTs, magTs)
	}
	if !(params.TauAcc > 0) || !(params.RestFilterTau > 0) {
		return nil, fmt.Errorf("%w: tauAcc=%v restFilterTau=%v", ErrInvalidParams, params.TauAcc, params.RestFilterTau)
	}
	v := &VQF{params: params}
	v.setup(gyrTs, accTs, magTs)
	v.Reset()
	return v, nil
}

func (v *VQF) setup(gyrTs, accTs, magTs float32) {
	p := v.params
	c := &v.coeffs
	c.GyrTs, c.AccTs, c.MagTs = gyrTs, accTs, magTs

	c.AccLpB, c.AccLpA = filter.Coefficients(float64(p.TauAcc), float64(accTs))
	c.KMag = float32(filter.GainFromTau(float64(p.TauMag), float64(magTs)))

	c.BiasP0 = square(float64(p.BiasSigmaInit) * 100)
	// System noise: uncertainty grows from 0 to 0.1 °/s within BiasForgettingTime.
	c.BiasV = square(0.1*100) * float64(accTs) / float64(p.BiasForgettingTime)

	pMotion := square(float64(p.BiasSigmaMotion) * 100)
	c.BiasMotionW = square(pMotion)/c.BiasV + pMotion
	c.BiasVerticalW = c.BiasMotionW / math.Max(float64(p.BiasVerticalForgettingFactor), 1e-10)

	pRest := square(float64(p.BiasSigmaRest) * 100)
	c.BiasRestW = square(pRest)/c.BiasV + pRest

	c.RestGyrLpB, c.RestGyrLpA = filter.Coefficients(float64(p.RestFilterTau), float64(gyrTs))
	c.RestAccLpB, c.RestAccLpA = filter.Coefficients(float64(p.RestFilterTau), float64(accTs))

	c.KMagRef = float32(filter.GainFromTau(float64(p.MagRefTau), float64(magTs)))
	if p.MagCurrentTau > 0 {
		c.MagNormDipLpB, c.MagNormDipLpA = filter.Coefficients(float64(p.MagCurrentTau), float64(magTs))
	}
}

// Reset returns the estimator to its initial state. Parameters and
// coefficients are kept.
func (v *VQF) Reset() {
	p, c := v.params, v.coeffs
	v.state = State{
		GyrQuat:         mgl32.QuatIdent(),
		AccQuat:         mgl32.QuatIdent(),
		MagDistDetected: true,
		AccLp:           filter.NewLowPass(float64(p.TauAcc), float64(c.AccTs), 3),
		KMagInit:        1,
	}
	v.resetBiasCovariance(c.BiasP0)
	v.resetMotionBias()
	v.resetRest()
	v.resetMag()
}

func (v *VQF) resetBiasCovariance(p float64) {
	v.state.BiasP = [9]float64{p, 0, 0, 0, p, 0, 0, 0, p}
}

func (v *VQF) resetMotionBias() {
	tau, ts := float64(v.params.TauAcc), float64(v.coeffs.AccTs)
	v.state.MotionBiasEstRLp = filter.NewLowPass(tau, ts, 9)
	v.state.MotionBiasEstBiasLp = filter.NewLowPass(tau, ts, 2)
}

func (v *VQF) resetRest() {
	s := &v.state
	s.RestDetected = false
	s.RestLastSquaredDeviations = [2]float32{}
	s.RestT = 0
	s.RestLastGyrLp = mgl32.Vec3{}
	s.RestGyrLp = filter.NewLowPass(float64(v.params.RestFilterTau), float64(v.coeffs.GyrTs), 3)
	s.RestLastAccLp = mgl32.Vec3{}
	s.RestAccLp = filter.NewLowPass(float64(v.params.RestFilterTau), float64(v.coeffs.AccTs), 3)
}

func (v *VQF) resetMag() {
	s := &v.state
	s.MagDistDetected = true
	s.MagRefNorm = 0
	s.MagRefDip = 0
	s.MagUndisturbedT = 0
	s.MagRejectT = v.params.MagMaxRejectionTime
	s.MagCandidateNorm = -1
	s.MagCandidateDip = 0
	s.MagCandidateT = 0
	s.MagNormDip = [2]float32{}
	if v.params.MagCurrentTau > 0 {
		s.MagNormDipLp = filter.NewLowPass(float64(v.params.MagCurrentTau), float64(v.coeffs.MagTs), 2)
	} else {
		s.MagNormDipLp = filter.LowPass{}
	}
}

// UpdateGyr integrates one gyroscope sample (rad/s).
func (v *VQF) UpdateGyr(gyr mgl32.Vec3) {
	s := &v.state
	p := v.params

	if p.RestBiasEstEnabled || p.MagDistRejectionEnabled {
		gyrLp := stepVec3(&s.RestGyrLp, gyr)
		dev := gyr.Sub(gyrLp)
		sq := dev.Dot(dev)

		th := mgl32.DegToRad(p.RestThGyr)
		clip := mgl32.DegToRad(p.BiasClip)
		if sq >= th*th || maxAbs(gyrLp) > clip {
			s.RestT = 0
			s.RestDetected = false
		}
		s.RestLastGyrLp = gyrLp
		s.RestLastSquaredDeviations[0] = sq
	}

	g := gyr.Sub(s.Bias)
	n := g.Len()
	if n <= axisEpsilon {
		return
	}
	half := n * v.coeffs.GyrTs / 2
	sin, cos := math.Sincos(float64(half))
	step := mgl32.Quat{W: float32(cos), V: g.Mul(float32(sin) / n)}
	s.GyrQuat = s.GyrQuat.Mul(step).Normalize()
}

// UpdateAcc applies one accelerometer sample (m/s²). A zero vector is ignored.
func (v *VQF) UpdateAcc(acc mgl32.Vec3) {
	if acc == (mgl32.Vec3{}) {
		return
	}
	s := &v.state
	p := v.params
	accTs := v.coeffs.AccTs

	if p.RestBiasEstEnabled {
		accLp := stepVec3(&s.RestAccLp, acc)
		dev := acc.Sub(accLp)
		sq := dev.Dot(dev)
		if sq >= p.RestThAcc*p.RestThAcc {
			s.RestT = 0
			s.RestDetected = false
		} else {
			s.RestT += accTs
			if s.RestT >= p.RestMinT {
				s.RestDetected = true
			}
		}
		s.RestLastAccLp = accLp
		s.RestLastSquaredDeviations[1] = sq
	}

	// Filter in the almost-inertial frame given by gyroscope integration.
	s.LastAccLp = stepVec3(&s.AccLp, s.GyrQuat.Rotate(acc))

	accEarth := s.AccQuat.Rotate(s.LastAccLp)
	n := accEarth.Len()
	if n <= axisEpsilon {
		return
	}
	accEarth = accEarth.Mul(1 / n)

	// Shortest rotation that brings the filtered gravity onto +z.
	var corr mgl32.Quat
	qw := float32(math.Sqrt(float64(accEarth[2]+1) / 2))
	if qw > 1e-6 {
		corr = mgl32.Quat{W: qw, V: mgl32.Vec3{0.5 * accEarth[1] / qw, -0.5 * accEarth[0] / qw, 0}}
	} else {
		// Gravity points straight down: any horizontal axis works.
		corr = mgl32.Quat{W: 0, V: mgl32.Vec3{1, 0, 0}}
	}
	s.AccQuat = corr.Mul(s.AccQuat).Normalize()
	s.LastAccCorrAngularRate = float32(math.Acos(float64(mgl32.Clamp(accEarth[2], -1, 1)))) / accTs

	if p.MotionBiasEstEnabled || p.RestBiasEstEnabled {
		v.estimateBias(accEarth)
	}
}

func (v *VQF) estimateBias(accEarth mgl32.Vec3) {
	s := &v.state
	p := v.params
	c := v.coeffs
	accTs := float64(c.AccTs)
	clip := float64(mgl32.DegToRad(p.BiasClip))

	// Internal unit is 0.01 °/s.
	const toInternal = 180 * 100 / math.Pi
	bias := [3]float64{
		float64(s.Bias[0]) * toInternal,
		float64(s.Bias[1]) * toInternal,
		float64(s.Bias[2]) * toInternal,
	}

	r := rotationMatrix(v.Quat6D())
	biasLp := [2]float64{
		r[0]*bias[0] + r[1]*bias[1] + r[2]*bias[2],
		r[3]*bias[0] + r[4]*bias[1] + r[5]*bias[2],
	}
	s.MotionBiasEstRLp.Step(r[:], r[:])
	s.MotionBiasEstBiasLp.Step(biasLp[:], biasLp[:])

	var e, w [3]float64
	measured := false
	switch {
	case s.RestDetected && p.RestBiasEstEnabled:
		for i := range e {
			e[i] = float64(s.RestLastGyrLp[i])*toInternal - bias[i]
			w[i] = c.BiasRestW
		}
		r = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
		measured = true
	case p.MotionBiasEstEnabled:
		e[0] = -float64(accEarth[1])/accTs*toInternal + biasLp[0] - (r[0]*bias[0] + r[1]*bias[1] + r[2]*bias[2])
		e[1] = float64(accEarth[0])/accTs*toInternal + biasLp[1] - (r[3]*bias[0] + r[4]*bias[1] + r[5]*bias[2])
		e[2] = -(r[6]*bias[0] + r[7]*bias[1] + r[8]*bias[2])
		w = [3]float64{c.BiasMotionW, c.BiasMotionW, c.BiasVerticalW}
		measured = true
	}

	for i := 0; i < 3; i++ {
		if s.BiasP[4*i] < c.BiasP0 {
			s.BiasP[4*i] += c.BiasV
		}
	}

	if measured {
		limit := clip * toInternal
		for i := range e {
			e[i] = clamp64(e[i], -limit, limit)
		}
		if v.kalmanUpdate(&bias, r, e, w) {
			for i := range bias {
				bias[i] = clamp64(bias[i], -limit, limit)
			}
		}
	}

	for i := range bias {
		s.Bias[i] = float32(bias[i] / toInternal)
	}
}

// kalmanUpdate applies K = P Rᵀ (W + R P Rᵀ)⁻¹, bias += K e, P -= K R P.
// It reports false and leaves the state alone when the innovation covariance
// cannot be inverted.
func (v *VQF) kalmanUpdate(bias *[3]float64, r [9]float64, e, w [3]float64) bool {
	pm := mat.NewDense(3, 3, append([]float64(nil), v.state.BiasP[:]...))
	rm := mat.NewDense(3, 3, r[:])

	var prt mat.Dense
	prt.Mul(pm, rm.T())
	var sm mat.Dense
	sm.Mul(rm, &prt)
	sm.Add(&sm, mat.NewDiagDense(3, w[:]))

	var sInv mat.Dense
	if err := sInv.Inverse(&sm); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return false
		}
	}

	var k mat.Dense
	k.Mul(&prt, &sInv)

	ke := mat.NewVecDense(3, nil)
	ke.MulVec(&k, mat.NewVecDense(3, e[:]))
	for i := range bias {
		bias[i] += ke.AtVec(i)
	}

	var kr, krp mat.Dense
	kr.Mul(&k, rm)
	krp.Mul(&kr, pm)
	pm.Sub(pm, &krp)
	copy(v.state.BiasP[:], pm.RawMatrix().Data)
	return true
}

// UpdateMag applies one magnetometer sample. Only the direction matters, any
// unit may be used as long as it stays the same. A zero vector is ignored.
func (v *VQF) UpdateMag(mag mgl32.Vec3) {
	if mag == (mgl32.Vec3{}) {
		return
	}
	s := &v.state
	p := v.params
	c := v.coeffs
	magTs := c.MagTs

	magEarth := v.Quat6D().Rotate(mag)

	if p.MagDistRejectionEnabled {
		norm := magEarth.Len()
		s.MagNormDip = [2]float32{norm, -float32(math.Asin(float64(mgl32.Clamp(magEarth[2]/norm, -1, 1))))}
		if p.MagCurrentTau > 0 {
			nd := [2]float64{float64(s.MagNormDip[0]), float64(s.MagNormDip[1])}
			s.MagNormDipLp.Step(nd[:], nd[:])
			s.MagNormDip = [2]float32{float32(nd[0]), float32(nd[1])}
		}
		v.detectMagDisturbance()
	}

	// Heading disagreement, north is +y.
	dis := float32(math.Atan2(float64(magEarth[0]), float64(magEarth[1]))) - s.Delta
	dis = wrapPi(dis)
	s.LastMagDisAngle = dis

	k := c.KMag
	if p.MagDistRejectionEnabled {
		if s.MagDistDetected {
			if s.MagRejectT <= p.MagMaxRejectionTime {
				s.MagRejectT += magTs
				k = 0
			} else {
				k /= p.MagRejectionFactor
			}
		} else {
			s.MagRejectT = max(s.MagRejectT-p.MagRejectionFactor*magTs, 0)
		}
	}

	// Fast 1/N convergence right after start.
	if s.KMagInit != 0 {
		k = max(k, s.KMagInit)
		s.KMagInit = s.KMagInit / (s.KMagInit + 1)
		if s.KMagInit*p.TauMag < magTs {
			s.KMagInit = 0
		}
	}

	s.Delta = wrapPi(s.Delta + k*dis)
	s.LastMagCorrAngularRate = k * dis / magTs
}

func (v *VQF) detectMagDisturbance() {
	s := &v.state
	p := v.params
	magTs := v.coeffs.MagTs
	norm, dip := s.MagNormDip[0], s.MagNormDip[1]
	dipTh := mgl32.DegToRad(p.MagDipTh)

	if s.MagRefNorm > 0 &&
		abs32(norm-s.MagRefNorm) < p.MagNormTh*s.MagRefNorm &&
		abs32(dip-s.MagRefDip) < dipTh {
		s.MagUndisturbedT += magTs
		if s.MagUndisturbedT >= p.MagMinUndisturbedTime {
			s.MagDistDetected = false
			s.MagRefNorm += v.coeffs.KMagRef * (norm - s.MagRefNorm)
			s.MagRefDip += v.coeffs.KMagRef * (dip - s.MagRefDip)
		}
	} else {
		s.MagUndisturbedT = 0
		s.MagDistDetected = true
	}

	// Track a candidate for a new homogeneous field.
	if abs32(norm-s.MagCandidateNorm) < p.MagNormTh*s.MagCandidateNorm &&
		abs32(dip-s.MagCandidateDip) < dipTh {
		if s.RestLastGyrLp.Len() >= mgl32.DegToRad(p.MagNewMinGyr) {
			s.MagCandidateT += magTs
		}
		s.MagCandidateNorm += v.coeffs.KMagRef * (norm - s.MagCandidateNorm)
		s.MagCandidateDip += v.coeffs.KMagRef * (dip - s.MagCandidateDip)

		if s.MagDistDetected && (s.MagCandidateT >= p.MagNewTime ||
			(s.MagRefNorm == 0 && s.MagCandidateT >= p.MagNewFirstTime)) {
			s.MagRefNorm = s.MagCandidateNorm
			s.MagRefDip = s.MagCandidateDip
			s.MagDistDetected = false
			s.MagUndisturbedT = p.MagMinUndisturbedTime
		}
	} else {
		s.MagCandidateT = 0
		s.MagCandidateNorm = norm
		s.MagCandidateDip = dip
	}
}

// Update processes one 6D sample: gyroscope first, then accelerometer.
func (v *VQF) Update(gyr, acc mgl32.Vec3) {
	v.UpdateGyr(gyr)
	v.UpdateAcc(acc)
}

// Update9D processes one full sample in gyroscope, accelerometer,
// magnetometer order.
func (v *VQF) Update9D(gyr, acc, mag mgl32.Vec3) {
	v.UpdateGyr(gyr)
	v.UpdateAcc(acc)
	v.UpdateMag(mag)
}

// Quat3D returns the gyroscope-only orientation.
func (v *VQF) Quat3D() mgl32.Quat { return v.state.GyrQuat }

// Quat6D returns the inclination-corrected orientation. Heading drifts.
func (v *VQF) Quat6D() mgl32.Quat { return v.state.AccQuat.Mul(v.state.GyrQuat) }

// Quat9D returns the heading-corrected orientation.
func (v *VQF) Quat9D() mgl32.Quat {
	return mgl32.QuatRotate(v.state.Delta, mgl32.Vec3{0, 0, 1}).Mul(v.Quat6D())
}

// Delta returns the heading offset (rad) between the 6D and 9D estimates.
func (v *VQF) Delta() float32 { return v.state.Delta }

// BiasEstimate returns the gyroscope bias (rad/s) and its uncertainty, the
// standard deviation in rad/s.
func (v *VQF) BiasEstimate() (mgl32.Vec3, float32) {
	p := v.state.BiasP
	maxRow := 0.0
	for i := 0; i < 3; i++ {
		row := math.Abs(p[3*i]) + math.Abs(p[3*i+1]) + math.Abs(p[3*i+2])
		maxRow = math.Max(maxRow, row)
	}
	sigma := math.Sqrt(math.Min(maxRow, v.coeffs.BiasP0)) * math.Pi / 100 / 180
	return v.state.Bias, float32(sigma)
}

// SetBiasEstimate overrides the bias estimate (rad/s). A positive sigma
// (rad/s) also resets the covariance.
func (v *VQF) SetBiasEstimate(bias mgl32.Vec3, sigma float32) {
	v.state.Bias = bias
	if sigma > 0 {
		v.resetBiasCovariance(square(float64(sigma) * 180 * 100 / math.Pi))
	}
}

// RestDetected reports whether the sensor is currently at rest.
func (v *VQF) RestDetected() bool { return v.state.RestDetected }

// MagDistDetected reports whether the magnetic field is currently considered
// disturbed.
func (v *VQF) MagDistDetected() bool { return v.state.MagDistDetected }

// RelativeRestDeviations returns the gyroscope and accelerometer deviations
// relative to their rest thresholds. Values below 1 count as rest.
func (v *VQF) RelativeRestDeviations() [2]float32 {
	d := v.state.RestLastSquaredDeviations
	return [2]float32{
		float32(math.Sqrt(float64(d[0]))) / mgl32.DegToRad(v.params.RestThGyr),
		float32(math.Sqrt(float64(d[1]))) / v.params.RestThAcc,
	}
}

// MagRef returns the reference field norm and dip angle (rad). The norm is 0
// while no field has been accepted.
func (v *VQF) MagRef() (norm, dip float32) {
	return v.state.MagRefNorm, v.state.MagRefDip
}

// SetMagRef sets the reference field, e.g. restored from an earlier session.
func (v *VQF) SetMagRef(norm, dip float32) {
	v.state.MagRefNorm = norm
	v.state.MagRefDip = dip
}

// SetTauAcc changes the accelerometer time constant without a jump in the
// filtered values.
func (v *VQF) SetTauAcc(tau float32) {
	if tau == v.params.TauAcc || !(tau > 0) {
		return
	}
	v.params.TauAcc = tau
	s := &v.state
	t := float64(tau)

	last := [3]float64{float64(s.LastAccLp[0]), float64(s.LastAccLp[1]), float64(s.LastAccLp[2])}
	s.AccLp.Retune(t, last[:])
	v.coeffs.AccLpB, v.coeffs.AccLpA = s.AccLp.B, s.AccLp.A

	var r [9]float64
	s.MotionBiasEstRLp.LastOutputEstimate(r[:])
	s.MotionBiasEstRLp.Retune(t, r[:])
	var b [2]float64
	s.MotionBiasEstBiasLp.LastOutputEstimate(b[:])
	s.MotionBiasEstBiasLp.Retune(t, b[:])
}

// SetTauMag changes the heading correction time constant.
func (v *VQF) SetTauMag(tau float32) {
	v.params.TauMag = tau
	v.coeffs.KMag = float32(filter.GainFromTau(float64(tau), float64(v.coeffs.MagTs)))
}

// SetMotionBiasEstEnabled toggles bias estimation during motion.
func (v *VQF) SetMotionBiasEstEnabled(enabled bool) {
	if v.params.MotionBiasEstEnabled == enabled {
		return
	}
	v.params.MotionBiasEstEnabled = enabled
	v.resetMotionBias()
}

// SetRestBiasEstEnabled toggles rest detection and bias estimation at rest.
func (v *VQF) SetRestBiasEstEnabled(enabled bool) {
	if v.params.RestBiasEstEnabled == enabled {
		return
	}
	v.params.RestBiasEstEnabled = enabled
	v.resetRest()
}

// SetMagDistRejectionEnabled toggles magnetic disturbance rejection.
func (v *VQF) SetMagDistRejectionEnabled(enabled bool) {
	if v.params.MagDistRejectionEnabled == enabled {
		return
	}
	v.params.MagDistRejectionEnabled = enabled
	v.resetMag()
}

// SetRestDetectionThresholds changes the rest thresholds (°/s and m/s²).
func (v *VQF) SetRestDetectionThresholds(thGyr, thAcc float32) {
	v.params.RestThGyr = thGyr
	v.params.RestThAcc = thAcc
}

// Params returns the current parameters.
func (v *VQF) Params() Params { return v.params }

// Coefficients returns the derived coefficients.
func (v *VQF) Coefficients() Coefficients { return v.coeffs }

// State returns a copy of the complete state.
func (v *VQF) State() State { return v.state }

// SetState restores a state obtained from State.
func (v *VQF) SetState(s State) { v.state = s }

func stepVec3(f *filter.LowPass, x mgl32.Vec3) mgl32.Vec3 {
	buf := [3]float64{float64(x[0]), float64(x[1]), float64(x[2])}
	f.Step(buf[:], buf[:])
	return mgl32.Vec3{float32(buf[0]), float32(buf[1]), float32(buf[2])}
}

// rotationMatrix returns the row-major matrix of a unit quaternion.
func rotationMatrix(q mgl32.Quat) [9]float64 {
	w, x, y, z := float64(q.W), float64(q.V[0]), float64(q.V[1]), float64(q.V[2])
	return [9]float64{
		1 - 2*y*y - 2*z*z, 2*(x*y-w*z), 2*(x*z+w*y),
		2*(x*y+w*z), 1 - 2*x*x - 2*z*z, 2*(y*z-w*x),
		2*(x*z-w*y), 2*(w*x+y*z), 1 - 2*x*x - 2*y*y,
	}
}

func wrapPi(a float32) float32 {
	switch {
	case a > math.Pi:
		return a - 2*math.Pi
	case a < -math.Pi:
		return a + 2*math.Pi
	}
	return a
}

func maxAbs(v mgl32.Vec3) float32 {
	return max(abs32(v[0]), abs32(v[1]), abs32(v[2]))
}

func abs32(x float32) float32 { return float32(math.Abs(float64(x))) }

func square(x float64) float64 { return x * x }

func clamp64(x, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, x)) }
