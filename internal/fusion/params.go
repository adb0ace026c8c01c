// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

// Params configures a VQF instance. Angular thresholds are given in degrees
// (or degrees per second) and converted to radians where they are used.
type Params struct {
	// TauAcc is the time constant of the accelerometer low-pass filter in
	// seconds. Small values trust the accelerometer, large values the gyroscope.
	TauAcc float32
	// TauMag is the time constant of the heading correction in seconds.
	TauMag float32

	// MotionBiasEstEnabled estimates gyroscope bias from the inclination
	// correction while the sensor moves.
	MotionBiasEstEnabled bool
	// RestBiasEstEnabled detects rest phases and observes the gyroscope bias
	// directly while resting.
	RestBiasEstEnabled bool
	// MagDistRejectionEnabled detects magnetic disturbances and suspends or
	// slows heading correction while they last.
	MagDistRejectionEnabled bool

	// BiasSigmaInit is the initial bias uncertainty (°/s).
	BiasSigmaInit float32
	// BiasForgettingTime is the time in which the bias uncertainty grows from
	// 0 to 0.1 °/s (s). It sets the Kalman filter system noise.
	BiasForgettingTime float32
	// BiasClip is the largest expected gyroscope bias (°/s). Bias estimates and
	// measurement residuals are clipped to it, and larger constant rates are
	// never treated as rest.
	BiasClip float32
	// BiasSigmaMotion is the converged bias uncertainty during motion (°/s).
	BiasSigmaMotion float32
	// BiasVerticalForgettingFactor weights an artificial zero measurement of
	// the vertical bias, which is unobservable during motion.
	BiasVerticalForgettingFactor float32
	// BiasSigmaRest is the converged bias uncertainty during rest (°/s).
	BiasSigmaRest float32

	// RestMinT is how long measurements must stay near their low-pass
	// reference before rest is detected (s).
	RestMinT float32
	// RestFilterTau is the time constant of the rest detection reference (s).
	RestFilterTau float32
	// RestThGyr is the gyroscope deviation threshold for rest (°/s).
	RestThGyr float32
	// RestThAcc is the accelerometer deviation threshold for rest (m/s²).
	RestThAcc float32

	// MagCurrentTau low-pass filters the current norm and dip (s). Values <= 0
	// use the raw measurement.
	MagCurrentTau float32
	// MagRefTau is the time constant with which the reference field follows an
	// undisturbed measurement (s).
	MagRefTau float32
	// MagNormTh is the relative field strength threshold for disturbance.
	MagNormTh float32
	// MagDipTh is the dip angle threshold for disturbance (°).
	MagDipTh float32
	// MagNewTime is how long a different homogeneous field must be observed,
	// while moving, before it replaces the reference (s).
	MagNewTime float32
	// MagNewFirstTime replaces MagNewTime while no reference exists yet (s).
	MagNewFirstTime float32
	// MagNewMinGyr is the minimum angular rate for time to count towards
	// accepting a new field (°/s).
	MagNewMinGyr float32
	// MagMinUndisturbedTime is the time within thresholds after which the
	// field is regarded as undisturbed again (s).
	MagMinUndisturbedTime float32
	// MagMaxRejectionTime is the longest period for which heading correction
	// is fully disabled during a disturbance (s).
	MagMaxRejectionTime float32
	// MagRejectionFactor slows heading correction during long disturbances.
	MagRejectionFactor float32
}

// DefaultParams returns the parameter set used for body-worn trackers.
func DefaultParams() Params {
	return Params{
		TauAcc:                       3.0,
		TauMag:                       9.0,
		MotionBiasEstEnabled:         true,
		RestBiasEstEnabled:           true,
		MagDistRejectionEnabled:      true,
		BiasSigmaInit:                0.5,
		BiasForgettingTime:           100.0,
		BiasClip:                     2.0,
		BiasSigmaMotion:              0.1,
		BiasVerticalForgettingFactor: 0.0001,
		BiasSigmaRest:                0.03,
		RestMinT:                     1.5,
		RestFilterTau:                0.5,
		RestThGyr:                    2.0,
		RestThAcc:                    0.5,
		MagCurrentTau:                0.05,
		MagRefTau:                    20.0,
		MagNormTh:                    0.1,
		MagDipTh:                     10.0,
		MagNewTime:                   20.0,
		MagNewFirstTime:              5.0,
		MagNewMinGyr:                 20.0,
		MagMinUndisturbedTime:        0.5,
		MagMaxRejectionTime:          60.0,
		MagRejectionFactor:           2.0,
	}
}

// Coefficients are derived from Params and the sample periods. They do not
// change during updates.
type Coefficients struct {
	GyrTs float32
	AccTs float32
	MagTs float32

	AccLpB [3]float64
	AccLpA [2]float64

	KMag float32

	// Bias Kalman filter variances, in the internal unit (0.01 °/s)².
	BiasP0        float64
	BiasV         float64
	BiasMotionW   float64
	BiasVerticalW float64
	BiasRestW     float64

	RestGyrLpB [3]float64
	RestGyrLpA [2]float64
	RestAccLpB [3]float64
	RestAccLpA [2]float64

	KMagRef float32

	MagNormDipLpB [3]float64
	MagNormDipLpA [2]float64
}
