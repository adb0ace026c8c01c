// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package filter provides the second-order Butterworth low-pass filter used by
// the orientation fusion engine.
//
// A LowPass does not start filtering on the first sample. For the first tau
// seconds it outputs the running mean of its input, then seeds the IIR state
// from that mean so the filter starts in steady state.
package filter

import "math"

// MaxDim is the largest vector a LowPass can filter (a flattened 3x3 matrix).
const MaxDim = 9

// Coefficients returns the numerator [b0 b1 b2] and denominator [a1 a2]
// (a0 = 1) of a second-order Butterworth low-pass filter whose step response
// has time constant tau, sampled every ts seconds.
func Coefficients(tau, ts float64) (b [3]float64, a [2]float64) {
	fc := (math.Sqrt2 / (2 * math.Pi)) / tau
	c := math.Tan(math.Pi * fc * ts)
	d := c*c + math.Sqrt2*c + 1
	b0 := c * c / d
	b = [3]float64{b0, 2 * b0, b0}
	a = [2]float64{
		2 * (c*c - 1) / d,
		(1 - math.Sqrt2*c + c*c) / d,
	}
	return b, a
}

// GainFromTau returns the gain of a first-order filter with time constant tau.
// A negative tau disables the update (gain 0), tau == 0 passes the input
// through (gain 1).
func GainFromTau(tau, ts float64) float64 {
	switch {
	case tau < 0:
		return 0
	case tau == 0:
		return 1
	default:
		return 1 - math.Exp(-ts/tau)
	}
}

// InitialState returns the filter state that makes the filter output x0
// forever when fed a constant x0.
func InitialState(x0 float64, b [3]float64, a [2]float64) [2]float64 {
	return [2]float64{x0 * (1 - b[0]), x0 * (b[2] - a[1])}
}

// LowPass filters a vector of Dim components independently. It is a plain
// value: copying it copies the complete filter state.
type LowPass struct {
	B   [3]float64
	A   [2]float64
	Tau float64
	Ts  float64
	Dim int

	// state holds the per-component IIR state once ready is set.
	state [MaxDim][2]float64
	ready bool
	count float64
	sum   [MaxDim]float64
}

// NewLowPass returns a filter for dim-component vectors. dim is clamped to
// [1, MaxDim].
func NewLowPass(tau, ts float64, dim int) LowPass {
	if dim < 1 {
		dim = 1
	}
	if dim > MaxDim {
		dim = MaxDim
	}
	b, a := Coefficients(tau, ts)
	f := LowPass{B: b, A: a, Tau: tau, Ts: ts, Dim: dim}
	f.Reset()
	return f
}

// Reset drops all history. The next sample starts a new warm-up phase.
func (f *LowPass) Reset() {
	f.state = [MaxDim][2]float64{}
	f.sum = [MaxDim]float64{}
	f.ready = false
	f.count = 0
}

// Initialized reports whether warm-up has completed.
func (f *LowPass) Initialized() bool {
	return f.ready
}

// Step filters one sample. x and out must have at least Dim elements; out may
// alias x.
func (f *LowPass) Step(out, x []float64) {
	if !f.Initialized() {
		f.warmup(out, x)
		return
	}
	for i := 0; i < f.Dim; i++ {
		xi := x[i]
		y := f.B[0]*xi + f.state[i][0]
		f.state[i][0] = f.B[1]*xi - f.A[0]*y + f.state[i][1]
		f.state[i][1] = f.B[2]*xi - f.A[1]*y
		out[i] = y
	}
}

func (f *LowPass) warmup(out, x []float64) {
	f.count++
	for i := 0; i < f.Dim; i++ {
		f.sum[i] += x[i]
		out[i] = f.sum[i] / f.count
	}
	if f.count*f.Ts < f.Tau {
		return
	}
	for i := 0; i < f.Dim; i++ {
		f.state[i] = InitialState(out[i], f.B, f.A)
	}
	f.ready = true
}

// Retune switches to the coefficients for a new time constant. lastY is the
// most recent filter output; the running state is shifted so the output does
// not jump. A filter still in warm-up simply keeps averaging.
func (f *LowPass) Retune(tau float64, lastY []float64) {
	b, a := Coefficients(tau, f.Ts)
	if f.Initialized() {
		for i := 0; i < f.Dim; i++ {
			f.state[i][0] += (f.B[0] - b[0]) * lastY[i]
			f.state[i][1] += (f.B[1] - b[1] - f.A[0] + a[0]) * lastY[i]
		}
	}
	f.B, f.A, f.Tau = b, a, tau
}

// LastOutputEstimate approximates the previous output from the running state.
// With small b0 the first state component is close to the last output.
func (f *LowPass) LastOutputEstimate(out []float64) {
	for i := 0; i < f.Dim; i++ {
		out[i] = f.state[i][0]
	}
}
