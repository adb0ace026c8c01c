package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoefficients_UnityDCGain(t *testing.T) {
	for _, tc := range []struct {
		name    string
		tau, ts float64
	}{
		{"acc default", 3.0, 0.01},
		{"rest filter", 0.5, 0.005},
		{"mag current", 0.05, 0.01},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b, a := Coefficients(tc.tau, tc.ts)
			gain := (b[0] + b[1] + b[2]) / (1 + a[0] + a[1])
			assert.InDelta(t, 1.0, gain, 1e-10)
			assert.Equal(t, 2*b[0], b[1])
			assert.Equal(t, b[0], b[2])
		})
	}
}

func TestGainFromTau(t *testing.T) {
	assert.Equal(t, 0.0, GainFromTau(-1, 0.01))
	assert.Equal(t, 1.0, GainFromTau(0, 0.01))
	assert.InDelta(t, 1-math.Exp(-0.01/9.0), GainFromTau(9, 0.01), 1e-15)
}

func TestLowPass_WarmupOutputsRunningMean(t *testing.T) {
	f := NewLowPass(1.0, 0.25, 1)
	out := make([]float64, 1)

	want := []float64{1, 1.5, 2, 2.5}
	for i, x := range []float64{1, 2, 3, 4} {
		require.False(t, f.Initialized(), "sample %d", i)
		f.Step(out, []float64{x})
		assert.InDelta(t, want[i], out[0], 1e-12)
	}
	assert.True(t, f.Initialized())

	// Seeded from the warm-up mean, a constant input equal to that mean is
	// reproduced without transient.
	f.Step(out, []float64{2.5})
	assert.InDelta(t, 2.5, out[0], 1e-12)
}

func TestLowPass_ConvergesToConstantInput(t *testing.T) {
	f := NewLowPass(0.5, 0.01, 3)
	x := []float64{0.1, -9.81, 3}
	out := make([]float64, 3)

	// Warm up on a different value so convergence is actually exercised.
	for i := 0; i < 60; i++ {
		f.Step(out, []float64{0, 0, 0})
	}
	require.True(t, f.Initialized())

	for i := 0; i < 2000; i++ {
		f.Step(out, x)
	}
	for i := range x {
		assert.InDelta(t, x[i], out[i], 1e-6)
	}
}

func TestLowPass_NineComponents(t *testing.T) {
	f := NewLowPass(0.1, 0.01, MaxDim)
	x := []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	out := make([]float64, MaxDim)
	for i := 0; i < 500; i++ {
		f.Step(out, x)
	}
	assert.InDeltaSlice(t, x, out, 1e-9)
}

func TestLowPass_ResetAndCopy(t *testing.T) {
	f := NewLowPass(0.05, 0.01, 2)
	out := make([]float64, 2)
	for i := 0; i < 10; i++ {
		f.Step(out, []float64{1, 2})
	}
	require.True(t, f.Initialized())

	snapshot := f
	f.Reset()
	assert.False(t, f.Initialized())
	assert.True(t, snapshot.Initialized(), "copies do not share state")
}

func TestLowPass_RetuneKeepsOutputContinuous(t *testing.T) {
	f := NewLowPass(3.0, 0.01, 1)
	out := make([]float64, 1)
	for i := 0; i < 400; i++ {
		f.Step(out, []float64{5})
	}
	last := out[0]
	f.Retune(1.0, out)
	assert.Equal(t, 1.0, f.Tau)

	f.Step(out, []float64{5})
	assert.InDelta(t, last, out[0], 1e-6)
}

func TestNewLowPass_ClampsDim(t *testing.T) {
	assert.Equal(t, 1, NewLowPass(1, 0.1, 0).Dim)
	assert.Equal(t, MaxDim, NewLowPass(1, 0.1, 42).Dim)
}
