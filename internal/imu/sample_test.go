package imu

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRaw(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := IMURaw{Source: "left", Az: 16384, Gx: 131, Gy: -262, Mx: 250}

	s := FromRaw(raw, MPU9250Default, now)
	assert.Equal(t, "left", s.Sensor)
	assert.Equal(t, now, s.Time)
	assert.InDelta(t, StandardGravity, s.Acc[2], 1e-5)
	assert.InDelta(t, math.Pi/180, s.Gyr[0], 1e-7)
	assert.InDelta(t, -2*math.Pi/180, s.Gyr[1], 1e-7)
	assert.InDelta(t, 25, s.Mag[0], 1e-5)
	assert.True(t, s.HasMag())

	raw.Mx = 0
	assert.False(t, FromRaw(raw, MPU9250Default, now).HasMag())
}

func TestSample_Validate(t *testing.T) {
	s := Sample{Sensor: "left", Acc: mgl32.Vec3{0, 0, 9.8}}
	require.NoError(t, s.Validate())

	s.Gyr[1] = float32(math.NaN())
	assert.ErrorContains(t, s.Validate(), "non-finite")

	assert.ErrorContains(t, Sample{}.Validate(), "without sensor id")
}

func TestSample_JSON(t *testing.T) {
	in := Sample{
		Sensor: "right",
		Time:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Gyr:    mgl32.Vec3{0.1, 0.2, 0.3},
		Acc:    mgl32.Vec3{0, 0, 9.81},
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"gyr":[0.1,0.2,0.3]`)

	var out Sample
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}
