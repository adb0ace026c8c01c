// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// StandardGravity in m/s².
const StandardGravity = 9.80665

// IMURaw is one reading in sensor counts, as read from the chip. Mag is
// zero for sensors whose magnetometer is not read.
type IMURaw struct {
	Source string `json:"source"` // sensor id

	Ax, Ay, Az int16 // accelerometer
	Gx, Gy, Gz int16 // gyroscope
	Mx, My, Mz int16 // magnetometer
}

// Scale converts raw counts to SI units.
type Scale struct {
	AccelLSBPerG  float64 // counts per g
	GyroLSBPerDPS float64 // counts per °/s
	MagMicroTesla float64 // µT per count
}

// MPU9250Default is the scale of an MPU9250 at ±2 g and ±250 °/s, with the
// magnetometer stored as 0.1 µT counts.
var MPU9250Default = Scale{
	AccelLSBPerG:  16384,
	GyroLSBPerDPS: 131,
	MagMicroTesla: 0.1,
}

// Sample is one IMU reading in SI units. Mag is zero when the sensor has no
// magnetometer.
type Sample struct {
	Sensor string     `json:"sensor"`
	Time   time.Time  `json:"time"`
	Gyr    mgl32.Vec3 `json:"gyr"` // rad/s
	Acc    mgl32.Vec3 `json:"acc"` // m/s²
	Mag    mgl32.Vec3 `json:"mag"` // µT
}

// HasMag reports whether the sample carries a magnetometer reading.
func (s Sample) HasMag() bool { return s.Mag != (mgl32.Vec3{}) }

// Validate rejects samples that would poison a fusion filter.
func (s Sample) Validate() error {
	if strings.TrimSpace(s.Sensor) == "" {
		return fmt.Errorf("imu: sample without sensor id")
	}
	for _, v := range []mgl32.Vec3{s.Gyr, s.Acc, s.Mag} {
		for _, c := range v {
			if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
				return fmt.Errorf("imu: sample from %q has non-finite values", s.Sensor)
			}
		}
	}
	return nil
}

// FromRaw converts a raw reading taken at t.
func FromRaw(raw IMURaw, scale Scale, t time.Time) Sample {
	acc := StandardGravity / scale.AccelLSBPerG
	gyr := math.Pi / 180 / scale.GyroLSBPerDPS
	return Sample{
		Sensor: raw.Source,
		Time:   t,
		Acc:    vec(raw.Ax, raw.Ay, raw.Az, acc),
		Gyr:    vec(raw.Gx, raw.Gy, raw.Gz, gyr),
		Mag:    vec(raw.Mx, raw.My, raw.Mz, scale.MagMicroTesla),
	}
}

func vec(x, y, z int16, k float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(float64(x) * k), float32(float64(y) * k), float32(float64(z) * k)}
}
