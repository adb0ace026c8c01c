// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracking binds physical sensors to bones. Each Tracker owns one
// fusion filter and the mount offset between its sensor and its bone.
package tracking

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/relabs-tech/body_tracker/internal/bone"
	"github.com/relabs-tech/body_tracker/internal/fusion"
	"github.com/relabs-tech/body_tracker/internal/imu"
)

// zUpToYUp maps the fusion earth frame (z up, y north) onto the skeleton
// frame (y up, -z forward).
var zUpToYUp = mgl32.QuatRotate(-math.Pi/2, mgl32.Vec3{1, 0, 0})

// ToSkeletonFrame re-expresses an orientation from the fusion earth frame in
// the skeleton frame.
func ToSkeletonFrame(q mgl32.Quat) mgl32.Quat {
	return zUpToYUp.Mul(q).Mul(zUpToYUp.Inverse()).Normalize()
}

// Status is a snapshot of a tracker for monitoring.
type Status struct {
	Sensor       string    `json:"sensor"`
	Bone         bone.Kind `json:"bone"`
	Calibrated   bool      `json:"calibrated"`
	Rest         bool      `json:"rest"`
	MagDisturbed bool      `json:"mag_disturbed"`
	BiasSigma    float32   `json:"bias_sigma"` // rad/s
	LastSeen     time.Time `json:"last_seen"`
	Samples      uint64    `json:"samples"`
}

// Tracker fuses the samples of one sensor into the rotation of one bone.
// It is not safe for concurrent use.
type Tracker struct {
	sensor string
	bone   bone.Kind
	useMag bool

	vqf        *fusion.VQF
	mount      mgl32.Quat
	calibrated bool
	lastSeen   time.Time
	samples    uint64
}

// NewTracker creates a tracker for sensor on bone b. ts is the sample period
// in seconds.
func NewTracker(sensor string, b bone.Kind, ts float32, params fusion.Params, useMag bool) (*Tracker, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("tracker %s: %w: %d", sensor, bone.ErrUnknownKind, uint8(b))
	}
	v, err := fusion.New(ts, ts, ts, params)
	if err != nil {
		return nil, fmt.Errorf("tracker %s: %w", sensor, err)
	}
	return &Tracker{
		sensor: sensor,
		bone:   b,
		useMag: useMag,
		vqf:    v,
		mount:  mgl32.QuatIdent(),
	}, nil
}

func (t *Tracker) Sensor() string { return t.sensor }

func (t *Tracker) Bone() bone.Kind { return t.bone }

// Apply feeds one sample into the fusion filter.
func (t *Tracker) Apply(s imu.Sample) {
	if t.useMag && s.HasMag() {
		t.vqf.Update9D(s.Gyr, s.Acc, s.Mag)
	} else {
		t.vqf.Update(s.Gyr, s.Acc)
	}
	t.lastSeen = s.Time
	t.samples++
}

// SensorRotation is the fused sensor orientation in the skeleton frame.
func (t *Tracker) SensorRotation() mgl32.Quat {
	q := t.vqf.Quat6D()
	if t.useMag {
		q = t.vqf.Quat9D()
	}
	return ToSkeletonFrame(q)
}

// Calibrate assumes the wearer stands in the calibration pose and records
// the offset from the sensor to its bone.
func (t *Tracker) Calibrate() {
	t.mount = t.SensorRotation().Inverse().Mul(t.bone.CalibrationRotation())
	t.calibrated = true
}

// Calibrated reports whether Calibrate has been called.
func (t *Tracker) Calibrated() bool { return t.calibrated }

// BoneRotation is the global rotation of the bone implied by the sensor.
func (t *Tracker) BoneRotation() mgl32.Quat {
	return t.SensorRotation().Mul(t.mount).Normalize()
}

// Stale reports whether no sample arrived within after of now.
func (t *Tracker) Stale(now time.Time, after time.Duration) bool {
	return t.lastSeen.IsZero() || now.Sub(t.lastSeen) > after
}

// Status returns a snapshot for monitoring.
func (t *Tracker) Status() Status {
	_, sigma := t.vqf.BiasEstimate()
	return Status{
		Sensor:       t.sensor,
		Bone:         t.bone,
		Calibrated:   t.calibrated,
		Rest:         t.vqf.RestDetected(),
		MagDisturbed: t.useMag && t.vqf.MagDistDetected(),
		BiasSigma:    sigma,
		LastSeen:     t.lastSeen,
		Samples:      t.samples,
	}
}
