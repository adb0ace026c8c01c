// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracking

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/relabs-tech/body_tracker/internal/bone"
	"github.com/relabs-tech/body_tracker/internal/fusion"
	"github.com/relabs-tech/body_tracker/internal/imu"
	"github.com/relabs-tech/body_tracker/internal/monitoring"
	"github.com/relabs-tech/body_tracker/internal/skeleton"
)

// Manager owns every tracker of a session. Like the skeleton it feeds, it
// must be used from a single goroutine.
type Manager struct {
	trackers map[string]*Tracker
	order    []string
	unknown  map[string]bool
}

// NewManager creates one tracker per entry of assignments (sensor → bone).
// Two sensors may not drive the same bone.
func NewManager(assignments map[string]bone.Kind, ts float32, params fusion.Params, useMag bool) (*Manager, error) {
	m := &Manager{
		trackers: make(map[string]*Tracker, len(assignments)),
		unknown:  make(map[string]bool),
	}
	owner := make(map[bone.Kind]string)
	for sensor, b := range assignments {
		sensor = strings.ToLower(sensor)
		if prev, ok := owner[b]; ok {
			return nil, fmt.Errorf("tracking: sensors %q and %q both drive %v", prev, sensor, b)
		}
		owner[b] = sensor
		t, err := NewTracker(sensor, b, ts, params, useMag)
		if err != nil {
			return nil, err
		}
		m.trackers[sensor] = t
		m.order = append(m.order, sensor)
	}
	slices.Sort(m.order)
	return m, nil
}

// Tracker returns the tracker of a sensor.
func (m *Manager) Tracker(sensor string) (*Tracker, bool) {
	t, ok := m.trackers[strings.ToLower(sensor)]
	return t, ok
}

// Len is the number of trackers.
func (m *Manager) Len() int { return len(m.trackers) }

// Handle routes a sample to its tracker. Samples from unassigned sensors are
// dropped, logged once per sensor.
func (m *Manager) Handle(s imu.Sample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	sensor := strings.ToLower(s.Sensor)
	t, ok := m.trackers[sensor]
	if !ok {
		if !m.unknown[sensor] {
			m.unknown[sensor] = true
			monitoring.Logf("tracking: ignoring samples from unassigned sensor %q", s.Sensor)
		}
		return nil
	}
	t.Apply(s)
	return nil
}

// Calibrate calibrates every tracker that has received samples and returns
// how many were calibrated.
func (m *Manager) Calibrate() int {
	n := 0
	for _, sensor := range m.order {
		t := m.trackers[sensor]
		if t.samples == 0 {
			monitoring.Logf("tracking: %s has no samples yet, not calibrated", sensor)
			continue
		}
		t.Calibrate()
		n++
	}
	return n
}

// ApplyTo writes the bone rotation of every fresh, calibrated tracker into
// the skeleton and clears the rotation input of every other tracked bone.
// It returns how many bones received an input.
func (m *Manager) ApplyTo(s *skeleton.Skeleton, now time.Time, staleAfter time.Duration) int {
	n := 0
	for _, sensor := range m.order {
		t := m.trackers[sensor]
		edge := s.Bone(t.bone)
		if !t.calibrated || t.Stale(now, staleAfter) {
			edge.ClearInputRotation()
			continue
		}
		edge.SetInputRotation(skeleton.GlobalRotation(t.BoneRotation()))
		n++
	}
	return n
}

// Statuses returns the status of every tracker ordered by sensor id.
func (m *Manager) Statuses() []Status {
	out := make([]Status, 0, len(m.order))
	for _, sensor := range m.order {
		out = append(out, m.trackers[sensor].Status())
	}
	return out
}
