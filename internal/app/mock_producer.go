// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"io"
	"log"
	"math"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/relabs-tech/body_tracker/internal/config"
	"github.com/relabs-tech/body_tracker/internal/imu"
)

const (
	mockSwingAmplitude = 20 * math.Pi / 180 // rad
	mockSwingRate      = 4.0                // rad/s
	mockGravity        = 9.81
)

// mockSource generates samples of sensors swinging about their x axis, every
// other sensor in opposite phase, like legs while walking.
type mockSource struct {
	sensors []string
	start   time.Time
	tick    <-chan time.Time
	pending []imu.Sample
}

func newMockSource(sensors []string, start time.Time, tick <-chan time.Time) *mockSource {
	return &mockSource{sensors: sensors, start: start, tick: tick}
}

// mockSwing returns the swing angle and its rate at elapsed seconds.
func mockSwing(i int, elapsed float64) (angle, rate float64) {
	phase := mockSwingRate*elapsed + float64(i%2)*math.Pi
	return mockSwingAmplitude * math.Sin(phase), mockSwingAmplitude * mockSwingRate * math.Cos(phase)
}

func mockSample(sensor string, i int, t time.Time, elapsed float64) imu.Sample {
	angle, rate := mockSwing(i, elapsed)
	sin, cos := math.Sincos(angle)
	return imu.Sample{
		Sensor: sensor,
		Time:   t,
		Gyr:    mgl32.Vec3{float32(rate), 0, 0},
		Acc:    mgl32.Vec3{0, float32(mockGravity * sin), float32(mockGravity * cos)},
	}
}

// Next returns the next sample, waiting for a tick when every sensor has
// been served. It returns io.EOF once the tick channel is closed.
func (m *mockSource) Next() (imu.Sample, error) {
	for len(m.pending) == 0 {
		t, ok := <-m.tick
		if !ok {
			return imu.Sample{}, io.EOF
		}
		elapsed := t.Sub(m.start).Seconds()
		for i, sensor := range m.sensors {
			m.pending = append(m.pending, mockSample(sensor, i, t, elapsed))
		}
	}
	s := m.pending[0]
	m.pending = m.pending[1:]
	return s, nil
}

// RunMockProducer publishes synthetic samples for every configured tracker,
// so the pose server and web UI can run without hardware.
func RunMockProducer() error {
	cfg := config.Get()

	sensors := make([]string, 0, len(cfg.Trackers))
	for s := range cfg.Trackers {
		sensors = append(sensors, s)
	}
	slices.Sort(sensors)
	if len(sensors) == 0 {
		sensors = []string{"left", "right"}
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Printf("mock: publishing %v every %d ms", sensors, cfg.IMUSampleInterval)
	_, err = bridge(newMockSource(sensors, time.Now(), ticker.C), cfg.TopicSamples, mqttPublisher(client))
	return err
}
