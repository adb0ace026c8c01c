// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serialtracker decodes IMU samples that wireless tracker dongles
// forward over a serial line as NMEA-framed sentences:
//
//	$TKIMU,<sensor>,gx,gy,gz,ax,ay,az,mx,my,mz*CS
//
// Gyroscope values are rad/s, accelerometer m/s² and magnetometer µT. A
// tracker without a magnetometer sends zeros.
package serialtracker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/relabs-tech/body_tracker/internal/imu"
)

const (
	// TypeIMU is the sentence type of an IMU sample.
	TypeIMU = "IMU"
	// Talker is the talker id written by FormatIMUSentence.
	Talker = "TK"

	imuFields = 10
)

// IMU is a decoded $xxIMU sentence.
type IMU struct {
	nmea.BaseSentence
	Sensor string
	Gyr    [3]float64
	Acc    [3]float64
	Mag    [3]float64
}

// Sample converts the sentence into an imu.Sample received at t.
func (s IMU) Sample(t time.Time) imu.Sample {
	return imu.Sample{
		Sensor: s.Sensor,
		Time:   t,
		Gyr:    vec(s.Gyr),
		Acc:    vec(s.Acc),
		Mag:    vec(s.Mag),
	}
}

func vec(v [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func newIMU(s nmea.BaseSentence) (nmea.Sentence, error) {
	if len(s.Fields) != imuFields {
		return nil, fmt.Errorf("serialtracker: %s has %d fields, want %d", s.Prefix(), len(s.Fields), imuFields)
	}
	p := nmea.NewParser(s)
	m := IMU{
		BaseSentence: s,
		Sensor:       strings.ToLower(p.String(0, "sensor")),
	}
	for i := 0; i < 3; i++ {
		m.Gyr[i] = p.Float64(1+i, "gyr")
		m.Acc[i] = p.Float64(4+i, "acc")
		m.Mag[i] = p.Float64(7+i, "mag")
	}
	if m.Sensor == "" {
		return nil, fmt.Errorf("serialtracker: %s without sensor id", s.Prefix())
	}
	return m, p.Err()
}

// NewParser returns an NMEA parser that understands IMU sentences in addition
// to the standard ones.
func NewParser() *nmea.SentenceParser {
	return &nmea.SentenceParser{
		CustomParsers: map[string]nmea.ParserFunc{
			TypeIMU: newIMU,
		},
	}
}

// ParseIMU parses one line. Sentences of any other type are rejected.
func ParseIMU(p *nmea.SentenceParser, line string) (IMU, error) {
	s, err := p.Parse(strings.TrimSpace(line))
	if err != nil {
		return IMU{}, err
	}
	m, ok := s.(IMU)
	if !ok {
		return IMU{}, fmt.Errorf("serialtracker: unexpected sentence type %s", s.DataType())
	}
	return m, nil
}

// FormatIMUSentence encodes a sample the way a tracker dongle sends it.
func FormatIMUSentence(s imu.Sample) string {
	fields := make([]string, 0, imuFields)
	fields = append(fields, s.Sensor)
	for _, v := range []mgl32.Vec3{s.Gyr, s.Acc, s.Mag} {
		for _, c := range v {
			fields = append(fields, strconv.FormatFloat(float64(c), 'f', -1, 32))
		}
	}
	body := Talker + TypeIMU + "," + strings.Join(fields, ",")
	return "$" + body + "*" + checksum(body)
}

// checksum is the XOR of every byte between '$' and '*', as two hex digits.
func checksum(body string) string {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return fmt.Sprintf("%02X", cs)
}
