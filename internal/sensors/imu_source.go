// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/body_tracker/internal/imu"
	"github.com/relabs-tech/body_tracker/internal/monitoring"
)

// IMURawReader defines the interface for reading raw IMU data.
type IMURawReader interface {
	ReadRaw() (imu.IMURaw, error)
}

// SPIConfig locates one MPU9250 on the SPI bus.
type SPIConfig struct {
	Name   string // sensor id published with every sample
	Device string // e.g. /dev/spidev0.0
	CSPin  string // e.g. GPIO8
}

type imuSource struct {
	name string
	imu  *mpu9250.MPU9250
}

// NewIMUSource initializes an MPU9250 over SPI at its power-on ranges
// (±2 g, ±250 °/s), matching imu.MPU9250Default. The magnetometer behind the
// auxiliary I²C bus is not read.
func NewIMUSource(c SPIConfig) (IMURawReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: periph host init: %w", c.Name, err)
	}

	cs := gpioreg.ByName(c.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("%s IMU: CS pin %q not found", c.Name, c.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(c.Device, cs)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: SPI transport (%s): %w", c.Name, c.Device, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: device creation: %w", c.Name, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: initialization: %w", c.Name, err)
	}

	// Bias left after calibration is tracked by the fusion filter.
	if err := dev.Calibrate(); err != nil {
		monitoring.Logf("%s IMU: calibration failed, continuing: %v", c.Name, err)
	} else {
		monitoring.Logf("%s IMU: calibration complete", c.Name)
	}

	return &imuSource{name: c.Name, imu: dev}, nil
}

// ReadRaw reads accelerometer and gyroscope data from this IMU.
func (s *imuSource) ReadRaw() (imu.IMURaw, error) {
	raw := imu.IMURaw{Source: s.name}
	for _, r := range []struct {
		axis string
		dst  *int16
		read func() (int16, error)
	}{
		{"accel X", &raw.Ax, s.imu.GetAccelerationX},
		{"accel Y", &raw.Ay, s.imu.GetAccelerationY},
		{"accel Z", &raw.Az, s.imu.GetAccelerationZ},
		{"gyro X", &raw.Gx, s.imu.GetRotationX},
		{"gyro Y", &raw.Gy, s.imu.GetRotationY},
		{"gyro Z", &raw.Gz, s.imu.GetRotationZ},
	} {
		v, err := r.read()
		if err != nil {
			return imu.IMURaw{}, fmt.Errorf("%s IMU %s: %w", s.name, r.axis, err)
		}
		*r.dst = v
	}
	return raw, nil
}
