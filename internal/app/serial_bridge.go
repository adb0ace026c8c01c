// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"

	"github.com/relabs-tech/body_tracker/internal/config"
	"github.com/relabs-tech/body_tracker/internal/imu"
	"github.com/relabs-tech/body_tracker/internal/serialtracker"
)

type sampleSource interface {
	Next() (imu.Sample, error)
}

// bridge forwards every sample from src until it fails.
func bridge(src sampleSource, prefix string, publish publishFunc) (int, error) {
	n := 0
	for {
		s, err := src.Next()
		if err != nil {
			return n, err
		}
		if err := publishSample(publish, prefix, s); err != nil {
			log.Printf("serial: MQTT publish error (%s): %v", s.Sensor, err)
			continue
		}
		n++
	}
}

// RunSerialBridge reads IMU sentences from a tracker dongle on SERIAL_PORT
// and publishes them as samples.
func RunSerialBridge() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDSerial)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	r, err := serialtracker.Open(cfg.SerialPort, cfg.SerialBaudRate)
	if err != nil {
		return err
	}
	defer r.Close()

	n, err := bridge(r, cfg.TopicSamples, mqttPublisher(client))
	log.Printf("serial: read error after %d samples (%d lines skipped): %v", n, r.Skipped, err)
	return err
}
