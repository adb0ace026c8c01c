// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"time"

	"github.com/relabs-tech/body_tracker/internal/config"
	"github.com/relabs-tech/body_tracker/internal/imu"
	"github.com/relabs-tech/body_tracker/internal/sensors"
)

// imuProducer reads a set of wired IMUs once per tick and publishes their
// samples.
type imuProducer struct {
	sources map[string]sensors.IMURawReader
	order   []string
	scale   imu.Scale
	prefix  string
	publish publishFunc
	errors  map[string]int
}

// tick reads every source and publishes what it could read. It returns how
// many samples were published.
func (p *imuProducer) tick(t time.Time) int {
	n := 0
	for _, name := range p.order {
		raw, err := p.sources[name].ReadRaw()
		if err != nil {
			p.errors[name]++
			if p.errors[name] == 1 || p.errors[name]%100 == 0 {
				log.Printf("imu: %s read error (%d so far): %v", name, p.errors[name], err)
			}
			continue
		}
		raw.Source = name
		if err := publishSample(p.publish, p.prefix, imu.FromRaw(raw, p.scale, t)); err != nil {
			log.Printf("imu: MQTT publish error (%s): %v", name, err)
			continue
		}
		n++
	}
	return n
}

// RunIMUProducer samples the left and right MPU9250 at IMU_SAMPLE_INTERVAL
// and publishes them on TOPIC_SAMPLES/<sensor>. The right IMU is optional.
func RunIMUProducer() error {
	cfg := config.Get()

	p := &imuProducer{
		sources: make(map[string]sensors.IMURawReader),
		scale:   imu.MPU9250Default,
		prefix:  cfg.TopicSamples,
		errors:  make(map[string]int),
	}

	left, err := sensors.NewIMUSource(sensors.SPIConfig{
		Name:   "left",
		Device: cfg.IMULeftSPIDevice,
		CSPin:  cfg.IMULeftCSPin,
	})
	if err != nil {
		return err
	}
	p.sources["left"] = left
	p.order = append(p.order, "left")

	right, err := sensors.NewIMUSource(sensors.SPIConfig{
		Name:   "right",
		Device: cfg.IMURightSPIDevice,
		CSPin:  cfg.IMURightCSPin,
	})
	if err != nil {
		log.Printf("WARNING: right IMU not available: %v", err)
	} else {
		p.sources["right"] = right
		p.order = append(p.order, "right")
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	p.publish = mqttPublisher(client)

	log.Printf("imu: publishing %v every %d ms", p.order, cfg.IMUSampleInterval)

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	for t := range ticker.C {
		p.tick(t)
	}
	return nil
}
