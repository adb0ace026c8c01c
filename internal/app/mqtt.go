// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/body_tracker/internal/imu"
	"github.com/relabs-tech/body_tracker/internal/monitoring"
)

// publishFunc sends a payload to a topic. Processes take one instead of an
// MQTT client so their logic can run without a broker.
type publishFunc func(topic string, retained bool, payload []byte) error

// Command is sent on the command topic to control the pose server.
type Command struct {
	Action string    `json:"action"`
	Time   time.Time `json:"time"`
}

const (
	// ActionCalibrate captures the mount offset of every tracker. The wearer
	// must be standing in the calibration pose.
	ActionCalibrate = "calibrate"
	// ActionNewSession closes the current recording and starts another.
	ActionNewSession = "new_session"
)

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	monitoring.Logf("%s connected to MQTT broker at %s", clientID, broker)
	return client, nil
}

func subscribe(client mqtt.Client, topic string, h mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, h)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", topic, token.Error())
	}
	monitoring.Logf("subscribed to MQTT topic %s", topic)
	return nil
}

func mqttPublisher(client mqtt.Client) publishFunc {
	return func(topic string, retained bool, payload []byte) error {
		token := client.Publish(topic, 0, retained, payload)
		token.Wait()
		return token.Error()
	}
}

// sampleTopic is the topic a sensor's samples are published on.
func sampleTopic(prefix, sensor string) string {
	return prefix + "/" + sensor
}

func publishSample(publish publishFunc, prefix string, s imu.Sample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("sample marshal: %w", err)
	}
	return publish(sampleTopic(prefix, s.Sensor), false, payload)
}
