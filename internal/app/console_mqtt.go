// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/body_tracker/internal/bone"
	"github.com/relabs-tech/body_tracker/internal/config"
	"github.com/relabs-tech/body_tracker/internal/skeleton"
	"github.com/relabs-tech/body_tracker/internal/tracking"
)

// consoleBones are printed for every frame.
var consoleBones = []bone.Kind{bone.Neck, bone.Hip, bone.FootL, bone.FootR, bone.WristL, bone.WristR}

func formatFrame(f skeleton.Frame) string {
	tracked := 0
	for _, b := range f.Bones {
		if b.Tracked {
			tracked++
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[FRAME] %s tracked=%d/%d", f.Time.Format("15:04:05.000"), tracked, len(f.Bones))
	for _, k := range consoleBones {
		b, ok := f.Bones[k]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "  %s=(%5.2f,%5.2f,%5.2f)", k, b.Tail[0], b.Tail[1], b.Tail[2])
	}
	return sb.String()
}

func formatStatus(s tracking.Status) string {
	return fmt.Sprintf(
		"[TRACK] %-8s %-10s cal=%-5t rest=%-5t magdist=%-5t bias=%.4f samples=%d",
		s.Sensor, s.Bone, s.Calibrated, s.Rest, s.MagDisturbed, s.BiasSigma, s.Samples,
	)
}

// RunConsoleMQTT prints solved frames and tracker status until interrupted.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	err = subscribe(client, cfg.TopicFrame, func(_ mqtt.Client, msg mqtt.Message) {
		var f skeleton.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: frame unmarshal error: %v", err)
			return
		}
		fmt.Println(formatFrame(f))
	})
	if err != nil {
		return err
	}

	err = subscribe(client, cfg.TopicStatus, func(_ mqtt.Client, msg mqtt.Message) {
		var st []tracking.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}
		for _, s := range st {
			fmt.Println(formatStatus(s))
		}
	})
	if err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
