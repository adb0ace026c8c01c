// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/body_tracker/internal/config"
	"github.com/relabs-tech/body_tracker/internal/tracking"
)

const (
	displayW    = 128
	displayH    = 64
	displayLine = 13 // basicfont.Face7x13 line height
	displayRows = displayH / displayLine
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	statuses   []tracking.Status
	haveStatus bool
	frames     uint64
}

// renderStatus draws one line per tracker:
//
//	left  C R   <- calibrated, at rest
//	right - M   <- uncalibrated, magnetic disturbance
//
// followed by the number of frames seen.
func renderStatus(statuses []tracking.Status, haveStatus bool, frames uint64) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayW, displayH))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	line := func(row int, text string) {
		drawer.Dot = fixed.P(0, (row+1)*displayLine-2)
		drawer.DrawString(text)
	}

	if !haveStatus {
		line(1, "Body tracker")
		line(2, "Waiting...")
		return img
	}

	row := 0
	for _, s := range statuses {
		if row == displayRows-1 {
			break
		}
		line(row, fmt.Sprintf("%-7.7s %s %s", s.Sensor, mark(s.Calibrated, 'C'), restOrMag(s)))
		row++
	}
	line(displayRows-1, fmt.Sprintf("frames %d", frames))
	return img
}

func mark(on bool, c byte) string {
	if on {
		return string(c)
	}
	return "-"
}

func restOrMag(s tracking.Status) string {
	switch {
	case s.MagDisturbed:
		return "M"
	case s.Rest:
		return "R"
	default:
		return " "
	}
}

// RunDisplay shows tracker status on an SSD1306 OLED on the default I2C bus.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized")

	data := &DisplayData{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribe(client, cfg.TopicStatus, func(_ mqtt.Client, msg mqtt.Message) {
		var st []tracking.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("display: status unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.statuses = st
		data.haveStatus = true
		data.mu.Unlock()
	}); err != nil {
		return err
	}
	if err := subscribe(client, cfg.TopicFrame, func(_ mqtt.Client, _ mqtt.Message) {
		data.mu.Lock()
		data.frames++
		data.mu.Unlock()
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		img := renderStatus(data.statuses, data.haveStatus, data.frames)
		data.mu.RUnlock()

		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}
	return nil
}
