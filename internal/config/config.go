// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/body_tracker/internal/bone"
	"github.com/relabs-tech/body_tracker/internal/fusion"
)

const (
	boneLengthPrefix = "BONE_LENGTH_"
	trackerPrefix    = "TRACKER_"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDPose     string
	MQTTClientIDProducer string
	MQTTClientIDSerial   string
	MQTTClientIDWeb      string
	MQTTClientIDConsole  string
	MQTTClientIDDisplay  string

	// Topics
	TopicSamples string // prefix, the sensor id is appended: <prefix>/<sensor>
	TopicFrame   string
	TopicStatus  string
	TopicCommand string

	// IMU Hardware
	IMULeftSPIDevice  string
	IMULeftCSPin      string
	IMURightSPIDevice string
	IMURightCSPin     string

	// Timing
	IMUSampleInterval    int // milliseconds
	FusionSampleInterval int // milliseconds, 0 follows IMUSampleInterval
	SolveInterval        int // milliseconds
	StaleAfter           int // milliseconds

	// Serial tracker dongle
	SerialPort     string
	SerialBaudRate int

	// Web Server
	WebServerPort int

	// Status OLED
	DisplayUpdateInterval int // milliseconds

	// Session recording, empty disables it
	SessionDBPath string

	// Pose
	RootPosition    [3]float32 // meters, applied to the head of the neck
	UseMagnetometer bool

	// Fusion
	FusionTauAcc           float32
	FusionTauMag           float32
	FusionRestThGyr        float32 // °/s
	FusionRestThAcc        float32 // m/s²
	FusionRestMinT         float32 // s
	FusionBiasClip         float32 // °/s
	FusionMotionBiasEst    bool
	FusionRestBiasEst      bool
	FusionMagDistRejection bool

	// Skeleton
	BoneLengths bone.Map[float32] // meters
	Trackers    map[string]bone.Kind
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaultBoneLengths are adult proportions in meters.
var defaultBoneLengths = bone.Map[float32]{
	bone.Neck:      0.10,
	bone.Chest:     0.30,
	bone.Waist:     0.20,
	bone.Hip:       0.10,
	bone.ThighL:    0.45,
	bone.ThighR:    0.45,
	bone.AnkleL:    0.42,
	bone.AnkleR:    0.42,
	bone.FootL:     0.20,
	bone.FootR:     0.20,
	bone.UpperArmL: 0.30,
	bone.UpperArmR: 0.30,
	bone.ForearmL:  0.26,
	bone.ForearmR:  0.26,
	bone.WristL:    0.08,
	bone.WristR:    0.08,
}

// Default returns a configuration with every optional value set. Load
// starts from it, so a file only needs the keys it wants to change.
func Default() *Config {
	p := fusion.DefaultParams()
	return &Config{
		MQTTBroker:             "tcp://localhost:1883",
		MQTTClientIDPose:       "body-tracker-pose",
		MQTTClientIDProducer:   "body-tracker-imu-producer",
		MQTTClientIDSerial:     "body-tracker-serial",
		MQTTClientIDWeb:        "body-tracker-web",
		MQTTClientIDConsole:    "body-tracker-console",
		MQTTClientIDDisplay:    "body-tracker-display",
		TopicSamples:           "body/samples",
		TopicFrame:             "body/frame",
		TopicStatus:            "body/status",
		TopicCommand:           "body/command",
		IMULeftSPIDevice:       "/dev/spidev0.0",
		IMULeftCSPin:           "GPIO8",
		IMURightSPIDevice:      "/dev/spidev0.1",
		IMURightCSPin:          "GPIO7",
		IMUSampleInterval:      10,
		SolveInterval:          20,
		StaleAfter:             500,
		SerialBaudRate:         115200,
		WebServerPort:          8080,
		DisplayUpdateInterval:  250,
		RootPosition:           [3]float32{0, 1.6, 0},
		FusionTauAcc:           p.TauAcc,
		FusionTauMag:           p.TauMag,
		FusionRestThGyr:        p.RestThGyr,
		FusionRestThAcc:        p.RestThAcc,
		FusionRestMinT:         p.RestMinT,
		FusionBiasClip:         p.BiasClip,
		FusionMotionBiasEst:    p.MotionBiasEstEnabled,
		FusionRestBiasEst:      p.RestBiasEstEnabled,
		FusionMagDistRejection: p.MagDistRejectionEnabled,
		BoneLengths:            defaultBoneLengths,
		Trackers:               map[string]bone.Kind{},
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default(). Blank lines and lines
// starting with # are ignored.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch {
	case strings.HasPrefix(key, boneLengthPrefix):
		k, err := bone.ParseKind(strings.TrimPrefix(key, boneLengthPrefix))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		l, err := parseFloat32(key, value)
		if err != nil {
			return err
		}
		if l < 0 {
			return fmt.Errorf("%s must not be negative, got %v", key, l)
		}
		c.BoneLengths[k] = l
		return nil
	case strings.HasPrefix(key, trackerPrefix):
		sensor := strings.ToLower(strings.TrimPrefix(key, trackerPrefix))
		if sensor == "" {
			return fmt.Errorf("invalid %s: missing sensor id", key)
		}
		k, err := bone.ParseKind(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		c.Trackers[sensor] = k
		return nil
	}

	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_POSE":
		c.MQTTClientIDPose = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_SERIAL":
		c.MQTTClientIDSerial = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_SAMPLES":
		c.TopicSamples = strings.TrimSuffix(value, "/")
	case "TOPIC_FRAME":
		c.TopicFrame = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value

	// IMU Hardware
	case "IMU_LEFT_SPI_DEVICE":
		c.IMULeftSPIDevice = value
	case "IMU_LEFT_CS_PIN":
		c.IMULeftCSPin = value
	case "IMU_RIGHT_SPI_DEVICE":
		c.IMURightSPIDevice = value
	case "IMU_RIGHT_CS_PIN":
		c.IMURightCSPin = value

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		c.IMUSampleInterval, err = parsePositiveInt(key, value)
	case "FUSION_SAMPLE_INTERVAL":
		c.FusionSampleInterval, err = parsePositiveInt(key, value)
	case "SOLVE_INTERVAL":
		c.SolveInterval, err = parsePositiveInt(key, value)
	case "STALE_AFTER":
		c.StaleAfter, err = parsePositiveInt(key, value)

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parsePositiveInt(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		port, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, perr)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", port)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parsePositiveInt(key, value)

	// Recording
	case "SESSION_DB_PATH":
		c.SessionDBPath = value

	// Pose
	case "ROOT_POSITION":
		c.RootPosition, err = parseVec3(key, value)
	case "USE_MAGNETOMETER":
		c.UseMagnetometer, err = parseBool(key, value)

	// Fusion
	case "FUSION_TAU_ACC":
		c.FusionTauAcc, err = parseFloat32(key, value)
	case "FUSION_TAU_MAG":
		c.FusionTauMag, err = parseFloat32(key, value)
	case "FUSION_REST_TH_GYR":
		c.FusionRestThGyr, err = parseFloat32(key, value)
	case "FUSION_REST_TH_ACC":
		c.FusionRestThAcc, err = parseFloat32(key, value)
	case "FUSION_REST_MIN_T":
		c.FusionRestMinT, err = parseFloat32(key, value)
	case "FUSION_BIAS_CLIP":
		c.FusionBiasClip, err = parseFloat32(key, value)
	case "FUSION_MOTION_BIAS_EST":
		c.FusionMotionBiasEst, err = parseBool(key, value)
	case "FUSION_REST_BIAS_EST":
		c.FusionRestBiasEst, err = parseBool(key, value)
	case "FUSION_MAG_DIST_REJECTION":
		c.FusionMagDistRejection, err = parseBool(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parsePositiveInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}

func parseFloat32(key, value string) (float32, error) {
	v, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return float32(v), nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// parseVec3 parses "x,y,z".
func parseVec3(key, value string) ([3]float32, error) {
	var out [3]float32
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("%s must be x,y,z, got %q", key, value)
	}
	for i, p := range parts {
		v, err := parseFloat32(key, strings.TrimSpace(p))
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicSamples == "" || c.TopicFrame == "" {
		return fmt.Errorf("TOPIC_SAMPLES and TOPIC_FRAME are required")
	}
	if !(c.FusionTauAcc > 0) {
		return fmt.Errorf("FUSION_TAU_ACC must be positive, got %v", c.FusionTauAcc)
	}
	if c.StaleAfter < c.IMUSampleInterval {
		return fmt.Errorf("STALE_AFTER (%d ms) must not be shorter than IMU_SAMPLE_INTERVAL (%d ms)",
			c.StaleAfter, c.IMUSampleInterval)
	}
	return nil
}

// FusionParams returns the fusion parameters, defaults overridden by the
// FUSION_* keys.
func (c *Config) FusionParams() fusion.Params {
	p := fusion.DefaultParams()
	p.TauAcc = c.FusionTauAcc
	p.TauMag = c.FusionTauMag
	p.RestThGyr = c.FusionRestThGyr
	p.RestThAcc = c.FusionRestThAcc
	p.RestMinT = c.FusionRestMinT
	p.BiasClip = c.FusionBiasClip
	p.MotionBiasEstEnabled = c.FusionMotionBiasEst
	p.RestBiasEstEnabled = c.FusionRestBiasEst
	p.MagDistRejectionEnabled = c.FusionMagDistRejection
	return p
}

// SampleTime is the fusion sample period in seconds, shared by every
// tracker of the pose server whether it is fed over SPI or the serial dongle.
func (c *Config) SampleTime() float32 {
	if c.FusionSampleInterval > 0 {
		return float32(c.FusionSampleInterval) / 1000
	}
	return float32(c.IMUSampleInterval) / 1000
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
