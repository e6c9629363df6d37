// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Serial link (device out / receiver in)
	SerialPort string
	SerialBaud int

	// Sensor hardware
	I2CBus     string // empty selects the first available bus
	IMUI2CAddr uint16
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte
	// Digital Low Pass Filter configuration (0-6)
	IMUDLPFConfig byte

	// User I/O
	ButtonPin string
	LEDPin    string

	// Timing (milliseconds)
	SampleInterval        int
	HealthCheckInterval   int
	DisplayUpdateInterval int
	DebounceInterval      int

	// Session
	SessionDuration int // milliseconds per cycle
	MaxCycles       int

	// Sensor health
	StuckThreshold int     // consecutive near-identical samples before freeze
	StuckEpsilon   float64 // m/s² per-channel match threshold
	FailedReadCap  int     // consecutive read failures before recovery
	StaleAfter     int     // milliseconds without a good read before lost
	ResetSettle    int     // milliseconds between transport close and reopen

	// Calibration (per-device zero offsets)
	CalAccelX float64
	CalAccelY float64
	CalAccelZ float64
	CalGyroX  float64
	CalGyroY  float64
	CalGyroZ  float64

	// Receiver
	OutputFolder string

	// MQTT (optional; empty broker disables)
	MQTTBroker           string
	MQTTClientIDReceiver string
	MQTTClientIDMonitor  string
	TopicEvents          string
	TopicSamples         string

	// Websocket live feed (optional; empty disables)
	WSListenAddr string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
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

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Serial link
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD":
		baud, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD %q: %w", value, err)
		}
		c.SerialBaud = baud

	// Sensor hardware
	case "I2C_BUS":
		c.I2CBus = value
	case "IMU_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid IMU_I2C_ADDR %q: %w", value, err)
		}
		c.IMUI2CAddr = uint16(addr)
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)
	case "IMU_DLPF_CFG":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_DLPF_CFG %q: %w", value, err)
		}
		if val < 0 || val > 6 {
			return fmt.Errorf("IMU_DLPF_CFG must be 0-6, got %d", val)
		}
		c.IMUDLPFConfig = byte(val)

	// User I/O
	case "BUTTON_PIN":
		c.ButtonPin = value
	case "LED_PIN":
		c.LEDPin = value

	// Timing
	case "SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.SampleInterval = interval
	case "HEALTH_CHECK_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HEALTH_CHECK_INTERVAL %q: %w", value, err)
		}
		c.HealthCheckInterval = interval
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval
	case "DEBOUNCE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DEBOUNCE_INTERVAL %q: %w", value, err)
		}
		c.DebounceInterval = interval

	// Session
	case "SESSION_DURATION":
		dur, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SESSION_DURATION %q: %w", value, err)
		}
		c.SessionDuration = dur
	case "MAX_CYCLES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAX_CYCLES %q: %w", value, err)
		}
		if n < 1 {
			return fmt.Errorf("MAX_CYCLES must be >= 1, got %d", n)
		}
		c.MaxCycles = n

	// Sensor health
	case "STUCK_THRESHOLD":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STUCK_THRESHOLD %q: %w", value, err)
		}
		if n < 1 {
			return fmt.Errorf("STUCK_THRESHOLD must be >= 1, got %d", n)
		}
		c.StuckThreshold = n
	case "STUCK_EPSILON":
		eps, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid STUCK_EPSILON %q: %w", value, err)
		}
		if eps <= 0 {
			return fmt.Errorf("STUCK_EPSILON must be > 0, got %g", eps)
		}
		c.StuckEpsilon = eps
	case "FAILED_READ_CAP":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FAILED_READ_CAP %q: %w", value, err)
		}
		if n < 1 {
			return fmt.Errorf("FAILED_READ_CAP must be >= 1, got %d", n)
		}
		c.FailedReadCap = n
	case "STALE_AFTER":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STALE_AFTER %q: %w", value, err)
		}
		c.StaleAfter = interval
	case "RESET_SETTLE":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RESET_SETTLE %q: %w", value, err)
		}
		c.ResetSettle = interval

	// Calibration
	case "CAL_ACCEL_X":
		return c.setFloat(&c.CalAccelX, key, value)
	case "CAL_ACCEL_Y":
		return c.setFloat(&c.CalAccelY, key, value)
	case "CAL_ACCEL_Z":
		return c.setFloat(&c.CalAccelZ, key, value)
	case "CAL_GYRO_X":
		return c.setFloat(&c.CalGyroX, key, value)
	case "CAL_GYRO_Y":
		return c.setFloat(&c.CalGyroY, key, value)
	case "CAL_GYRO_Z":
		return c.setFloat(&c.CalGyroZ, key, value)

	// Receiver
	case "OUTPUT_FOLDER":
		c.OutputFolder = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_RECEIVER":
		c.MQTTClientIDReceiver = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value
	case "TOPIC_SAMPLES":
		c.TopicSamples = value

	// Websocket
	case "WS_LISTEN_ADDR":
		c.WSListenAddr = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// setFloat parses a float64 config value.
func (c *Config) setFloat(dst *float64, key, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = f
	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required")
	}
	if c.SerialBaud == 0 {
		return fmt.Errorf("SERIAL_BAUD is required")
	}
	if c.IMUI2CAddr == 0 {
		return fmt.Errorf("IMU_I2C_ADDR is required")
	}
	if c.SampleInterval == 0 {
		return fmt.Errorf("SAMPLE_INTERVAL is required")
	}
	if c.HealthCheckInterval == 0 {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL is required")
	}
	if c.DisplayUpdateInterval == 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL is required")
	}
	if c.DebounceInterval == 0 {
		return fmt.Errorf("DEBOUNCE_INTERVAL is required")
	}
	if c.SessionDuration == 0 {
		return fmt.Errorf("SESSION_DURATION is required")
	}
	if c.MaxCycles == 0 {
		return fmt.Errorf("MAX_CYCLES is required")
	}
	if c.StuckThreshold == 0 {
		return fmt.Errorf("STUCK_THRESHOLD is required")
	}
	if c.StuckEpsilon == 0 {
		return fmt.Errorf("STUCK_EPSILON is required")
	}
	if c.FailedReadCap == 0 {
		return fmt.Errorf("FAILED_READ_CAP is required")
	}
	if c.StaleAfter == 0 {
		return fmt.Errorf("STALE_AFTER is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
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
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
