// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validConfig = `# Recorder configuration
SERIAL_PORT=/dev/ttyAMA0
SERIAL_BAUD=115200

I2C_BUS=1
IMU_I2C_ADDR=0x68
IMU_ACCEL_RANGE=0
IMU_GYRO_RANGE=0
IMU_DLPF_CFG=3

BUTTON_PIN=GPIO17
LED_PIN=GPIO27

SAMPLE_INTERVAL=10
HEALTH_CHECK_INTERVAL=500
DISPLAY_UPDATE_INTERVAL=1000
DEBOUNCE_INTERVAL=500

SESSION_DURATION=120000
MAX_CYCLES=3

STUCK_THRESHOLD=15
STUCK_EPSILON=0.001
FAILED_READ_CAP=5
STALE_AFTER=2000
RESET_SETTLE=100

CAL_ACCEL_X=0.12
CAL_ACCEL_Y=-0.03
CAL_GYRO_Z=1.5

OUTPUT_FOLDER=./tremor_data
MQTT_BROKER=tcp://localhost:1883
TOPIC_EVENTS=tremor/events
TOPIC_SAMPLES=tremor/samples
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tremor_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	require.Equal(t, "/dev/ttyAMA0", cfg.SerialPort)
	require.Equal(t, 115200, cfg.SerialBaud)
	require.Equal(t, uint16(0x68), cfg.IMUI2CAddr)
	require.Equal(t, byte(3), cfg.IMUDLPFConfig)
	require.Equal(t, "GPIO17", cfg.ButtonPin)
	require.Equal(t, 10, cfg.SampleInterval)
	require.Equal(t, 120000, cfg.SessionDuration)
	require.Equal(t, 3, cfg.MaxCycles)
	require.Equal(t, 15, cfg.StuckThreshold)
	require.Equal(t, 0.001, cfg.StuckEpsilon)
	require.Equal(t, 5, cfg.FailedReadCap)
	require.Equal(t, 0.12, cfg.CalAccelX)
	require.Equal(t, -0.03, cfg.CalAccelY)
	require.Equal(t, 0.0, cfg.CalAccelZ)
	require.Equal(t, 1.5, cfg.CalGyroZ)
	require.Equal(t, "tremor/events", cfg.TopicEvents)
	require.Empty(t, cfg.WSListenAddr)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"NOT_A_KEY=1\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "NOT_A_KEY")
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"no equals sign here\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid config line")
}

func TestLoadRequiresSerialPort(t *testing.T) {
	content := ""
	for _, line := range []string{
		"SERIAL_BAUD=115200",
		"IMU_I2C_ADDR=0x68",
		"SAMPLE_INTERVAL=10",
		"HEALTH_CHECK_INTERVAL=500",
		"DISPLAY_UPDATE_INTERVAL=1000",
		"DEBOUNCE_INTERVAL=500",
		"SESSION_DURATION=120000",
		"MAX_CYCLES=3",
		"STUCK_THRESHOLD=15",
		"STUCK_EPSILON=0.001",
		"FAILED_READ_CAP=5",
		"STALE_AFTER=2000",
	} {
		content += line + "\n"
	}
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
	require.Contains(t, err.Error(), "SERIAL_PORT")
}

func TestLoadValidatesRanges(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"IMU_ACCEL_RANGE=4", "IMU_ACCEL_RANGE"},
		{"IMU_GYRO_RANGE=-1", "IMU_GYRO_RANGE"},
		{"IMU_DLPF_CFG=7", "IMU_DLPF_CFG"},
		{"MAX_CYCLES=0", "MAX_CYCLES"},
		{"STUCK_THRESHOLD=0", "STUCK_THRESHOLD"},
		{"STUCK_EPSILON=-0.5", "STUCK_EPSILON"},
		{"FAILED_READ_CAP=0", "FAILED_READ_CAP"},
		{"SERIAL_BAUD=fast", "SERIAL_BAUD"},
	}
	for _, c := range cases {
		_, err := Load(writeConfig(t, validConfig+c.line+"\n"))
		require.Error(t, err, "line %q", c.line)
		require.Contains(t, err.Error(), c.want, "line %q", c.line)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestCommentsAndBlankLinesIgnored(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# leading comment\n\n"+validConfig+"\n# trailing\n"))
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyAMA0", cfg.SerialPort)
}
