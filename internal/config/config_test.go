package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motion_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
# motion-cube configuration
MQTT_BROKER=tcp://localhost:1883
TOPIC_STATE=motion/state

SOURCE_KIND=serial
SERIAL_PORT=/dev/ttyUSB0
SERIAL_BAUD=9600

SAMPLE_RATE_HZ=100
SMOOTHING=0.9
DAMPING=0.1
MAX_SPEED=3.5
MAX_RANGE=1.5

LOG_ENABLED=true
LOG_PATH=/tmp/motion.csv
WEB_SERVER_PORT=9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "serial", cfg.SourceKind)
	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, uint(9600), cfg.SerialBaud)
	assert.Equal(t, 100.0, cfg.SampleRateHz)
	assert.Equal(t, 0.9, cfg.Smoothing)
	assert.Equal(t, 0.1, cfg.Damping)
	assert.Equal(t, 3.5, cfg.MaxSpeed)
	assert.Equal(t, 1.5, cfg.MaxRange)
	assert.True(t, cfg.LogEnabled)
	assert.Equal(t, "/tmp/motion.csv", cfg.LogPath)
	assert.Equal(t, 9090, cfg.WebServerPort)
}

func TestLoad_DefaultsApply(t *testing.T) {
	path := writeConfig(t, "MQTT_BROKER=tcp://broker:1883\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.SourceKind)
	assert.Equal(t, 60.0, cfg.SampleRateHz)
	assert.Equal(t, "motion/state", cfg.TopicState)
	assert.Equal(t, "motion/control", cfg.TopicControl)
	assert.Equal(t, 8080, cfg.WebServerPort)
	assert.False(t, cfg.LogEnabled)
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing broker", "SAMPLE_RATE_HZ=60\n"},
		{"unknown key", "MQTT_BROKER=tcp://b:1883\nBOGUS_KEY=1\n"},
		{"malformed line", "MQTT_BROKER=tcp://b:1883\nnot a key value\n"},
		{"bad source kind", "MQTT_BROKER=tcp://b:1883\nSOURCE_KIND=carrier-pigeon\n"},
		{"serial without port", "MQTT_BROKER=tcp://b:1883\nSOURCE_KIND=serial\n"},
		{"imu without spi", "MQTT_BROKER=tcp://b:1883\nSOURCE_KIND=imu\n"},
		{"negative rate", "MQTT_BROKER=tcp://b:1883\nSAMPLE_RATE_HZ=-5\n"},
		{"smoothing out of range", "MQTT_BROKER=tcp://b:1883\nSMOOTHING=1.0\n"},
		{"damping out of range", "MQTT_BROKER=tcp://b:1883\nDAMPING=0.5\n"},
		{"zero max speed", "MQTT_BROKER=tcp://b:1883\nMAX_SPEED=0\n"},
		{"bad bool", "MQTT_BROKER=tcp://b:1883\nLOG_ENABLED=maybe\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_AnyPositiveRateAccepted(t *testing.T) {
	// The UI offers 30/60/100 Hz but the core accepts any positive rate.
	cfg, err := Load(writeConfig(t, "MQTT_BROKER=tcp://b:1883\nSAMPLE_RATE_HZ=42.5\n"))
	require.NoError(t, err)
	assert.Equal(t, 42.5, cfg.SampleRateHz)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
