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
	// MQTT
	MQTTBroker          string
	MQTTClientIDTracker string
	MQTTClientIDWeb     string
	MQTTClientIDConsole string

	// Topics
	TopicState   string
	TopicStatus  string
	TopicControl string

	// Sample source: "mock", "serial" or "imu"
	SourceKind string

	// Serial attitude unit
	SerialPort string
	SerialBaud uint

	// IMU hardware
	IMUSPIDevice string
	IMUCSPin     string

	// Motion pipeline
	SampleRateHz float64
	Smoothing    float64
	Damping      float64
	MaxSpeed     float64
	MaxRange     float64

	// Telemetry
	LogEnabled bool
	LogPath    string

	// Web server
	WebServerPort int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access; write lock for
//     initialization, read lock for Get().
//
// External code must use InitGlobal() to set and Get() to read.
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

	cfg := defaults()
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

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config pre-filled with workable values so a
// minimal file only needs the broker address.
func defaults() *Config {
	return &Config{
		MQTTClientIDTracker: "motion-cube-tracker",
		MQTTClientIDWeb:     "motion-cube-web",
		MQTTClientIDConsole: "motion-cube-console",
		TopicState:          "motion/state",
		TopicStatus:         "motion/status",
		TopicControl:        "motion/control",
		SourceKind:          "mock",
		SerialBaud:          115200,
		SampleRateHz:        60,
		Smoothing:           0.8,
		Damping:             0.05,
		MaxSpeed:            5,
		MaxRange:            2,
		LogPath:             "motion_log.csv",
		WebServerPort:       8080,
	}
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_STATE":
		c.TopicState = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_CONTROL":
		c.TopicControl = value

	// Sample source
	case "SOURCE_KIND":
		switch value {
		case "mock", "serial", "imu":
			c.SourceKind = value
		default:
			return fmt.Errorf("SOURCE_KIND must be mock, serial or imu, got %q", value)
		}
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD":
		baud, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD %q: %w", value, err)
		}
		c.SerialBaud = uint(baud)
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// Motion pipeline
	case "SAMPLE_RATE_HZ":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_RATE_HZ %q: %w", value, err)
		}
		if rate <= 0 {
			return fmt.Errorf("SAMPLE_RATE_HZ must be positive, got %g", rate)
		}
		c.SampleRateHz = rate
	case "SMOOTHING":
		alpha, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SMOOTHING %q: %w", value, err)
		}
		if alpha < 0 || alpha > 0.98 {
			return fmt.Errorf("SMOOTHING must be in [0, 0.98], got %g", alpha)
		}
		c.Smoothing = alpha
	case "DAMPING":
		d, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid DAMPING %q: %w", value, err)
		}
		if d < 0 || d > 0.2 {
			return fmt.Errorf("DAMPING must be in [0, 0.2], got %g", d)
		}
		c.Damping = d
	case "MAX_SPEED":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_SPEED %q: %w", value, err)
		}
		if v <= 0 {
			return fmt.Errorf("MAX_SPEED must be positive, got %g", v)
		}
		c.MaxSpeed = v
	case "MAX_RANGE":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_RANGE %q: %w", value, err)
		}
		if v <= 0 {
			return fmt.Errorf("MAX_RANGE must be positive, got %g", v)
		}
		c.MaxRange = v

	// Telemetry
	case "LOG_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_ENABLED %q: %w", value, err)
		}
		c.LogEnabled = enabled
	case "LOG_PATH":
		c.LogPath = value

	// Web server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SourceKind == "serial" && c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required when SOURCE_KIND=serial")
	}
	if c.SourceKind == "imu" && (c.IMUSPIDevice == "" || c.IMUCSPin == "") {
		return fmt.Errorf("IMU_SPI_DEVICE and IMU_CS_PIN are required when SOURCE_KIND=imu")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called
// multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be
// called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
