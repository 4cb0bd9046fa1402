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

	"github.com/relabs-tech/motion_instrument/internal/engine"
	"github.com/relabs-tech/motion_instrument/internal/imu"
	"github.com/relabs-tech/motion_instrument/internal/mapping"
	"github.com/relabs-tech/motion_instrument/internal/scale"
)

// Sample sources
const (
	SourceIMU    = "imu"
	SourceSerial = "serial"
	SourceMock   = "mock"
)

// Serial frame formats
const (
	SerialBinary = "binary" // 6-byte little-endian x,y,z frames
	SerialCSV    = "csv"    // "x,y" or "x,y,z" text lines
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker             string
	MQTTClientIDInstrument string
	MQTTClientIDWeb        string
	MQTTClientIDDisplay    string
	MQTTClientIDConsole    string
	MQTTClientIDBridge     string

	// Topics
	TopicNotes   string
	TopicControl string
	TopicStatus  string
	TopicSamples string // optional raw sample mirror, empty disables

	// Sample feed
	SampleSource   string
	SampleInterval int // milliseconds

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte

	// Serial feed
	SerialPort     string
	SerialBaudRate int
	SerialFormat   string

	// Instrument
	BaseOctave          int
	OctaveMin           int
	OctaveMax           int
	DefaultScale        scale.Scale
	NoteQuantization    mapping.Quantization
	ExpressionRangeDeg  float64
	ExpressionInvert    bool
	ExpressionThreshold int
	ReassertMode        engine.ReassertMode
	DeadZone            float64 // counts
	DeadZoneAxes        mapping.DeadZoneAxes
	StartPowered        bool

	// MIDI bridge
	MIDIOutPort string // port name substring, empty = first port
	MIDIChannel int    // 1-16

	// Web Server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot modify config without locking.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access; Get() takes the read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional key set. MQTT_BROKER has no
// default and must come from the file.
func Default() *Config {
	defaults := engine.DefaultSettings()
	return &Config{
		MQTTClientIDInstrument: "motion-instrument",
		MQTTClientIDWeb:        "motion-instrument-web",
		MQTTClientIDDisplay:    "motion-instrument-display",
		MQTTClientIDConsole:    "motion-instrument-console",
		MQTTClientIDBridge:     "motion-instrument-midi-bridge",

		TopicNotes:   "instrument/notes",
		TopicControl: "instrument/control",
		TopicStatus:  "instrument/status",

		SampleSource:   SourceIMU,
		SampleInterval: 20,

		IMUSPIDevice:  "/dev/spidev0.0",
		IMUCSPin:      "8",
		IMUAccelRange: 0,

		SerialBaudRate: 9600,
		SerialFormat:   SerialBinary,

		BaseOctave:          defaults.BaseOctave,
		OctaveMin:           defaults.MinOctave,
		OctaveMax:           defaults.MaxOctave,
		DefaultScale:        defaults.Scale,
		NoteQuantization:    defaults.Notes.Quantization,
		ExpressionRangeDeg:  defaults.Expression.RangeDeg,
		ExpressionThreshold: defaults.Threshold,
		ReassertMode:        defaults.Reassert,
		DeadZone:            defaults.Expression.DeadZone,
		DeadZoneAxes:        defaults.Expression.Axes,
		StartPowered:        defaults.StartPowered,

		MIDIChannel: 1,

		WebServerPort: 8080,

		DisplayUpdateInterval: 100,
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

// Parse reads KEY=VALUE lines on top of Default() and validates the result.
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
	var err error

	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_INSTRUMENT":
		c.MQTTClientIDInstrument = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_BRIDGE":
		c.MQTTClientIDBridge = value

	// Topics
	case "TOPIC_NOTES":
		c.TopicNotes = value
	case "TOPIC_CONTROL":
		c.TopicControl = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_SAMPLES":
		c.TopicSamples = value

	// Sample feed
	case "SAMPLE_SOURCE":
		switch value {
		case SourceIMU, SourceSerial, SourceMock:
			c.SampleSource = value
		default:
			return fmt.Errorf("SAMPLE_SOURCE must be imu, serial or mock, got %q", value)
		}
	case "SAMPLE_INTERVAL":
		c.SampleInterval, err = intInRange(key, value, 1, 10000)

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		var rangeVal int
		rangeVal, err = strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)

	// Serial feed
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = intInRange(key, value, 1, 4000000)
	case "SERIAL_FORMAT":
		switch value {
		case SerialBinary, SerialCSV:
			c.SerialFormat = value
		default:
			return fmt.Errorf("SERIAL_FORMAT must be binary or csv, got %q", value)
		}

	// Instrument
	case "BASE_OCTAVE":
		c.BaseOctave, err = intInRange(key, value, 0, 9)
	case "OCTAVE_MIN":
		c.OctaveMin, err = intInRange(key, value, 0, 9)
	case "OCTAVE_MAX":
		c.OctaveMax, err = intInRange(key, value, 0, 9)
	case "DEFAULT_SCALE":
		c.DefaultScale, err = scale.Parse(value)
	case "NOTE_QUANTIZATION":
		c.NoteQuantization, err = mapping.ParseQuantization(value)
	case "EXPRESSION_RANGE_DEG":
		var deg float64
		deg, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid EXPRESSION_RANGE_DEG %q: %w", value, err)
		}
		if deg <= 0 || deg > 90 {
			return fmt.Errorf("EXPRESSION_RANGE_DEG must be in (0, 90], got %v", deg)
		}
		c.ExpressionRangeDeg = deg
	case "EXPRESSION_INVERT":
		c.ExpressionInvert, err = parseBool(key, value)
	case "EXPRESSION_THRESHOLD":
		c.ExpressionThreshold, err = intInRange(key, value, 1, 127)
	case "REASSERT_MODE":
		c.ReassertMode, err = engine.ParseReassertMode(value)
	case "DEAD_ZONE":
		var dz float64
		dz, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid DEAD_ZONE %q: %w", value, err)
		}
		if dz < 0 {
			return fmt.Errorf("DEAD_ZONE must not be negative, got %v", dz)
		}
		c.DeadZone = dz
	case "DEAD_ZONE_AXES":
		c.DeadZoneAxes, err = mapping.ParseDeadZoneAxes(value)
	case "START_POWERED":
		c.StartPowered, err = parseBool(key, value)

	// MIDI bridge
	case "MIDI_OUT_PORT":
		c.MIDIOutPort = value
	case "MIDI_CHANNEL":
		c.MIDIChannel, err = intInRange(key, value, 1, 16)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = intInRange(key, value, 1, 65535)

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = intInRange(key, value, 1, 60000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicNotes == "" || c.TopicControl == "" || c.TopicStatus == "" {
		return fmt.Errorf("TOPIC_NOTES, TOPIC_CONTROL and TOPIC_STATUS must not be empty")
	}
	if c.OctaveMin > c.OctaveMax {
		return fmt.Errorf("OCTAVE_MIN (%d) is above OCTAVE_MAX (%d)", c.OctaveMin, c.OctaveMax)
	}
	if c.BaseOctave < c.OctaveMin || c.BaseOctave > c.OctaveMax {
		return fmt.Errorf("BASE_OCTAVE %d outside %d-%d", c.BaseOctave, c.OctaveMin, c.OctaveMax)
	}
	switch c.SampleSource {
	case SourceSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required when SAMPLE_SOURCE=serial")
		}
	case SourceIMU:
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required when SAMPLE_SOURCE=imu")
		}
	}
	return nil
}

// CountsPerG returns the accelerometer full-scale factor for the configured range.
func (c *Config) CountsPerG() int {
	return imu.CountsPerG(c.IMUAccelRange)
}

// EngineSettings converts the instrument keys into engine settings.
func (c *Config) EngineSettings() engine.Settings {
	return engine.Settings{
		BaseOctave: c.BaseOctave,
		MinOctave:  c.OctaveMin,
		MaxOctave:  c.OctaveMax,
		Scale:      c.DefaultScale,
		Notes:      mapping.NoteMapper{Quantization: c.NoteQuantization},
		Expression: mapping.ExpressionMapper{
			RangeDeg: c.ExpressionRangeDeg,
			Invert:   c.ExpressionInvert,
			DeadZone: c.DeadZone,
			Axes:     c.DeadZoneAxes,
		},
		Threshold:    c.ExpressionThreshold,
		Reassert:     c.ReassertMode,
		CountsPerG:   c.CountsPerG(),
		StartPowered: c.StartPowered,
	}
}

func intInRange(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
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
