// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"colorizr/internal/analysis"
	"colorizr/internal/engine"
	"colorizr/internal/log"
	"colorizr/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

var logger = log.For("config")

// candidates are searched in order when LoadConfig is called without a path.
var candidates = []string{
	"colorizr.yaml",
	"config.yaml",
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches the default locations. If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debugf("loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return invalid("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	// Audio
	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate %.0f outside %d..%d", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer < 1 || a.FramesPerBuffer > MaxBufferFrames {
		return invalid("audio.frames_per_buffer %d outside 1..%d", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.Channels < 1 || a.Channels > MaxChannels {
		return invalid("audio.channels %d outside 1..%d", a.Channels, MaxChannels)
	}
	if a.InputDevice < MinDeviceID || a.OutputDevice < MinDeviceID {
		return invalid("audio device ids must be >= %d", MinDeviceID)
	}

	// Analysis
	an := c.Analysis
	if !bitint.IsPowerOfTwo(an.WindowSize) || an.WindowSize < analysis.MinSize || an.WindowSize > analysis.MaxSize {
		return invalid("analysis.window_size %d must be a power of two in %d..%d", an.WindowSize, analysis.MinSize, analysis.MaxSize)
	}
	if an.HopSize < 0 || an.HopSize > an.WindowSize {
		return invalid("analysis.hop_size %d outside 0..%d", an.HopSize, an.WindowSize)
	}
	if _, err := analysis.ParseWindowFunc(an.Window); err != nil {
		return invalid("analysis.window: %v", err)
	}
	if an.GateThreshold < 0 || an.GateThreshold > 1 {
		return invalid("analysis.gate_threshold %v outside 0..1", an.GateThreshold)
	}

	// Recording
	r := c.Recording
	if r.Enabled {
		if r.Format != "wav" {
			return invalid("recording.format %q is not supported", r.Format)
		}
		if r.OutputDir == "" {
			return invalid("recording.output_dir must be set when recording is enabled")
		}
	}
	switch r.BitDepth {
	case 16, 24, 32:
	default:
		return invalid("recording.bit_depth %d must be 16, 24 or 32", r.BitDepth)
	}
	if r.MaxDuration < 0 {
		return invalid("recording.max_duration_seconds must not be negative")
	}

	// Transport
	t := c.Transport
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return invalid("transport.udp_target_address %q: %v", t.UDPTargetAddress, err)
		}
	}
	if t.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(t.WebSocketAddress); err != nil {
			return invalid("transport.websocket_address %q: %v", t.WebSocketAddress, err)
		}
	}
	if t.PublishInterval <= 0 {
		return invalid("transport.publish_interval must be positive")
	}

	return nil
}

// EngineSetup converts the audio and analysis sections into an engine setup.
func (c *Config) EngineSetup() (engine.Setup, error) {
	win, err := analysis.ParseWindowFunc(c.Analysis.Window)
	if err != nil {
		return engine.Setup{}, invalid("analysis.window: %v", err)
	}
	return engine.Setup{
		SampleRate:   c.Audio.SampleRate,
		MaxBlockSize: c.Audio.FramesPerBuffer,
		Channels:     c.Audio.Channels,
		WindowSize:   c.Analysis.WindowSize,
		HopSize:      c.Analysis.HopSize,
		Window:       win,
		Seed:         c.Modulation.Seed,
	}, nil
}

// applyEnvOverrides lets ENV_* variables override file values. Unparseable
// values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		logger.Infof("overriding log_level from env: %s", val)
	}
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil && bVal {
			c.LogLevel = "debug"
			logger.Infof("overriding log_level from env: debug")
		}
	}
	// ENV_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = fVal
			logger.Infof("overriding audio.sample_rate from env: %v", fVal)
		} else {
			logger.Warnf("ignoring ENV_SAMPLE_RATE=%q: %v", val, err)
		}
	}
	// ENV_FRAMES_PER_BUFFER
	if val, ok := os.LookupEnv("ENV_FRAMES_PER_BUFFER"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Audio.FramesPerBuffer = iVal
			logger.Infof("overriding audio.frames_per_buffer from env: %d", iVal)
		} else {
			logger.Warnf("ignoring ENV_FRAMES_PER_BUFFER=%q: %v", val, err)
		}
	}
	// ENV_PRESET
	if val, ok := os.LookupEnv("ENV_PRESET"); ok {
		c.State.PresetFile = val
		logger.Infof("overriding state.preset_file from env: %s", val)
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			logger.Infof("overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		logger.Infof("overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_PUBLISH_INTERVAL
	if val, ok := os.LookupEnv("ENV_PUBLISH_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.PublishInterval = dur
			logger.Infof("overriding transport.publish_interval from env: %s", dur)
		}
	}

	// ENV_WS_{...}

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			logger.Infof("overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		logger.Infof("overriding transport.websocket_address from env: %s", val)
	}
}
