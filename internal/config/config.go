// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the colorizer.
const (
	// Default values for the audio host
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultChannels        = 2           // Stereo
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode
	DefaultSampleRate      = 48000

	// Default values for the analysis front end
	DefaultWindowSize    = 2048
	DefaultHopSize       = 512
	DefaultWindow        = "Hann"
	DefaultGateThreshold = 0.001

	DefaultSeed            = 1
	DefaultPublishInterval = 33 * time.Millisecond // ~30 Hz UI rate

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer
	MaxChannels     = 8
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel   string           `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio      AudioConfig      `yaml:"audio"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Modulation ModulationConfig `yaml:"modulation"`
	State      StateConfig      `yaml:"state"`
	Recording  RecordingConfig  `yaml:"recording"`
	Transport  TransportConfig  `yaml:"transport"`
	UI         UIConfig         `yaml:"ui"`
}

// AudioConfig holds settings related to audio input/output.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for input (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for output (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per host callback (affects latency).
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio.
	Channels        int     `yaml:"channels"`          // Channels processed in place (1=mono, 2=stereo).
}

// AnalysisConfig holds the spectral front end settings.
type AnalysisConfig struct {
	WindowSize    int     `yaml:"window_size"`    // FFT window in samples, power of two.
	HopSize       int     `yaml:"hop_size"`       // Samples between transforms (0 for window/4).
	Window        string  `yaml:"window"`         // Window function name (e.g., "Hann", "Hamming").
	GateThreshold float64 `yaml:"gate_threshold"` // Input gate threshold, 0..1 of full scale.
	GateEnabled   bool    `yaml:"gate_enabled"`
}

// ModulationConfig seeds the noise modulation source.
type ModulationConfig struct {
	Seed int64 `yaml:"seed"`
}

// StateConfig points at the preset file.
type StateConfig struct {
	PresetFile string `yaml:"preset_file"` // Preset loaded at startup ("" for none).
	Watch      bool   `yaml:"watch"`       // Reload the preset when it changes on disk.
	SaveOnExit bool   `yaml:"save_on_exit"`
}

// RecordingConfig holds settings related to recording the processed output.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`              // Enable recording to file.
	OutputDir   string `yaml:"output_dir"`           // Directory to save recorded audio files.
	Format      string `yaml:"format"`               // File format for recordings ("wav").
	BitDepth    int    `yaml:"bit_depth"`            // Bit depth for recorded audio (16, 24 or 32).
	MaxDuration int    `yaml:"max_duration_seconds"` // Maximum duration of a recording in seconds (0 for unlimited).
}

// TransportConfig holds settings related to publishing snapshots over the network.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"` // Listen address, e.g. "127.0.0.1:8080".
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets.
	PublishInterval  time.Duration `yaml:"publish_interval"`   // Interval between snapshot reads.
	LogStats         bool          `yaml:"log_stats"`          // Log snapshots and counters.
}

// UIConfig holds terminal UI settings.
type UIConfig struct {
	TUI     bool   `yaml:"tui"`      // Run the terminal monitor when attached to a terminal.
	LogFile string `yaml:"log_file"` // Log destination while the TUI owns the terminal.
}

// NewConfig creates a new Config instance with default values. This is the
// base configuration before a config file, environment overrides and
// command line flags are applied.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			Channels:        DefaultChannels,
		},
		Analysis: AnalysisConfig{
			WindowSize:    DefaultWindowSize,
			HopSize:       DefaultHopSize,
			Window:        DefaultWindow,
			GateThreshold: DefaultGateThreshold,
			GateEnabled:   true,
		},
		Modulation: ModulationConfig{Seed: DefaultSeed},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			Format:    "wav",
			BitDepth:  16,
		},
		Transport: TransportConfig{
			WebSocketAddress: "127.0.0.1:8080",
			UDPTargetAddress: "127.0.0.1:9090",
			PublishInterval:  DefaultPublishInterval,
		},
		UI: UIConfig{
			TUI:     true,
			LogFile: "colorizr.log",
		},
	}
}
