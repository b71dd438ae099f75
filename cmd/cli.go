// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"colorizr/internal/config"
	"colorizr/pkg/build"

	"github.com/spf13/cobra"
)

// Commands that run instead of the live host.
const (
	CommandList   = "list"
	CommandRender = "render"
	CommandPlay   = "play"
	CommandPreset = "preset"
)

// Options is the parsed command line: the merged configuration plus the
// command to run.
type Options struct {
	Config     *config.Config
	ConfigPath string
	Command    string   // Empty for the live host.
	Args       []string // Positional arguments of Command.

	InputsOnly bool   // list: only show input devices.
	Pick       bool   // Choose devices interactively before starting.
	RecordFile string // Output file when recording is enabled.
	BitDepth   int    // render: output bit depth, 0 keeps the input's.
	NoTUI      bool
}

// flagValues holds raw flag values; only flags the user set are applied on
// top of the configuration file.
type flagValues struct {
	device          int
	outputDevice    int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	preset          string
	watch           bool
	record          bool
	verbose         bool
	websocket       string
	udp             string
}

// ParseArgs parses args (without the program name) into Options.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}
	var fv flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(options.ConfigPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, &fv)
			if err := cfg.Validate(); err != nil {
				return err
			}
			options.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if options.Config.Recording.Enabled && options.RecordFile == "" {
				options.RecordFile = filepath.Join(options.Config.Recording.OutputDir,
					"colorizr-"+time.Now().UTC().Format("02-01-2006-150405")+"."+options.Config.Recording.Format)
			}
			if options.NoTUI {
				options.Config.UI.TUI = false
			}
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	}
	listCmd.Flags().BoolVarP(&options.InputsOnly, "inputs", "i", false, "Only show input devices")
	rootCmd.AddCommand(listCmd)

	// Render command
	renderCmd := &cobra.Command{
		Use:   "render IN OUT",
		Short: "Process a WAV file offline",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandRender
			options.Args = args
		},
	}
	renderCmd.Flags().IntVar(&options.BitDepth, "bit-depth", 0, "Output bit depth (16, 24 or 32); defaults to the input's")
	rootCmd.AddCommand(renderCmd)

	// Play command
	playCmd := &cobra.Command{
		Use:   "play IN",
		Short: "Process a WAV file and play it on the default output",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandPlay
			options.Args = args
		},
	}
	rootCmd.AddCommand(playCmd)

	// Preset command
	presetCmd := &cobra.Command{
		Use:   "preset",
		Short: "Print the effective preset as YAML",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandPreset
		},
	}
	rootCmd.AddCommand(presetCmd)

	flags := rootCmd.PersistentFlags()

	// Configuration file
	flags.StringVar(&options.ConfigPath, "config", "",
		"Configuration file (default: colorizr.yaml or config.yaml in the working directory)")

	// Audio Device Configuration
	flags.IntVarP(&fv.device, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use 'list' command to see available devices.")
	flags.IntVar(&fv.outputDevice, "output-device", config.DefaultDeviceID,
		"Output device ID")
	flags.IntVarP(&fv.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to process (1=mono, 2=stereo)")
	flags.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&fv.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	rootCmd.Flags().BoolVar(&options.Pick, "pick", false,
		"Choose devices interactively before starting")

	// Preset
	flags.StringVarP(&fv.preset, "preset", "p", "",
		"Preset file loaded at startup")
	flags.BoolVarP(&fv.watch, "watch", "w", false,
		"Reload the preset when it changes on disk")

	// Recording Configuration
	rootCmd.Flags().BoolVarP(&fv.record, "record", "r", false,
		"Record the processed output")
	rootCmd.Flags().StringVarP(&options.RecordFile, "output", "o", "",
		"Recording file name. Default is colorizr-DD-MM-YYYY-HHMMSS.wav in the recording directory")

	// Transport
	rootCmd.Flags().StringVar(&fv.websocket, "ws", "",
		"Serve snapshots over WebSocket on this address")
	rootCmd.Flags().StringVar(&fv.udp, "udp", "",
		"Send snapshot packets to this UDP address")
	rootCmd.Flags().BoolVar(&options.NoTUI, "no-tui", false,
		"Log to the terminal instead of running the monitor")

	// Debug Configuration
	flags.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if options.Config == nil {
		// --help or --version
		return nil, nil
	}
	return options, nil
}

// applyFlags copies flags that were set on the command line into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config, fv *flagValues) {
	changed := cmd.Flags().Changed

	if changed("device") {
		cfg.Audio.InputDevice = fv.device
	}
	if changed("output-device") {
		cfg.Audio.OutputDevice = fv.outputDevice
	}
	if changed("channels") {
		cfg.Audio.Channels = fv.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = fv.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = fv.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = fv.lowLatency
	}
	if changed("preset") {
		cfg.State.PresetFile = fv.preset
	}
	if changed("watch") {
		cfg.State.Watch = fv.watch
	}
	if changed("record") {
		cfg.Recording.Enabled = fv.record
	}
	if changed("ws") {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddress = fv.websocket
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = fv.udp
	}
	if fv.verbose {
		cfg.LogLevel = "debug"
		cfg.Transport.LogStats = true
	}
}

// Execute parses os.Args. It exits the process on --help and --version.
func Execute() *Options {
	options, err := ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if options == nil {
		os.Exit(0)
	}
	return options
}
