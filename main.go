// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"colorizr/cmd"
	"colorizr/internal/audio"
	"colorizr/internal/config"
	"colorizr/internal/engine"
	"colorizr/internal/log"
	"colorizr/internal/rt"
	"colorizr/internal/state"
	"colorizr/internal/transport"
	"colorizr/internal/transport/udp"
	"colorizr/internal/tui"
	"colorizr/pkg/build"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// main is the entry point for the colorizer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Configure runtime settings
//   - Execute one-off commands if requested
//   - Load the preset and configure the engine
//
// 2. Concurrent Phase (Hot Path):
//   - Start the duplex stream
//   - Start recording if enabled
//   - Publish snapshots to the monitor and network sinks
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop publishing, recording and the stream
//   - Save the preset if requested
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Initialize build information including version, commit hash, and build time
	if err := build.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}

	opts := cmd.Execute()
	cfg := opts.Config
	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}

	// One thread for the audio callback, one for UI and I/O. Memory is only
	// locked for the live host.
	rt.Prepare(2, opts.Command == "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch opts.Command {
	case cmd.CommandList:
		err = listDevices(opts.InputsOnly)
	case cmd.CommandRender:
		err = render(ctx, cfg, opts.Args[0], opts.Args[1], opts.BitDepth)
	case cmd.CommandPlay:
		err = play(ctx, cfg, opts.Args[0])
	case cmd.CommandPreset:
		err = printPreset(cfg)
	default:
		err = live(ctx, opts)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// newEngine creates an engine with the preset and gate settings applied.
// The host configures it once the stream format is known.
func newEngine(cfg *config.Config) (*engine.Engine, state.PluginState) {
	eng := engine.New()

	preset := state.Default()
	if cfg.State.PresetFile != "" {
		var err error
		preset, err = state.Load(cfg.State.PresetFile)
		if err != nil {
			log.Warnf("using default preset: %v", err)
		}
	}
	preset.Apply(eng.Params())

	eng.SetGateThreshold(cfg.Analysis.GateThreshold)
	if cfg.Analysis.GateEnabled {
		eng.EnableGate()
	} else {
		eng.DisableGate()
	}
	return eng, preset
}

func listDevices(inputsOnly bool) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices(os.Stdout, inputsOnly)
}

func render(ctx context.Context, cfg *config.Config, in, out string, bitDepth int) error {
	eng, _ := newEngine(cfg)
	setup, err := cfg.EngineSetup()
	if err != nil {
		return err
	}

	last := -1
	_, err = audio.RenderFile(ctx, eng, setup, in, out, bitDepth, func(done, total int) {
		if pct := done * 100 / max(total, 1); pct != last && term.IsTerminal(int(os.Stderr.Fd())) {
			last = pct
			fmt.Fprintf(os.Stderr, "\rrendering %3d%%", pct)
		}
	})
	if last >= 0 {
		fmt.Fprintln(os.Stderr)
	}
	return err
}

func play(ctx context.Context, cfg *config.Config, in string) error {
	eng, _ := newEngine(cfg)
	setup, err := cfg.EngineSetup()
	if err != nil {
		return err
	}
	clip, err := audio.ReadWAV(in)
	if err != nil {
		return err
	}

	player, err := audio.NewPlayer(eng, setup, clip)
	if err != nil {
		return err
	}
	defer player.Close()

	total := time.Duration(float64(clip.Frames()) / float64(clip.SampleRate) * float64(time.Second))
	showProgress := term.IsTerminal(int(os.Stdout.Fd()))
	err = player.Play(ctx, func(pos time.Duration) {
		if showProgress {
			fmt.Printf("\r%s / %s", pos.Round(100*time.Millisecond), total.Round(100*time.Millisecond))
		}
	})
	if showProgress {
		fmt.Println()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printPreset(cfg *config.Config) error {
	_, preset := newEngine(cfg)
	data, err := preset.Serialize()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// live runs the duplex host until ctx is cancelled or the monitor quits.
func live(ctx context.Context, opts *cmd.Options) error {
	cfg := opts.Config

	// Initialize PortAudio subsystem
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	useTUI := cfg.UI.TUI && term.IsTerminal(int(os.Stdout.Fd()))
	if opts.Pick {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("--pick needs an interactive terminal")
		}
		sel, ok, err := tui.PickDevices()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cfg.Audio.InputDevice = sel.InputID
		cfg.Audio.OutputDevice = sel.OutputID
		cfg.Audio.SampleRate = sel.SampleRate
	}

	eng, preset := newEngine(cfg)
	host, err := audio.NewHost(cfg, eng)
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// CRITICAL: Start of real-time audio processing
	// Once the stream starts, PortAudio calls the host callback on its own
	// thread, marking the start of the hot path
	if err := host.Start(); err != nil {
		return err
	}
	defer func() {
		if err := host.Close(); err != nil {
			log.Errorf("closing audio host: %v", err)
		}
	}()

	if cfg.Recording.Enabled {
		if err := os.MkdirAll(filepath.Dir(opts.RecordFile), 0o755); err != nil {
			return err
		}
		if err := host.StartRecording(opts.RecordFile); err != nil {
			return err
		}
	}

	if cfg.State.Watch && cfg.State.PresetFile != "" {
		watcher, err := state.Watch(cfg.State.PresetFile, func(s state.PluginState) {
			s.Apply(eng.Params())
			log.Infof("preset reloaded from %s", cfg.State.PresetFile)
		})
		if err != nil {
			log.Warnf("not watching preset: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	sinks, err := networkSinks(cfg, eng)
	if err != nil {
		return err
	}

	save := func() error {
		if cfg.State.PresetFile == "" {
			return fmt.Errorf("no preset file configured")
		}
		return state.Save(cfg.State.PresetFile, state.Capture(eng.Params(), preset.Editor))
	}

	var program *tea.Program
	if useTUI {
		// The monitor owns the terminal; logs go to a file.
		logFile, err := os.OpenFile(cfg.UI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer logFile.Close()
		log.SetOutput(logFile)
		defer log.SetOutput(os.Stderr)

		program = tea.NewProgram(tui.NewMonitor(tui.MonitorOptions{
			Title:  build.GetBuildFlags().Name + " " + build.GetBuildFlags().Version,
			Params: eng.Params(),
			Save:   save,
		}), tea.WithAltScreen(), tea.WithContext(ctx))
		sinks = append(sinks, tui.NewProgramSink(program))
	}

	publisher, err := transport.NewPublisher(cfg.Transport.PublishInterval, eng.Snapshots(), eng.Stats, sinks...)
	if err != nil {
		return err
	}
	publisher.Start()

	// Block until termination signal is received
	if program != nil {
		if _, err := program.Run(); err != nil && ctx.Err() == nil {
			log.Errorf("monitor: %v", err)
		}
	} else {
		fmt.Printf("Running. '%s --help' for usage information, Ctrl+C to stop.\n", build.GetBuildFlags().Name)
		<-ctx.Done()
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := publisher.Close(); err != nil {
		log.Errorf("closing publisher: %v", err)
	}

	if cfg.Recording.Enabled {
		if err := host.StopRecording(); err != nil {
			log.Errorf("stopping recording: %v", err)
		} else {
			fmt.Printf("\nRecording saved to: %s\n", opts.RecordFile)
		}
	}

	if cfg.State.SaveOnExit && cfg.State.PresetFile != "" {
		if err := save(); err != nil {
			log.Errorf("saving preset: %v", err)
		}
	}

	stats := eng.Stats()
	log.Infof("processed %d block(s), %d callback(s), %d overrun(s), %d underrun(s)",
		stats.Blocks, host.Callbacks(), stats.Overruns, stats.Underruns)
	return nil
}

// networkSinks builds the configured snapshot sinks.
func networkSinks(cfg *config.Config, eng *engine.Engine) ([]transport.Transport, error) {
	var sinks []transport.Transport

	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, eng.Params())
		if err != nil {
			return nil, err
		}
		log.Infof("serving snapshots on ws://%s/ws", ws.Addr())
		sinks = append(sinks, ws)
	}
	if cfg.Transport.UDPEnabled {
		sink, err := udp.Dial(cfg.Transport.UDPTargetAddress)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	if cfg.Transport.LogStats {
		sinks = append(sinks, transport.NewLoggingTransport(30))
	}
	return sinks, nil
}
