// SPDX-License-Identifier: MIT
/*
Package audio connects the colorizer engine to the outside world:
- a PortAudio duplex stream that processes live input in place
- an oto player that processes a WAV file on its way to the speakers
- an offline renderer for WAV files
- a lock-free recorder of the processed output

Thread Safety:
- The PortAudio callback (or oto Read) is the audio goroutine; it only calls
  engine.Process and Recorder.Write
- The recorder is swapped in and out through an atomic pointer
- Buffers are pre-allocated before a stream starts
*/
package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"colorizr/internal/config"
	"colorizr/internal/engine"
	"colorizr/internal/log"

	"github.com/gordonklaus/portaudio"
)

var logger = log.For("audio")

// Host runs an engine on a PortAudio duplex stream.
type Host struct {
	cfg    *config.Config
	engine *engine.Engine

	inputDevice  *portaudio.DeviceInfo
	outputDevice *portaudio.DeviceInfo
	inputLatency time.Duration
	outLatency   time.Duration
	stream       *portaudio.Stream

	recorder  atomic.Pointer[Recorder]
	callbacks atomic.Uint64
	mu        sync.Mutex // Serialises Start/Stop/recording control.
}

// NewHost resolves the configured devices. The engine is configured when the
// stream starts.
func NewHost(cfg *config.Config, eng *engine.Engine) (*Host, error) {
	in, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, fmt.Errorf("input device: %w", err)
	}
	out, err := OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		return nil, fmt.Errorf("output device: %w", err)
	}

	h := &Host{
		cfg:          cfg,
		engine:       eng,
		inputDevice:  in,
		outputDevice: out,
	}
	if cfg.Audio.LowLatency {
		h.inputLatency = in.DefaultLowInputLatency
		h.outLatency = out.DefaultLowOutputLatency
	} else {
		h.inputLatency = in.DefaultHighInputLatency
		h.outLatency = out.DefaultHighOutputLatency
	}
	return h, nil
}

// Start configures the engine for the stream and starts processing.
func (h *Host) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stream != nil {
		return fmt.Errorf("stream already running")
	}

	channels := h.cfg.Audio.Channels
	channels = min(channels, h.inputDevice.MaxInputChannels, h.outputDevice.MaxOutputChannels)
	if channels < 1 {
		return fmt.Errorf("devices %q/%q have no common channels", h.inputDevice.Name, h.outputDevice.Name)
	}

	setup, err := h.cfg.EngineSetup()
	if err != nil {
		return err
	}
	setup.Channels = channels
	if err := h.engine.Configure(setup); err != nil {
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   h.inputDevice,
			Channels: channels,
			Latency:  h.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   h.outputDevice,
			Channels: channels,
			Latency:  h.outLatency,
		},
		FramesPerBuffer: h.cfg.Audio.FramesPerBuffer,
		SampleRate:      h.cfg.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, h.process)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("starting stream: %w", err)
	}
	h.stream = stream

	info := stream.Info()
	logger.Infof("stream started: %s -> %s, %d ch @ %.0f Hz, latency in %v out %v, engine latency %d samples",
		h.inputDevice.Name, h.outputDevice.Name, channels, info.SampleRate,
		info.InputLatency, info.OutputLatency, h.engine.Latency())
	return nil
}

// process is the PortAudio callback.
// Performance Critical:
// - Uses pre-allocated buffers only
// - No locks, no allocations
func (h *Host) process(in, out [][]float32) {
	for c := range out {
		if c < len(in) {
			copy(out[c], in[c])
		} else {
			clear(out[c])
		}
	}
	h.engine.Process(out, nil)
	if r := h.recorder.Load(); r != nil {
		r.Write(out)
	}
	h.callbacks.Add(1)
}

// Callbacks returns how many times the stream callback ran.
func (h *Host) Callbacks() uint64 {
	return h.callbacks.Load()
}

// Stop stops and closes the stream.
func (h *Host) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stream == nil {
		return nil
	}

	if err := h.stream.Stop(); err != nil {
		return err
	}
	if err := h.stream.Close(); err != nil {
		return err
	}
	h.stream = nil
	if err := h.engine.Suspend(); err != nil {
		logger.Debugf("suspend after stop: %v", err)
	}
	return nil
}

// StartRecording records the processed output to filename.
func (h *Host) StartRecording(filename string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recorder.Load() != nil {
		return ErrRecording
	}

	setup := h.engine.Setup()
	r, err := StartRecorder(filename, RecorderOptions{
		SampleRate:  int(setup.SampleRate),
		Channels:    setup.Channels,
		BitDepth:    h.cfg.Recording.BitDepth,
		MaxDuration: time.Duration(h.cfg.Recording.MaxDuration) * time.Second,
	})
	if err != nil {
		return err
	}
	h.recorder.Store(r)
	return nil
}

// StopRecording detaches the recorder and flushes it to disk.
func (h *Host) StopRecording() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.recorder.Swap(nil)
	if r == nil {
		return nil
	}
	// The callback may still hold r for the rest of one block.
	time.Sleep(h.blockDuration())
	return r.Stop()
}

func (h *Host) blockDuration() time.Duration {
	sr := h.cfg.Audio.SampleRate
	if sr <= 0 {
		return 0
	}
	return time.Duration(float64(h.cfg.Audio.FramesPerBuffer)/sr*float64(time.Second)) + time.Millisecond
}

// Close stops recording and the stream.
func (h *Host) Close() error {
	if err := h.StopRecording(); err != nil {
		return err
	}
	return h.Stop()
}
