// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"colorizr/pkg/bitint"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// drainInterval is how often the writer goroutine empties the ring.
const drainInterval = 20 * time.Millisecond

// ErrRecording is returned when starting a recorder that is already running.
var ErrRecording = errors.New("already recording")

// RecorderOptions describes the recorded stream.
type RecorderOptions struct {
	SampleRate  int
	Channels    int
	BitDepth    int           // 16, 24 or 32.
	MaxDuration time.Duration // 0 for unlimited.
	Buffer      time.Duration // Ring capacity; defaults to one second.
}

// Recorder writes processed audio to a WAV file. Write is called on the
// audio goroutine and only copies into a single-producer/single-consumer
// ring; a writer goroutine encodes to disk.
type Recorder struct {
	opts RecorderOptions

	ring     []float32 // Interleaved samples.
	mask     uint64
	writePos atomic.Uint64 // Producer position in samples.
	readPos  atomic.Uint64 // Consumer position in samples.

	limit   uint64 // Max samples accepted, 0 for unlimited.
	written uint64 // Samples accepted, audio goroutine only.

	dropped atomic.Uint64 // Frames lost to a full ring.
	active  atomic.Bool

	file    *os.File
	encoder *wav.Encoder
	intBuf  *audio.IntBuffer
	scale   float64

	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
	err      error
}

// StartRecorder creates filename and starts the writer goroutine.
func StartRecorder(filename string, opts RecorderOptions) (*Recorder, error) {
	if opts.SampleRate <= 0 || opts.Channels <= 0 {
		return nil, fmt.Errorf("recorder: invalid stream %d Hz x %d", opts.SampleRate, opts.Channels)
	}
	switch opts.BitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("recorder: unsupported bit depth %d", opts.BitDepth)
	}
	if opts.Buffer <= 0 {
		opts.Buffer = time.Second
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	capacity := bitint.NextPowerOfTwo(int(opts.Buffer.Seconds()*float64(opts.SampleRate)) * opts.Channels)
	r := &Recorder{
		opts:    opts,
		ring:    make([]float32, capacity),
		mask:    uint64(bitint.Mask(capacity)),
		file:    file,
		encoder: wav.NewEncoder(file, opts.SampleRate, opts.BitDepth, opts.Channels, 1),
		intBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: opts.Channels,
				SampleRate:  opts.SampleRate,
			},
			Data:           make([]int, 0, capacity),
			SourceBitDepth: opts.BitDepth,
		},
		scale:    math.Exp2(float64(opts.BitDepth-1)) - 1,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	if opts.MaxDuration > 0 {
		r.limit = uint64(opts.MaxDuration.Seconds()*float64(opts.SampleRate)) * uint64(opts.Channels)
	}
	r.active.Store(true)

	go r.run()
	logger.Infof("recording to %s (%d Hz, %d ch, %d bit)", filename, opts.SampleRate, opts.Channels, opts.BitDepth)
	return r, nil
}

// Write appends a planar block. Audio goroutine only; never blocks and never
// allocates. Frames that do not fit are dropped and counted.
func (r *Recorder) Write(block [][]float32) {
	if !r.active.Load() || len(block) == 0 {
		return
	}
	channels := r.opts.Channels
	frames := len(block[0])
	for _, ch := range block {
		frames = min(frames, len(ch))
	}

	w := r.writePos.Load()
	free := uint64(len(r.ring)) - (w - r.readPos.Load())
	if room := free / uint64(channels); uint64(frames) > room {
		r.dropped.Add(uint64(frames) - room)
		frames = int(room)
	}
	if r.limit > 0 {
		remaining := (r.limit - r.written) / uint64(channels)
		if uint64(frames) > remaining {
			frames = int(remaining)
		}
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			var s float32
			if c < len(block) {
				s = block[c][i]
			}
			r.ring[w&r.mask] = s
			w++
		}
	}
	r.written += uint64(frames * channels)
	r.writePos.Store(w)
}

// run drains the ring until Stop.
func (r *Recorder) run() {
	defer close(r.finished)
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.drain(); err != nil {
				r.err = err
				r.active.Store(false)
				logger.Errorf("recording stopped: %v", err)
				return
			}
		case <-r.done:
			r.err = r.drain()
			return
		}
	}
}

func (r *Recorder) drain() error {
	rd := r.readPos.Load()
	w := r.writePos.Load()
	if rd == w {
		return nil
	}

	data := r.intBuf.Data[:0]
	for ; rd != w; rd++ {
		s := float64(r.ring[rd&r.mask])
		s = math.Max(-1, math.Min(1, s))
		data = append(data, int(math.Round(s*r.scale)))
	}
	r.intBuf.Data = data
	r.readPos.Store(rd)

	return r.encoder.Write(r.intBuf)
}

// Dropped returns the number of frames lost because the writer fell behind.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Stop flushes pending audio and closes the file. The caller must ensure
// Write is no longer running, e.g. by swapping the recorder out first.
func (r *Recorder) Stop() error {
	r.stopOnce.Do(func() {
		r.active.Store(false)
		close(r.done)
		<-r.finished

		err := r.err
		if cerr := r.encoder.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if cerr := r.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if d := r.dropped.Load(); d > 0 {
			logger.Warnf("recording dropped %d frame(s)", d)
		}
		logger.Infof("recording saved to %s", r.file.Name())
		r.err = err
	})
	return r.err
}
