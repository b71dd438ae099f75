// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"colorizr/internal/engine"
	"colorizr/pkg/utils"

	"github.com/ebitengine/oto/v3"
)

// ClipReader streams a clip through an engine as interleaved float32 LE
// bytes. Blocks are processed lazily as the consumer reads.
type ClipReader struct {
	engine    *engine.Engine
	clip      *Clip
	blockSize int

	block  [][]float32 // Views into clip, reused per block.
	frame  []float32   // Interleaved samples of the current block.
	out    []byte      // Encoded bytes of the current block.
	outPos int
	pos    int // Frames processed so far.

	played atomic.Int64 // Frames handed to the consumer.
	done   atomic.Bool
}

// NewClipReader configures eng for clip and returns a reader over it.
func NewClipReader(eng *engine.Engine, setup engine.Setup, clip *Clip) (*ClipReader, error) {
	setup.SampleRate = float64(clip.SampleRate)
	setup.Channels = len(clip.Channels)
	if err := eng.Configure(setup); err != nil {
		return nil, err
	}
	return &ClipReader{
		engine:    eng,
		clip:      clip,
		blockSize: setup.MaxBlockSize,
		block:     make([][]float32, len(clip.Channels)),
		frame:     make([]float32, setup.MaxBlockSize*len(clip.Channels)),
		out:       make([]byte, 0, setup.MaxBlockSize*len(clip.Channels)*4),
	}, nil
}

// Read implements io.Reader. It returns io.EOF after the last frame.
func (r *ClipReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if r.outPos == len(r.out) && !r.next() {
			r.done.Store(true)
			if n == 0 {
				return 0, io.EOF
			}
			break
		}
		c := copy(p[n:], r.out[r.outPos:])
		r.outPos += c
		n += c
	}
	frameBytes := 4 * len(r.clip.Channels)
	r.played.Store(int64(r.pos) - int64((len(r.out)-r.outPos)/frameBytes))
	return n, nil
}

// next processes one block and interleaves it into r.out.
func (r *ClipReader) next() bool {
	frames := r.clip.Frames()
	if r.pos >= frames {
		return false
	}
	end := min(r.pos+r.blockSize, frames)
	for c := range r.block {
		r.block[c] = r.clip.Channels[c][r.pos:end]
	}
	r.engine.Process(r.block, nil)

	n := utils.Interleave(r.frame[:(end-r.pos)*len(r.block)], r.block) * len(r.block)
	r.out = r.out[:0]
	for _, s := range r.frame[:n] {
		r.out = binary.LittleEndian.AppendUint32(r.out, math.Float32bits(s))
	}
	r.outPos = 0
	r.pos = end
	return true
}

// Position returns how far playback has been read.
func (r *ClipReader) Position() time.Duration {
	return time.Duration(float64(r.played.Load()) / float64(r.clip.SampleRate) * float64(time.Second))
}

// Done reports whether the whole clip has been read.
func (r *ClipReader) Done() bool {
	return r.done.Load()
}

// Player plays a clip through the engine on the default output via oto.
type Player struct {
	ctx    *oto.Context
	player *oto.Player
	reader *ClipReader
	mu     sync.Mutex
}

// NewPlayer opens the output and prepares clip for playback. oto allows a
// single context per process.
func NewPlayer(eng *engine.Engine, setup engine.Setup, clip *Clip) (*Player, error) {
	reader, err := NewClipReader(eng, setup, clip)
	if err != nil {
		return nil, err
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   clip.SampleRate,
		ChannelCount: len(clip.Channels),
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(float64(setup.MaxBlockSize) / float64(clip.SampleRate) * 2 * float64(time.Second)),
	})
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}
	<-ready

	return &Player{
		ctx:    ctx,
		player: ctx.NewPlayer(reader),
		reader: reader,
	}, nil
}

// Play starts playback and blocks until the clip ends or ctx is cancelled.
// progress, if set, is called periodically with the playback position.
func (p *Player) Play(ctx context.Context, progress func(time.Duration)) error {
	p.mu.Lock()
	p.player.Play()
	p.mu.Unlock()
	logger.Infof("playing %d frame(s) at %d Hz", p.reader.clip.Frames(), p.reader.clip.SampleRate)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.player.Pause()
			p.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			if progress != nil {
				progress(p.reader.Position())
			}
			p.mu.Lock()
			playing := p.player.IsPlaying()
			p.mu.Unlock()
			if !playing && p.reader.Done() {
				return nil
			}
		}
	}
}

// Close releases the oto player.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	p.player = nil
	return err
}
