// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned for files that are not valid PCM WAV.
var ErrNotWAV = errors.New("not a valid WAV file")

// Clip is a decoded PCM file held as planar float32 in [-1, 1].
type Clip struct {
	SampleRate int
	BitDepth   int
	Channels   [][]float32
}

// Frames returns the length of the clip in frames.
func (c *Clip) Frames() int {
	if len(c.Channels) == 0 {
		return 0
	}
	return len(c.Channels[0])
}

// ReadWAV decodes a PCM WAV file.
func ReadWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}

	depth := int(dec.BitDepth)
	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	scale := 1 / math.Exp2(float64(depth-1))

	clip := &Clip{
		SampleRate: int(dec.SampleRate),
		BitDepth:   depth,
		Channels:   make([][]float32, channels),
	}
	for c := range clip.Channels {
		clip.Channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := buf.Data[i*channels+c]
			if depth == 8 {
				v -= 128 // 8-bit WAV is unsigned.
			}
			clip.Channels[c][i] = float32(float64(v) * scale)
		}
	}
	return clip, nil
}

// WriteWAV encodes clip as PCM with the given bit depth.
func WriteWAV(path string, clip *Clip, bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	channels := len(clip.Channels)
	if channels == 0 {
		return fmt.Errorf("clip has no channels")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	frames := clip.Frames()
	scale := math.Exp2(float64(bitDepth-1)) - 1
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: clip.SampleRate},
		Data:           make([]int, frames*channels),
		SourceBitDepth: bitDepth,
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			s := math.Max(-1, math.Min(1, float64(clip.Channels[c][i])))
			buf.Data[i*channels+c] = int(math.Round(s * scale))
		}
	}

	enc := wav.NewEncoder(f, clip.SampleRate, bitDepth, channels, 1)
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
