// SPDX-License-Identifier: MIT
/*
Package snapshot carries the visual state of the engine from the audio
goroutine to the UI without locks and without tearing.

Channel is a triple buffer. The writer owns one slot, the reader owns one
slot and the third is exchanged through an atomic index. A dirty bit on the
shared index tells the reader whether the exchange slot holds something it
has not seen. Neither side ever waits for the other.
*/
package snapshot

import (
	"sync/atomic"

	"colorizr/internal/color"
	"colorizr/internal/filter"
	"colorizr/internal/param"
)

// SpectrumBands is the number of display bands carried per snapshot.
const SpectrumBands = 48

// MaxVoices is the size of the engine's voice pool.
const MaxVoices = 16

// Voice is the display state of one voice slot.
type Voice struct {
	Active    bool
	Releasing bool
	ID        uint64  // Allocation order, lower is older.
	Hz        float64 // Modulated fundamental.
	Level     float64 // Square-root velocity in (0, 1].
	Envelope  float64
	Freqs     [filter.MaxBands]float64
	Gains     [filter.MaxBands]float64
	Filters   [filter.MaxBands]filter.Coefficients
}

// Snapshot is a fixed-size value. It contains no slices, maps or pointers so
// publishing is a bounded copy.
type Snapshot struct {
	Sequence   uint64 // Increments per publish, starts at 1.
	Timestamp  int64  // Unix nanoseconds at publish time.
	Position   uint64 // Samples processed since Configure.
	SampleRate float64
	State      uint32 // engine.State of the publishing engine.

	Params     [param.Count]float64 // Smoothed values at the end of the block.
	Modulation float64              // Noise value in [-1, 1].
	Envelope   float64              // Attack/release follower in [0, 1].

	PeakHz     float64 // Dominant frequency, 0 when silent.
	PeakDB     float64 // Level of the dominant bin in dBFS.
	CentroidHz float64
	InputDB    float64 // Block peak of the input in dBFS.

	Color    color.Sample
	Spectrum [SpectrumBands]float32 // dBFS per log band.

	// Bands of the lead voice, the one tracking the strongest peak.
	BandCount int
	BandFreqs [filter.MaxBands]float64
	BandGains [filter.MaxBands]float64
	Filters   [filter.MaxBands]filter.Coefficients

	VoiceCount int // Active voices, releasing ones included.
	Voices     [MaxVoices]Voice
}

// Active reports whether any filter band was engaged.
func (s *Snapshot) Active() bool {
	for i := 0; i < s.BandCount && i < filter.MaxBands; i++ {
		if !s.Filters[i].IsIdentity() {
			return true
		}
	}
	for v := range s.Voices {
		if s.Voices[v].Active && s.Voices[v].engaged(s.BandCount) {
			return true
		}
	}
	return false
}

// ActiveFilters appends the coefficients of every engaged band of every
// active voice to dst.
func (s *Snapshot) ActiveFilters(dst []filter.Coefficients) []filter.Coefficients {
	count := min(max(s.BandCount, 0), filter.MaxBands)
	for v := range s.Voices {
		voice := &s.Voices[v]
		if !voice.Active {
			continue
		}
		for k := 0; k < count; k++ {
			if !voice.Filters[k].IsIdentity() {
				dst = append(dst, voice.Filters[k])
			}
		}
	}
	return dst
}

func (v *Voice) engaged(count int) bool {
	for k := 0; k < count && k < filter.MaxBands; k++ {
		if !v.Filters[k].IsIdentity() {
			return true
		}
	}
	return false
}

const (
	dirtyBit  = 1 << 2
	indexMask = dirtyBit - 1
)

// Channel is a single-writer, single-reader triple buffer of Snapshots.
type Channel struct {
	slots [3]Snapshot

	writeIdx   uint32        // Writer-owned slot.
	sharedIdx  atomic.Uint32 // Exchange slot, with dirtyBit when unread.
	readingIdx uint32        // Reader-owned slot.
	hasData    bool          // Reader has received at least one snapshot.

	published   atomic.Uint64
	overwritten atomic.Uint64
}

// NewChannel returns an empty channel.
func NewChannel() *Channel {
	c := &Channel{writeIdx: 0, readingIdx: 2}
	c.sharedIdx.Store(1)
	return c
}

// Publish copies s into the channel. Audio goroutine only.
//
// Hot path: bounded copy plus one atomic swap. If the previous snapshot was
// never read it is replaced, and the contention counter is bumped.
func (c *Channel) Publish(s *Snapshot) {
	c.slots[c.writeIdx] = *s
	prev := c.sharedIdx.Swap(c.writeIdx | dirtyBit)
	if prev&dirtyBit != 0 {
		c.overwritten.Add(1)
	}
	c.writeIdx = prev & indexMask
	c.published.Add(1)
}

// ReadLatest copies the newest snapshot into dst and reports whether one
// exists. A repeated call without a new publish returns the same snapshot.
// UI goroutine only.
func (c *Channel) ReadLatest(dst *Snapshot) bool {
	if c.sharedIdx.Load()&dirtyBit != 0 {
		prev := c.sharedIdx.Swap(c.readingIdx)
		c.readingIdx = prev & indexMask
		c.hasData = true
	}
	if !c.hasData {
		return false
	}
	*dst = c.slots[c.readingIdx]
	return true
}

// Published returns the number of snapshots published.
func (c *Channel) Published() uint64 {
	return c.published.Load()
}

// Overwritten returns how many snapshots were replaced before being read.
func (c *Channel) Overwritten() uint64 {
	return c.overwritten.Load()
}
