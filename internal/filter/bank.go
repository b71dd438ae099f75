// SPDX-License-Identifier: MIT
package filter

import (
	"fmt"
	"math"
)

// MaxBands is the number of sections per channel.
const MaxBands = 8

// Shape selects the design used for a band.
type Shape int

const (
	Peaking Shape = iota
	BandPass
)

// BandParams describes one band of the bank.
type BandParams struct {
	Shape     Shape
	Frequency float64
	GainDB    float64 // Ignored by BandPass.
	Q         float64
	Enabled   bool // Disabled bands are identity.
}

// Bank is a fixed series chain of MaxBands sections per channel. Each channel
// owns its own delay lines. All memory is allocated in New.
type Bank struct {
	sampleRate float64
	sections   [][MaxBands]Biquad
}

// New creates a bank for the given channel count with every band at identity.
func New(channels int, sampleRate float64) (*Bank, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("filter bank needs at least one channel, got %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	b := &Bank{
		sampleRate: sampleRate,
		sections:   make([][MaxBands]Biquad, channels),
	}
	for ch := range b.sections {
		for k := range b.sections[ch] {
			b.sections[ch][k].Coefficients = Identity()
		}
	}
	return b, nil
}

// Channels returns the channel count.
func (b *Bank) Channels() int {
	return len(b.sections)
}

// SampleRate returns the sample rate the bank designs for.
func (b *Bank) SampleRate() float64 {
	return b.sampleRate
}

// Design computes the coefficients for p at the bank's sample rate.
func (b *Bank) Design(p BandParams) Coefficients {
	if !p.Enabled || math.IsNaN(p.Frequency) {
		return Identity()
	}
	if p.Shape == BandPass {
		return Bandpass(b.sampleRate, p.Frequency, p.Q)
	}
	return PeakingEQ(b.sampleRate, p.Frequency, p.GainDB, p.Q)
}

// SetCoefficients redesigns one band of one channel. The delay line is kept
// so parameter sweeps stay continuous. Out of range indices are ignored.
func (b *Bank) SetCoefficients(band, channel int, p BandParams) {
	if band < 0 || band >= MaxBands || channel < 0 || channel >= len(b.sections) {
		return
	}
	b.sections[channel][band].Coefficients = b.Design(p)
}

// SetBand designs p once and applies it to every channel. Returns the
// coefficients used.
func (b *Bank) SetBand(band int, p BandParams) Coefficients {
	c := b.Design(p)
	if band < 0 || band >= MaxBands {
		return c
	}
	for ch := range b.sections {
		b.sections[ch][band].Coefficients = c
	}
	return c
}

// Coefficients returns the current coefficients of a band.
func (b *Bank) Coefficients(band, channel int) Coefficients {
	return b.sections[channel][band].Coefficients
}

// ProcessSample runs x through every band of channel in series.
func (b *Bank) ProcessSample(channel int, x float64) float64 {
	chain := &b.sections[channel]
	for k := range chain {
		x = chain[k].Process(x)
	}
	return x
}

// ProcessBlock filters buf in place for channel.
func (b *Bank) ProcessBlock(channel int, buf []float32) {
	chain := &b.sections[channel]
	for i, s := range buf {
		x := float64(s)
		for k := range chain {
			x = chain[k].Process(x)
		}
		buf[i] = float32(x)
	}
}

// Reset zeroes every delay line. Coefficients are kept.
func (b *Bank) Reset() {
	for ch := range b.sections {
		for k := range b.sections[ch] {
			b.sections[ch][k].Reset()
		}
	}
}

// Response evaluates the combined response of a channel's chain at freqHz.
func (b *Bank) Response(channel int, freqHz float64) complex128 {
	h := complex(1, 0)
	for k := range b.sections[channel] {
		h *= b.sections[channel][k].Response(freqHz, b.sampleRate)
	}
	return h
}

// ChainResponse evaluates a series of coefficient sets at freqHz. Used by
// readers that only hold a copy of the coefficients.
func ChainResponse(coeffs []Coefficients, freqHz, sampleRate float64) complex128 {
	h := complex(1, 0)
	for _, c := range coeffs {
		h *= c.Response(freqHz, sampleRate)
	}
	return h
}
