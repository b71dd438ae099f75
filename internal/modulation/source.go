// SPDX-License-Identifier: MIT
// Package modulation provides the smooth random source that wobbles the filter
// bank's base frequency.
package modulation

import (
	"math"

	"github.com/aquilax/go-perlin"
)

const (
	// Per-octave falloff and frequency multiplier of the noise.
	alpha   = 2.0
	beta    = 2.0
	octaves = 3

	// gain spreads the noise output, which rarely leaves ±0.7, across ±1.
	gain = 1.6
)

// Source is a deterministic, continuous noise source with output in [-1, 1].
// It is owned by the audio goroutine.
type Source struct {
	noise      *perlin.Perlin
	seed       int64
	sampleRate float64
	position   float64 // Noise coordinate, advances by rate/sampleRate per sample.
	value      float64
}

// New creates a source for the given seed. The same seed and the same
// sequence of Advance calls always produce the same values.
func New(seed int64, sampleRate float64) *Source {
	return &Source{
		noise:      perlin.NewPerlin(alpha, beta, octaves, seed),
		seed:       seed,
		sampleRate: sampleRate,
	}
}

// SetSampleRate changes the sample rate used to convert rate to coordinate
// steps. Cold path only.
func (s *Source) SetSampleRate(sampleRate float64) {
	s.sampleRate = sampleRate
}

// Advance moves the source n samples forward at rateHz and returns the new
// value.
func (s *Source) Advance(n int, rateHz float64) float64 {
	if n <= 0 || s.sampleRate <= 0 {
		return s.value
	}
	if rateHz < 0 || math.IsNaN(rateHz) {
		rateHz = 0
	}

	s.position += float64(n) * rateHz / s.sampleRate
	v := s.noise.Noise1D(s.position) * gain
	s.value = math.Max(-1, math.Min(1, v))
	return s.value
}

// Value returns the last computed value.
func (s *Source) Value() float64 {
	return s.value
}

// Position returns the current noise coordinate.
func (s *Source) Position() float64 {
	return s.position
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Reset returns the source to its initial coordinate.
func (s *Source) Reset() {
	s.position = 0
	s.value = 0
}
