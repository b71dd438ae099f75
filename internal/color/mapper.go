// SPDX-License-Identifier: MIT
// Package color maps the spectral summary onto a fixed rainbow gradient.
// Mapping is pure: the same input always yields the same colour.
package color

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Frequency domain of the mapping.
const (
	MinHz = 20.0
	MaxHz = 15000.0
)

var (
	logMin  = math.Log10(MinHz)
	logSpan = math.Log10(MaxHz) - logMin
)

// rainbowStops is the cubehelix rainbow, sampled at equal spacing.
var rainbowStops = []string{
	"#6e40aa", "#bf3caf", "#fe4b83", "#ff7847", "#e2b72f",
	"#aff05b", "#52f667", "#1ddfa3", "#23abd8", "#4c6edb", "#6e40aa",
}

// Sample is a mapped colour together with the input that produced it.
type Sample struct {
	Input    float64 // Frequency in Hz that was mapped (0 for Map).
	Position float64 // Gradient position in [0, 1].
	R, G, B  uint8
}

// Color returns the sample as a colorful.Color.
func (s Sample) Color() colorful.Color {
	return colorful.Color{R: float64(s.R) / 255, G: float64(s.G) / 255, B: float64(s.B) / 255}
}

// Hex returns the sample as #rrggbb.
func (s Sample) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", s.R, s.G, s.B)
}

// Mapper holds the parsed gradient stops. It is immutable after NewMapper and
// safe for concurrent use.
type Mapper struct {
	stops []colorful.Color
}

// NewMapper builds the default rainbow mapper.
func NewMapper() *Mapper {
	m, err := NewGradient(rainbowStops...)
	if err != nil {
		panic(err) // Built-in stops are valid.
	}
	return m
}

// NewGradient builds a mapper from at least two hex colour stops.
func NewGradient(hexStops ...string) (*Mapper, error) {
	if len(hexStops) < 2 {
		return nil, fmt.Errorf("gradient needs at least two stops, got %d", len(hexStops))
	}
	stops := make([]colorful.Color, len(hexStops))
	for i, h := range hexStops {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("gradient stop %d: %w", i, err)
		}
		stops[i] = c
	}
	return &Mapper{stops: stops}, nil
}

// At returns the gradient colour at t. t is clamped to [0, 1]; NaN maps to 0.
func (m *Mapper) At(t float64) colorful.Color {
	t = clampUnit(t)
	span := t * float64(len(m.stops)-1)
	i := int(span)
	if i >= len(m.stops)-1 {
		return m.stops[len(m.stops)-1]
	}
	return m.stops[i].BlendLuv(m.stops[i+1], span-float64(i)).Clamped()
}

// Map converts a gradient position into a Sample.
func (m *Mapper) Map(t float64) Sample {
	t = clampUnit(t)
	r, g, b := m.At(t).RGB255()
	return Sample{Position: t, R: r, G: g, B: b}
}

// MapFrequency maps a frequency onto the gradient by its log position
// between MinHz and MaxHz.
func (m *Mapper) MapFrequency(hz float64) Sample {
	s := m.Map(Position(hz))
	s.Input = hz
	return s
}

// Position returns the log-frequency position of hz in [0, 1]. Non-positive
// and NaN inputs map to 0.
func Position(hz float64) float64 {
	if !(hz > 0) {
		return 0
	}
	return clampUnit((math.Log10(hz) - logMin) / logSpan)
}

// Frequency is the inverse of Position.
func Frequency(t float64) float64 {
	return math.Pow(10, logMin+clampUnit(t)*logSpan)
}

// Blend fades from a grey of the given brightness towards s by amount in
// [0, 1]. Used by the display to fade inactive curves.
func Blend(s Sample, brightness, amount float64) Sample {
	b := clampUnit(brightness)
	gray := colorful.Color{R: b, G: b, B: b}
	r, g, bl := gray.BlendLuv(s.Color(), clampUnit(amount)).Clamped().RGB255()
	return Sample{Input: s.Input, Position: s.Position, R: r, G: g, B: bl}
}

func clampUnit(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
