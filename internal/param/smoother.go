// SPDX-License-Identifier: MIT
package param

import "math"

// minLogValue keeps logarithmic ramps away from log(0).
const minLogValue = 1e-6

// Smoother ramps a value towards a target over a fixed number of samples.
// It belongs to the audio goroutine and never allocates.
type Smoother struct {
	style       Style
	current     float64
	target      float64
	step        float64 // additive step (Linear) or multiplicative factor (Logarithmic)
	remaining   int
	rampSamples int
}

// NewSmoother returns a smoother resting at value.
func NewSmoother(style Style, value float64) Smoother {
	return Smoother{style: style, current: value, target: value}
}

// SetRamp sets the ramp length from a duration in milliseconds.
func (s *Smoother) SetRamp(sampleRate, ms float64) {
	n := int(math.Round(sampleRate * ms / 1000))
	if n < 0 {
		n = 0
	}
	s.rampSamples = n
}

// RampSamples returns the ramp length in samples.
func (s *Smoother) RampSamples() int {
	return s.rampSamples
}

// Reset jumps to value and cancels any ramp in progress.
func (s *Smoother) Reset(value float64) {
	s.current = value
	s.target = value
	s.remaining = 0
}

// SetTarget starts a ramp from the current value towards target. A new target
// arriving mid-ramp restarts from where the value is now, never from the
// original starting point.
func (s *Smoother) SetTarget(target float64) {
	if target == s.target {
		return
	}
	s.target = target

	if s.style == None || s.rampSamples == 0 {
		s.current = target
		s.remaining = 0
		return
	}

	s.remaining = s.rampSamples
	n := float64(s.rampSamples)

	if s.style == Logarithmic {
		from := math.Max(s.current, minLogValue)
		to := math.Max(target, minLogValue)
		s.current = from
		s.step = math.Exp((math.Log(to) - math.Log(from)) / n)
		return
	}
	s.step = (target - s.current) / n
}

// Next advances by one sample and returns the new value.
func (s *Smoother) Next() float64 {
	if s.remaining == 0 {
		return s.current
	}
	s.remaining--
	switch {
	case s.remaining == 0:
		s.current = s.target
	case s.style == Logarithmic:
		s.current *= s.step
	default:
		s.current += s.step
	}
	return s.current
}

// Advance moves n samples forward and returns the value reached.
func (s *Smoother) Advance(n int) float64 {
	if s.remaining == 0 || n <= 0 {
		return s.current
	}
	if n >= s.remaining {
		s.current = s.target
		s.remaining = 0
		return s.current
	}
	s.remaining -= n
	if s.style == Logarithmic {
		s.current *= math.Pow(s.step, float64(n))
	} else {
		s.current += s.step * float64(n)
	}
	return s.current
}

// Value returns the current smoothed value.
func (s *Smoother) Value() float64 {
	return s.current
}

// Target returns the value being ramped towards.
func (s *Smoother) Target() float64 {
	return s.target
}

// IsSmoothing reports whether a ramp is in progress.
func (s *Smoother) IsSmoothing() bool {
	return s.remaining > 0
}
