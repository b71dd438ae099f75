// SPDX-License-Identifier: MIT
package param

import (
	"math"
	"sync/atomic"
)

// Set holds the live parameter state of one plugin instance.
//
// Targets are float64 bit patterns in atomics so the host, the TUI or a
// WebSocket client can change them from their own goroutines while the audio
// goroutine reads them lock-free in Advance.
type Set struct {
	targets   [Count]atomic.Uint64
	smoothers [Count]Smoother
	changes   atomic.Uint64 // Bumped on every SetTarget, lets readers detect edits.
}

// NewSet creates a Set with every parameter at its default.
func NewSet() *Set {
	s := &Set{}
	for i := range Schema {
		spec := &Schema[i]
		s.targets[i].Store(math.Float64bits(spec.Default))
		s.smoothers[i] = NewSmoother(spec.Style, spec.Default)
	}
	return s
}

// SetSampleRate recomputes ramp lengths. Cold path only.
func (s *Set) SetSampleRate(sampleRate float64) {
	for i := range Schema {
		s.smoothers[i].SetRamp(sampleRate, Schema[i].RampMs)
	}
}

// SetTarget sets the value a parameter should move to. Safe from any
// goroutine. Out of range values are clamped, NaN is ignored.
func (s *Set) SetTarget(id ID, value float64) {
	if id < 0 || id >= Count || math.IsNaN(value) {
		return
	}
	s.targets[id].Store(math.Float64bits(Schema[id].Clamp(value)))
	s.changes.Add(1)
}

// SetNormalized sets a target from a [0, 1] value.
func (s *Set) SetNormalized(id ID, normalized float64) {
	if id < 0 || id >= Count {
		return
	}
	s.SetTarget(id, Schema[id].Denormalize(normalized))
}

// Target returns the current target of a parameter. Safe from any goroutine.
func (s *Set) Target(id ID) float64 {
	if id < 0 || id >= Count {
		return 0
	}
	return math.Float64frombits(s.targets[id].Load())
}

// Targets copies all targets. Safe from any goroutine.
func (s *Set) Targets() [Count]float64 {
	var out [Count]float64
	for i := range out {
		out[i] = math.Float64frombits(s.targets[i].Load())
	}
	return out
}

// Changes returns a counter that increases with every target update.
func (s *Set) Changes() uint64 {
	return s.changes.Load()
}

// Advance picks up new targets and moves every smoother n samples forward.
// Audio goroutine only.
func (s *Set) Advance(n int) {
	for i := range s.smoothers {
		t := math.Float64frombits(s.targets[i].Load())
		s.smoothers[i].SetTarget(t)
		s.smoothers[i].Advance(n)
	}
}

// Value returns the smoothed value of a parameter. Audio goroutine only.
func (s *Set) Value(id ID) float64 {
	return s.smoothers[id].current
}

// Bool returns a switch parameter as a bool. Audio goroutine only.
func (s *Set) Bool(id ID) bool {
	return s.smoothers[id].current >= 0.5
}

// Int returns a discrete parameter as an int. Audio goroutine only.
func (s *Set) Int(id ID) int {
	return int(math.Round(s.smoothers[id].current))
}

// Values copies all smoothed values into dst. Audio goroutine only.
func (s *Set) Values(dst *[Count]float64) {
	for i := range s.smoothers {
		dst[i] = s.smoothers[i].current
	}
}

// Snap makes every smoothed value jump to its target, e.g. after loading a
// preset while the engine is not running. Audio goroutine or quiescent only.
func (s *Set) Snap() {
	for i := range s.smoothers {
		s.smoothers[i].Reset(math.Float64frombits(s.targets[i].Load()))
	}
}

// Smoother exposes the smoother of a parameter for inspection in tests and
// debug views. Audio goroutine only.
func (s *Set) Smoother(id ID) *Smoother {
	return &s.smoothers[id]
}
