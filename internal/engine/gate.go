// SPDX-License-Identifier: MIT
package engine

import (
	"math"
)

// DefaultGateThreshold is ~0.1% of full scale.
const DefaultGateThreshold = 0.001

func (e *Engine) EnableGate() {
	e.gateEnabled.Store(true)
}

func (e *Engine) DisableGate() {
	e.gateEnabled.Store(false)
}

// GateEnabled reports whether the input gate drives the envelope.
func (e *Engine) GateEnabled() bool {
	return e.gateEnabled.Load()
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
// Safe from any goroutine.
func (e *Engine) SetGateThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	e.gateThreshold.Store(math.Float64bits(threshold))
}

// GetGateThreshold returns the current noise gate threshold as a float64.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) GetGateThreshold() float64 {
	return math.Float64frombits(e.gateThreshold.Load())
}

// gateOpen reports whether a block with the given absolute peak passes the
// gate. A threshold of 1 never opens unless the signal is at full scale.
func (e *Engine) gateOpen(peak float64) bool {
	if !e.gateEnabled.Load() {
		return true
	}
	return peak >= e.GetGateThreshold()
}

// blockPeak returns the largest absolute sample of buf.
func blockPeak(buf []float32) float64 {
	var peak float32
	for _, s := range buf {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return float64(peak)
}

// followEnvelope moves env towards target over n samples with a one-pole
// attack/release response.
func followEnvelope(env, target float64, n int, attackMs, releaseMs, sampleRate float64) float64 {
	tau := releaseMs
	if target > env {
		tau = attackMs
	}
	if tau <= 0 || sampleRate <= 0 {
		return target
	}
	coef := math.Exp(-float64(n) / (tau / 1000 * sampleRate))
	return target + (env-target)*coef
}
