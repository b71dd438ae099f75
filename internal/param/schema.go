// SPDX-License-Identifier: MIT
/*
Package param defines the fixed parameter schema of the colorizer and the
smoothing machinery that turns host/UI target changes into click-free values
on the audio thread.

Thread Safety:
- Targets are written from any goroutine through atomics (float64 bits)
- Smoothed values are owned and advanced by the audio goroutine only
- No locks, no allocations after construction
*/
package param

import (
	"fmt"
	"math"
	"strings"
)

// ID identifies a parameter. IDs are dense so they can index fixed arrays.
type ID int

const (
	Gain ID = iota
	Delta
	ModDepth
	ModRate
	Attack
	Release
	Q
	FilterMode
	BandCount
	Safety
	Voices

	// Count is the number of parameters in the schema.
	Count
)

// Style selects how a parameter moves towards a new target.
type Style int

const (
	// None jumps straight to the target. Used for switches, enums and counts.
	None Style = iota
	// Linear ramps linearly over a fixed number of samples.
	Linear
	// Logarithmic ramps linearly in the log domain. Values must be positive.
	Logarithmic
)

// Kind describes how a parameter value is presented and quantised.
type Kind int

const (
	Continuous Kind = iota
	Toggle
	Choice
	Integer
)

// Filter modes for the FilterMode parameter.
const (
	ModeBoost = 0
	ModeCut   = 1
)

var modeNames = []string{"Boost", "Cut"}

// Spec describes a single parameter of the schema.
type Spec struct {
	ID       ID
	Key      string // Stable identifier used in presets and over the wire.
	Name     string // Display name.
	Unit     string
	Kind     Kind
	Min      float64
	Max      float64
	Default  float64
	Style    Style
	RampMs   float64 // Smoothing time for Linear and Logarithmic styles.
	Choices  []string
	StepSize float64 // Coarse UI step.
}

// Schema is the complete, ordered parameter schema.
var Schema = [Count]Spec{
	Gain: {
		ID: Gain, Key: "gain", Name: "Band Gain", Unit: "dB", Kind: Continuous,
		Min: 2, Max: 40, Default: 10, Style: Logarithmic, RampMs: 50, StepSize: 1,
	},
	Delta: {
		ID: Delta, Key: "delta", Name: "Delta", Kind: Toggle,
		Min: 0, Max: 1, Default: 0, Style: None, StepSize: 1,
	},
	ModDepth: {
		ID: ModDepth, Key: "mod_depth", Name: "Mod Depth", Unit: "oct", Kind: Continuous,
		Min: 0, Max: 1, Default: 0.25, Style: Linear, RampMs: 50, StepSize: 0.05,
	},
	ModRate: {
		ID: ModRate, Key: "mod_rate", Name: "Mod Rate", Unit: "Hz", Kind: Continuous,
		Min: 0.01, Max: 10, Default: 0.5, Style: Logarithmic, RampMs: 100, StepSize: 0.1,
	},
	Attack: {
		ID: Attack, Key: "attack", Name: "Attack", Unit: "ms", Kind: Continuous,
		Min: 1, Max: 500, Default: 20, Style: Linear, RampMs: 50, StepSize: 5,
	},
	Release: {
		ID: Release, Key: "release", Name: "Release", Unit: "ms", Kind: Continuous,
		Min: 5, Max: 2000, Default: 100, Style: Linear, RampMs: 50, StepSize: 10,
	},
	Q: {
		ID: Q, Key: "q", Name: "Q", Kind: Continuous,
		Min: 1, Max: 60, Default: 40, Style: Linear, RampMs: 50, StepSize: 1,
	},
	FilterMode: {
		ID: FilterMode, Key: "filter_mode", Name: "Filter Mode", Kind: Choice,
		Min: 0, Max: 1, Default: ModeBoost, Style: None, Choices: modeNames, StepSize: 1,
	},
	BandCount: {
		ID: BandCount, Key: "band_count", Name: "Bands", Kind: Integer,
		Min: 1, Max: 8, Default: 8, Style: None, StepSize: 1,
	},
	Safety: {
		ID: Safety, Key: "safety", Name: "Safety Switch", Kind: Toggle,
		Min: 0, Max: 1, Default: 1, Style: None, StepSize: 1,
	},
	Voices: {
		ID: Voices, Key: "voice_count", Name: "Voices", Kind: Integer,
		Min: 1, Max: 16, Default: 4, Style: None, StepSize: 1,
	},
}

// Lookup returns the ID registered under key.
func Lookup(key string) (ID, bool) {
	for i := range Schema {
		if Schema[i].Key == key {
			return Schema[i].ID, true
		}
	}
	return 0, false
}

// Clamp limits v to the parameter range and quantises discrete kinds.
// NaN yields the default value.
func (s *Spec) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return s.Default
	}
	if v < s.Min {
		v = s.Min
	}
	if v > s.Max {
		v = s.Max
	}
	if s.Kind != Continuous {
		v = math.Round(v)
	}
	return v
}

// Normalize maps a plain value into [0, 1].
func (s *Spec) Normalize(v float64) float64 {
	if s.Max == s.Min {
		return 0
	}
	return (s.Clamp(v) - s.Min) / (s.Max - s.Min)
}

// Denormalize maps [0, 1] back into the plain range.
func (s *Spec) Denormalize(n float64) float64 {
	return s.Clamp(s.Min + n*(s.Max-s.Min))
}

// Format renders v for display, e.g. "10.0 dB", "On", "Boost".
func (s *Spec) Format(v float64) string {
	v = s.Clamp(v)
	switch s.Kind {
	case Toggle:
		if v >= 0.5 {
			return "On"
		}
		return "Off"
	case Choice:
		idx := int(v)
		if idx >= 0 && idx < len(s.Choices) {
			return s.Choices[idx]
		}
		return fmt.Sprintf("%d", idx)
	case Integer:
		return fmt.Sprintf("%d", int(v))
	}

	if s.Unit == "" {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.2f %s", v, s.Unit)
}

// Parse converts a display string back to a plain value.
func (s *Spec) Parse(text string) (float64, error) {
	text = strings.TrimSpace(text)
	switch s.Kind {
	case Toggle:
		switch strings.ToLower(text) {
		case "on", "true", "1":
			return 1, nil
		case "off", "false", "0":
			return 0, nil
		}
		return 0, fmt.Errorf("invalid value %q for %s", text, s.Key)
	case Choice:
		for i, c := range s.Choices {
			if strings.EqualFold(c, text) {
				return float64(i), nil
			}
		}
	}

	text = strings.TrimSpace(strings.TrimSuffix(text, s.Unit))
	var v float64
	if _, err := fmt.Sscanf(text, "%g", &v); err != nil {
		return 0, fmt.Errorf("invalid value %q for %s: %w", text, s.Key, err)
	}
	return s.Clamp(v), nil
}

// Defaults returns the default value of every parameter.
func Defaults() [Count]float64 {
	var out [Count]float64
	for i := range Schema {
		out[i] = Schema[i].Default
	}
	return out
}
