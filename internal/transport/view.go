// SPDX-License-Identifier: MIT
package transport

import (
	"colorizr/internal/engine"
	"colorizr/internal/param"
	"colorizr/internal/snapshot"
)

// BandView is one engaged filter band.
type BandView struct {
	Hz     float64 `json:"hz"`
	GainDB float64 `json:"gain_db"`
}

// VoiceView is one active voice.
type VoiceView struct {
	ID        uint64     `json:"id"`
	Hz        float64    `json:"hz"`
	Level     float64    `json:"level"`
	Envelope  float64    `json:"envelope"`
	Releasing bool       `json:"releasing"`
	Bands     []BandView `json:"bands"`
}

// View is the JSON shape of a snapshot sent to browser clients.
type View struct {
	Sequence   uint64             `json:"seq"`
	Timestamp  int64              `json:"ts"`
	State      string             `json:"state"`
	Active     bool               `json:"active"`
	PeakHz     float64            `json:"peak_hz"`
	PeakDB     float64            `json:"peak_db"`
	CentroidHz float64            `json:"centroid_hz"`
	InputDB    float64            `json:"input_db"`
	Color      string             `json:"color"`
	Position   float64            `json:"position"`
	Modulation float64            `json:"modulation"`
	Envelope   float64            `json:"envelope"`
	Params     map[string]float64 `json:"params"`
	Spectrum   []float32          `json:"spectrum"`
	Bands      []BandView         `json:"bands"`
	Voices     []VoiceView        `json:"voices"`
}

// NewView converts s. The result shares nothing with s.
func NewView(s *snapshot.Snapshot) View {
	v := View{
		Sequence:   s.Sequence,
		Timestamp:  s.Timestamp,
		State:      engine.State(s.State).String(),
		Active:     s.Active(),
		PeakHz:     s.PeakHz,
		PeakDB:     s.PeakDB,
		CentroidHz: s.CentroidHz,
		InputDB:    s.InputDB,
		Color:      s.Color.Hex(),
		Position:   s.Color.Position,
		Modulation: s.Modulation,
		Envelope:   s.Envelope,
		Params:     make(map[string]float64, param.Count),
		Spectrum:   append([]float32(nil), s.Spectrum[:]...),
	}
	for i := range param.Schema {
		v.Params[param.Schema[i].Key] = s.Params[i]
	}
	for k := 0; k < s.BandCount && k < len(s.BandFreqs); k++ {
		if s.Filters[k].IsIdentity() {
			continue
		}
		v.Bands = append(v.Bands, BandView{Hz: s.BandFreqs[k], GainDB: s.BandGains[k]})
	}
	for i := range s.Voices {
		voice := &s.Voices[i]
		if !voice.Active {
			continue
		}
		vv := VoiceView{
			ID:        voice.ID,
			Hz:        voice.Hz,
			Level:     voice.Level,
			Envelope:  voice.Envelope,
			Releasing: voice.Releasing,
		}
		for k := 0; k < s.BandCount && k < len(voice.Freqs); k++ {
			if voice.Filters[k].IsIdentity() {
				continue
			}
			vv.Bands = append(vv.Bands, BandView{Hz: voice.Freqs[k], GainDB: voice.Gains[k]})
		}
		v.Voices = append(v.Voices, vv)
	}
	return v
}
