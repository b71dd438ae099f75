// SPDX-License-Identifier: MIT
package engine

import (
	"math"

	"colorizr/internal/analysis"
	"colorizr/internal/filter"
	"colorizr/internal/snapshot"
)

// MaxVoices is the size of the voice pool. The voice_count parameter limits
// how many of its slots are used.
const MaxVoices = snapshot.MaxVoices

const (
	// Peaks further than this below the strongest one get no voice.
	voicePeakDB = -24.0
	// A voice keeps following a peak that moved less than a semitone.
	trackRatio = 1.0594630943592953
	// Releasing voices are terminated below this envelope.
	silentEnvelope = 1e-3
)

// voice is one harmonic filter stack following a spectral peak.
type voice struct {
	active    bool
	releasing bool
	id        uint64  // Allocation order.
	hz        float64 // Tracked peak.
	level     float64 // Square-root velocity relative to the strongest peak.
	envelope  float64
	bank      *filter.Bank

	f0     float64
	freqs  [filter.MaxBands]float64
	gains  [filter.MaxBands]float64
	coeffs [filter.MaxBands]filter.Coefficients
}

func (v *voice) clearBands() {
	v.f0 = 0
	for k := range v.coeffs {
		v.freqs[k] = 0
		v.gains[k] = 0
		v.coeffs[k] = filter.Identity()
	}
}

// voicePool owns every voice and its filter bank. Nothing is allocated after
// newVoicePool.
type voicePool struct {
	voices  [MaxVoices]voice
	claimed [MaxVoices]bool // Voices given a peak by the current assign.
	nextID  uint64
	lead    int // Voice following the strongest peak, -1 when none.
}

func newVoicePool(channels int, sampleRate float64) (*voicePool, error) {
	p := &voicePool{lead: -1}
	for i := range p.voices {
		bank, err := filter.New(channels, sampleRate)
		if err != nil {
			return nil, err
		}
		p.voices[i].bank = bank
		p.voices[i].clearBands()
	}
	return p, nil
}

// assign hands every peak a voice. Peaks first keep the voices already
// following them; the rest take a free slot below limit, or steal the oldest
// voice there that no peak kept. Voices left without a peak start releasing.
// peaks must be ordered strongest first and must not outnumber limit.
func (p *voicePool) assign(peaks []analysis.Peak, limit int) {
	limit = max(1, min(MaxVoices, limit))
	peaks = peaks[:min(len(peaks), limit)]
	p.claimed = [MaxVoices]bool{}

	var slots [MaxVoices]int
	for i := range peaks {
		slots[i] = p.track(limit, peaks[i].Hz)
		if slots[i] >= 0 {
			p.claimed[slots[i]] = true
		}
	}
	for i := range peaks {
		if slots[i] < 0 {
			slots[i] = p.start(limit)
			if slots[i] >= 0 {
				p.claimed[slots[i]] = true
			}
		}
	}

	if len(peaks) > 0 {
		p.lead = slots[0]
	}
	for i := range peaks {
		if slots[i] < 0 {
			continue
		}
		v := &p.voices[slots[i]]
		v.hz = peaks[i].Hz
		v.level = math.Sqrt(peaks[i].Magnitude / peaks[0].Magnitude)
		v.releasing = false
	}

	for i := range p.voices {
		if p.voices[i].active && !p.claimed[i] {
			p.voices[i].releasing = true
		}
	}
}

// track returns the unclaimed voice below limit closest to hz within a
// semitone, or -1.
func (p *voicePool) track(limit int, hz float64) int {
	best, bestDist := -1, math.Log(trackRatio)
	for i := 0; i < limit; i++ {
		v := &p.voices[i]
		if !v.active || p.claimed[i] || v.hz <= 0 {
			continue
		}
		if d := math.Abs(math.Log(hz / v.hz)); d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// start readies a slot below limit for a new voice: the first idle one, or
// else the oldest unclaimed one. Returns -1 when every slot is claimed.
func (p *voicePool) start(limit int) int {
	slot := -1
	for i := 0; i < limit; i++ {
		if !p.voices[i].active {
			slot = i
			break
		}
	}
	if slot < 0 {
		for i := 0; i < limit; i++ {
			if p.claimed[i] {
				continue
			}
			if slot < 0 || p.voices[i].id < p.voices[slot].id {
				slot = i
			}
		}
	}
	if slot < 0 {
		return -1
	}

	v := &p.voices[slot]
	v.bank.Reset()
	v.clearBands()
	v.active = true
	v.releasing = false
	v.envelope = 0
	v.id = p.nextID
	p.nextID++
	return slot
}

// releaseAll lets every voice fade out with the release time.
func (p *voicePool) releaseAll() {
	for i := range p.voices {
		if p.voices[i].active {
			p.voices[i].releasing = true
		}
	}
}

// choke terminates voice i at once.
func (p *voicePool) choke(i int) {
	v := &p.voices[i]
	v.active = false
	v.releasing = false
	v.envelope = 0
	v.hz = 0
	v.bank.Reset()
	v.clearBands()
	if p.lead == i {
		p.lead = -1
	}
}

// chokeAll terminates every voice and zeroes their delay lines.
func (p *voicePool) chokeAll() {
	for i := range p.voices {
		p.choke(i)
	}
}

// advance moves every voice envelope over n samples and terminates released
// voices that went silent.
func (p *voicePool) advance(n int, attackMs, releaseMs, sampleRate float64) {
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active {
			continue
		}
		target := 1.0
		if v.releasing {
			target = 0
		}
		v.envelope = followEnvelope(v.envelope, target, n, attackMs, releaseMs, sampleRate)
		if v.releasing && v.envelope < silentEnvelope {
			p.choke(i)
		}
	}
}

// count returns the number of active voices.
func (p *voicePool) count() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].active {
			n++
		}
	}
	return n
}
