// SPDX-License-Identifier: MIT
/*
Package engine is the real-time core of the colorizer. A host hands it blocks
of planar float32 audio; the engine analyzes them, maps the dominant
frequency onto a colour, modulates and smooths the parameters, runs a
harmonic filter stack per voice in place and publishes a snapshot for the UI.

Voices follow the strongest spectral peaks. Each owns its own filter bank
and attack/release envelope; a new peak takes an idle voice or steals the
oldest one.

Thread Safety:
- Process runs on the host's audio goroutine and never allocates, locks or
  blocks
- Configure is the only allocation point and is refused while a block is
  being processed
- Parameter targets, gate settings, state and counters are atomics and may be
  touched from any goroutine
- The UI reads snapshots through snapshot.Channel
*/
package engine

import (
	"math"
	"sync/atomic"
	"time"

	"colorizr/internal/analysis"
	"colorizr/internal/color"
	"colorizr/internal/filter"
	"colorizr/internal/log"
	"colorizr/internal/modulation"
	"colorizr/internal/param"
	"colorizr/internal/snapshot"
)

// State is the engine lifecycle state.
type State uint32

const (
	Uninitialized State = iota
	Ready
	Processing
	Suspended
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Processing:
		return "processing"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// SubBlockSize is the largest run of samples processed with one set of
// filter coefficients.
const SubBlockSize = 64

// Setup limits.
const (
	MinSampleRate = 8000
	MaxSampleRate = 192000
	MaxBlockLimit = 8192
	MaxChannels   = 8

	// Safety switch: bands above min(safetyFraction·fs, safetyCeiling) are bypassed.
	safetyFraction = 0.45
	safetyCeiling  = 20000.0

	// Colour shown before the first analysis frame and after Reset.
	neutralHz = 1000.0
)

// Setup describes the host stream the engine is prepared for.
type Setup struct {
	SampleRate   float64
	MaxBlockSize int
	Channels     int

	WindowSize int // Analysis window W, power of two.
	HopSize    int // Analysis hop H, 0 means W/4.
	Window     analysis.WindowFunc
	Seed       int64 // Modulation seed.
}

// DefaultSetup returns a stereo 48 kHz setup with a 2048 point analysis.
func DefaultSetup() Setup {
	return Setup{
		SampleRate:   48000,
		MaxBlockSize: 1024,
		Channels:     2,
		WindowSize:   2048,
		HopSize:      512,
		Window:       analysis.Hann,
		Seed:         1,
	}
}

// ParamEvent is a parameter change at a sample offset within a block.
type ParamEvent struct {
	Offset int
	ID     param.ID
	Value  float64
}

// Stats are monotonically increasing counters. They are written on the audio
// goroutine and read by the publisher, which does the logging.
type Stats struct {
	Blocks            uint64
	Overruns          uint64 // Blocks longer than MaxBlockSize.
	Underruns         uint64 // Empty or ragged blocks.
	Published         uint64
	ChannelContention uint64 // Snapshots replaced before the UI read them.
}

var logger = log.For("engine")

// Engine is one colorizer instance.
type Engine struct {
	state atomic.Uint32
	setup Setup

	params    *param.Set
	mapper    *color.Mapper
	snapshots *snapshot.Channel

	// Allocated by Configure.
	mod      *modulation.Source
	analyzer *analysis.Analyzer
	voices   *voicePool
	mono     []float32   // Mono mix of one sub-block.
	dry      [][]float32 // Dry copy per channel for delta mode.

	// Audio goroutine state.
	values    [param.Count]float64
	modValue  float64
	envelope  float64
	inputPeak float64
	sample    color.Sample
	peakHz    float64
	peakDB    float64
	centroid  float64
	spectrum  [snapshot.SpectrumBands]float32
	bandCount int
	peaks     [MaxVoices]analysis.Peak
	position  uint64
	sequence  uint64
	scratch   snapshot.Snapshot

	gateEnabled   atomic.Bool
	gateThreshold atomic.Uint64

	blocks    atomic.Uint64
	overruns  atomic.Uint64
	underruns atomic.Uint64
}

// New returns an unconfigured engine with default parameters. Process passes
// audio through untouched until Configure succeeds.
func New() *Engine {
	e := &Engine{
		params:    param.NewSet(),
		mapper:    color.NewMapper(),
		snapshots: snapshot.NewChannel(),
	}
	e.gateEnabled.Store(true)
	e.SetGateThreshold(DefaultGateThreshold)
	e.sample = e.mapper.MapFrequency(neutralHz)
	e.clearAnalysis()
	return e
}

// clearAnalysis puts the display values back to silence.
func (e *Engine) clearAnalysis() {
	e.peakHz = 0
	e.peakDB = analysis.FloorDB
	e.centroid = 0
	e.inputPeak = 0
	for i := range e.spectrum {
		e.spectrum[i] = analysis.FloorDB
	}
}

// Validate checks s against the engine limits.
func (s Setup) Validate() error {
	switch {
	case math.IsNaN(s.SampleRate) || s.SampleRate < MinSampleRate || s.SampleRate > MaxSampleRate:
		return &ConfigurationError{Field: "SampleRate", Value: s.SampleRate, Reason: "must be between 8000 and 192000 Hz"}
	case s.MaxBlockSize < 1 || s.MaxBlockSize > MaxBlockLimit:
		return &ConfigurationError{Field: "MaxBlockSize", Value: s.MaxBlockSize, Reason: "must be between 1 and 8192"}
	case s.Channels < 1 || s.Channels > MaxChannels:
		return &ConfigurationError{Field: "Channels", Value: s.Channels, Reason: "must be between 1 and 8"}
	case s.WindowSize != 0 && (s.WindowSize < analysis.MinSize || s.WindowSize > analysis.MaxSize || s.WindowSize&(s.WindowSize-1) != 0):
		return &ConfigurationError{Field: "WindowSize", Value: s.WindowSize, Reason: "must be a power of two between 64 and 32768"}
	case s.HopSize < 0 || (s.WindowSize != 0 && s.HopSize > s.WindowSize):
		return &ConfigurationError{Field: "HopSize", Value: s.HopSize, Reason: "must be between 0 and the window size"}
	}
	return nil
}

// Configure prepares the engine for a stream. It allocates every buffer the
// audio path needs, so it must be called before processing starts and
// whenever the stream format changes. It may run between blocks, in Ready or
// Suspended, but is refused while Process is running.
func (e *Engine) Configure(s Setup) error {
	if st := e.State(); st == Processing {
		return stateError("configure", st)
	}
	if s.WindowSize == 0 {
		s.WindowSize = DefaultSetup().WindowSize
	}
	if err := s.Validate(); err != nil {
		return err
	}

	analyzer, err := analysis.New(analysis.Options{
		Size:       s.WindowSize,
		Hop:        s.HopSize,
		SampleRate: s.SampleRate,
		MaxBlock:   s.MaxBlockSize,
		Window:     s.Window,
	})
	if err != nil {
		return &ConfigurationError{Field: "WindowSize", Value: s.WindowSize, Reason: err.Error()}
	}
	voices, err := newVoicePool(s.Channels, s.SampleRate)
	if err != nil {
		return &ConfigurationError{Field: "Channels", Value: s.Channels, Reason: err.Error()}
	}

	dry := make([][]float32, s.Channels)
	for i := range dry {
		dry[i] = make([]float32, SubBlockSize)
	}

	e.setup = s
	e.analyzer = analyzer
	e.voices = voices
	e.mod = modulation.New(s.Seed, s.SampleRate)
	e.mono = make([]float32, SubBlockSize)
	e.dry = dry

	e.params.SetSampleRate(s.SampleRate)
	e.params.Snap()
	e.params.Values(&e.values)
	e.envelope = 0
	e.position = 0
	e.sample = e.mapper.MapFrequency(neutralHz)
	e.clearAnalysis()

	e.state.Store(uint32(Ready))
	logger.Infof("configured: %.0f Hz, %d channels, max block %d, analysis %d/%d %v, latency %d samples",
		s.SampleRate, s.Channels, s.MaxBlockSize, analyzer.Size(), analyzer.Hop(), s.Window, analyzer.Latency())
	return nil
}

// Setup returns the active setup.
func (e *Engine) Setup() Setup {
	return e.setup
}

// State returns the lifecycle state. Safe from any goroutine.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Suspend stops processing; Process passes audio through until Resume.
func (e *Engine) Suspend() error {
	for {
		st := e.State()
		if st == Uninitialized {
			return stateError("suspend", st)
		}
		if st == Suspended || e.state.CompareAndSwap(uint32(st), uint32(Suspended)) {
			return nil
		}
	}
}

// Resume returns a suspended engine to Ready.
func (e *Engine) Resume() error {
	if !e.state.CompareAndSwap(uint32(Suspended), uint32(Ready)) {
		if st := e.State(); st != Ready && st != Processing {
			return stateError("resume", st)
		}
	}
	return nil
}

// Reset terminates every voice, zeroing its filter delay lines, clears the
// analysis ring and the envelope and returns the colour to neutral.
// Parameter smoothers keep their values. Must not run concurrently with
// Process.
func (e *Engine) Reset() {
	if e.voices != nil {
		e.voices.chokeAll()
	}
	if e.analyzer != nil {
		e.analyzer.Reset()
	}
	e.envelope = 0
	e.sample = e.mapper.MapFrequency(neutralHz)
	e.clearAnalysis()
}

// Latency returns the analysis latency in samples, 0 before Configure.
func (e *Engine) Latency() int {
	if e.analyzer == nil {
		return 0
	}
	return e.analyzer.Latency()
}

// Params returns the parameter set. Targets may be set from any goroutine.
func (e *Engine) Params() *param.Set {
	return e.params
}

// Snapshots returns the channel the engine publishes to.
func (e *Engine) Snapshots() *snapshot.Channel {
	return e.snapshots
}

// Stats returns a copy of the engine counters. Safe from any goroutine.
func (e *Engine) Stats() Stats {
	s := Stats{
		Blocks:            e.blocks.Load(),
		Overruns:          e.overruns.Load(),
		Underruns:         e.underruns.Load(),
		Published:         e.snapshots.Published(),
		ChannelContention: e.snapshots.Overwritten(),
	}
	if a := e.analyzer; a != nil {
		s.Overruns += a.Overruns()
		s.Underruns += a.Underruns()
	}
	return s
}

// Process runs the effect in place on a block of planar channels. The state
// is Processing for the duration of the call and returns to Ready after it,
// unless Suspend ran meanwhile.
//
// events must be ordered by Offset; each is applied at the start of the first
// sub-block at or after its offset. Events past the end of the block are
// applied after it.
//
// Hot path: no allocations, no locks, no blocking.
func (e *Engine) Process(block [][]float32, events []ParamEvent) {
	st := e.State()
	if st == Uninitialized || st == Suspended {
		return
	}
	if !e.state.CompareAndSwap(uint32(Ready), uint32(Processing)) && e.State() != Processing {
		// Suspended between the load and the swap.
		return
	}
	e.blocks.Add(1)

	// --- 1. Shape checks ---
	channels := min(len(block), e.setup.Channels)
	if channels == 0 {
		e.underruns.Add(1)
		e.applyEvents(events)
		e.finish()
		return
	}
	frames := len(block[0])
	ragged := false
	for c := 1; c < channels; c++ {
		if len(block[c]) != frames {
			ragged = true
			frames = min(frames, len(block[c]))
		}
	}
	if ragged || frames == 0 {
		e.underruns.Add(1)
	}
	if frames > e.setup.MaxBlockSize {
		e.overruns.Add(1)
		frames = e.setup.MaxBlockSize
	}

	// --- 2. Sub-blocks split at events ---
	ev := 0
	for start := 0; start < frames; {
		for ev < len(events) && events[ev].Offset <= start {
			e.params.SetTarget(events[ev].ID, events[ev].Value)
			ev++
		}
		end := min(start+SubBlockSize, frames)
		if ev < len(events) && events[ev].Offset < end {
			end = events[ev].Offset
		}
		e.processSubBlock(block[:channels], start, end)
		start = end
	}
	e.applyEvents(events[ev:])

	// --- 3. Publish ---
	e.publish()
	e.finish()
}

// finish ends a callback. A Suspend issued during it wins.
func (e *Engine) finish() {
	e.state.CompareAndSwap(uint32(Processing), uint32(Ready))
}

func (e *Engine) applyEvents(events []ParamEvent) {
	for i := range events {
		e.params.SetTarget(events[i].ID, events[i].Value)
	}
}

func (e *Engine) processSubBlock(block [][]float32, start, end int) {
	n := end - start
	sr := e.setup.SampleRate

	// Parameters and modulation.
	e.params.Advance(n)
	e.params.Values(&e.values)
	e.modValue = e.mod.Advance(n, e.values[param.ModRate])

	// Mono mix into the analyzer.
	mono := e.mono[:n]
	scale := 1 / float32(len(block))
	for i := range mono {
		var sum float32
		for c := range block {
			sum += block[c][start+i]
		}
		mono[i] = sum * scale
	}
	e.inputPeak = blockPeak(mono)

	gateOpen := e.gateOpen(e.inputPeak)

	if e.analyzer.Push(mono) {
		frame := e.analyzer.Frame()
		hz, mag := frame.PeakFrequency(color.MinHz, color.MaxHz)
		if hz > 0 {
			e.sample = e.mapper.MapFrequency(hz)
		}
		e.peakHz = hz
		e.peakDB = analysis.ToDB(frame.Amplitude(mag))
		e.centroid = frame.Centroid()
		frame.BandLevels(e.spectrum[:])

		if gateOpen {
			limit := int(math.Round(e.values[param.Voices]))
			limit = max(1, min(MaxVoices, limit))
			found := frame.Peaks(color.MinHz, color.MaxHz, voicePeakDB, e.peaks[:limit])
			e.voices.assign(e.peaks[:found], limit)
		}
	}

	// Gate and envelopes.
	target := 0.0
	if gateOpen {
		target = 1
	} else {
		e.voices.releaseAll()
	}
	e.envelope = followEnvelope(e.envelope, target, n, e.values[param.Attack], e.values[param.Release], sr)
	e.voices.advance(n, e.values[param.Attack], e.values[param.Release], sr)

	// Filter coefficients, once per sub-block.
	e.updateBands()

	// Every active voice filters in place, in series.
	delta := e.values[param.Delta] >= 0.5
	for c := range block {
		buf := block[c][start:end]
		if delta {
			copy(e.dry[c], buf)
		}
		for i := range e.voices.voices {
			if v := &e.voices.voices[i]; v.active {
				v.bank.ProcessBlock(c, buf)
			}
		}
		if delta {
			dry := e.dry[c][:n]
			for i := range buf {
				buf[i] -= dry[i]
			}
		}
	}
	e.position += uint64(n)
}

// updateBands derives the harmonic bands of every active voice from its
// peak, the modulation and the smoothed parameters:
//
//	f0     = voice peak · 2^(mod_depth · m), clamped to [20 Hz, 15 kHz]
//	f_k    = f0 · (k+1) / 4
//	gain_k = ±gain · envelope · level · e^(−k/4)
func (e *Engine) updateBands() {
	v := &e.values
	sr := e.setup.SampleRate

	count := int(math.Round(v[param.BandCount]))
	count = max(1, min(filter.MaxBands, count))
	e.bandCount = count

	sign := 1.0
	if int(math.Round(v[param.FilterMode])) == param.ModeCut {
		sign = -1
	}
	safety := v[param.Safety] >= 0.5
	limit := math.Min(safetyFraction*sr, safetyCeiling)
	mod := math.Exp2(v[param.ModDepth] * e.modValue)

	for i := range e.voices.voices {
		voice := &e.voices.voices[i]
		if !voice.active {
			continue
		}
		voice.f0 = math.Max(color.MinHz, math.Min(color.MaxHz, voice.hz*mod))
		amp := sign * v[param.Gain] * voice.envelope * voice.level

		for k := 0; k < filter.MaxBands; k++ {
			p := filter.BandParams{
				Shape:     filter.Peaking,
				Frequency: voice.f0 * float64(k+1) / 4,
				GainDB:    amp * math.Exp(-float64(k)/4),
				Q:         v[param.Q],
				Enabled:   k < count,
			}
			if safety && p.Frequency > limit {
				p.Enabled = false
			}

			voice.coeffs[k] = voice.bank.SetBand(k, p)
			voice.freqs[k] = p.Frequency
			if p.Enabled {
				voice.gains[k] = p.GainDB
			} else {
				voice.gains[k] = 0
			}
		}
	}
}

func (e *Engine) publish() {
	e.sequence++
	s := &e.scratch
	s.Sequence = e.sequence
	s.Timestamp = time.Now().UnixNano()
	s.Position = e.position
	s.SampleRate = e.setup.SampleRate
	s.State = uint32(e.State())
	s.Params = e.values
	s.Modulation = e.modValue
	s.Envelope = e.envelope
	s.PeakHz = e.peakHz
	s.PeakDB = e.peakDB
	s.CentroidHz = e.centroid
	s.InputDB = analysis.ToDB(e.inputPeak)
	s.Color = e.sample
	s.Spectrum = e.spectrum
	s.BandCount = e.bandCount
	if lead := e.voices.lead; lead >= 0 {
		v := &e.voices.voices[lead]
		s.BandFreqs = v.freqs
		s.BandGains = v.gains
		s.Filters = v.coeffs
	} else {
		s.BandFreqs = [filter.MaxBands]float64{}
		s.BandGains = [filter.MaxBands]float64{}
		for k := range s.Filters {
			s.Filters[k] = filter.Identity()
		}
	}

	s.VoiceCount = e.voices.count()
	for i := range e.voices.voices {
		v := &e.voices.voices[i]
		sv := &s.Voices[i]
		sv.Active = v.active
		sv.Releasing = v.releasing
		sv.ID = v.id
		sv.Hz = v.f0
		sv.Level = v.level
		sv.Envelope = v.envelope
		sv.Freqs = v.freqs
		sv.Gains = v.gains
		sv.Filters = v.coeffs
	}
	e.snapshots.Publish(s)
}
