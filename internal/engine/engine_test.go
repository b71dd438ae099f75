// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"math"
	"testing"

	"colorizr/internal/param"
	"colorizr/internal/snapshot"
	"colorizr/pkg/utils"
)

const (
	testSampleRate = 48000.0
	testBlock      = 512
)

func newTestEngine(t *testing.T, channels int) *Engine {
	t.Helper()
	e := New()
	setup := DefaultSetup()
	setup.Channels = channels
	setup.MaxBlockSize = testBlock
	if err := e.Configure(setup); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return e
}

// toneBlock returns a planar block of a sine starting at sample offset.
func toneBlock(channels, frames, offset int, freq, amp float64) [][]float32 {
	block := make([][]float32, channels)
	for c := range block {
		block[c] = make([]float32, frames)
		utils.FillSine(block[c], offset, testSampleRate, freq, amp)
	}
	return block
}

func copyBlock(block [][]float32) [][]float32 {
	out := make([][]float32, len(block))
	for c := range block {
		out[c] = append([]float32(nil), block[c]...)
	}
	return out
}

func TestConfigureValidation(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Setup)
		field string
	}{
		{"Sample rate too low", func(s *Setup) { s.SampleRate = 4000 }, "SampleRate"},
		{"Sample rate too high", func(s *Setup) { s.SampleRate = 384000 }, "SampleRate"},
		{"Sample rate NaN", func(s *Setup) { s.SampleRate = math.NaN() }, "SampleRate"},
		{"Zero block", func(s *Setup) { s.MaxBlockSize = 0 }, "MaxBlockSize"},
		{"Huge block", func(s *Setup) { s.MaxBlockSize = 1 << 20 }, "MaxBlockSize"},
		{"No channels", func(s *Setup) { s.Channels = 0 }, "Channels"},
		{"Too many channels", func(s *Setup) { s.Channels = 64 }, "Channels"},
		{"Odd window", func(s *Setup) { s.WindowSize = 1000 }, "WindowSize"},
		{"Hop beyond window", func(s *Setup) { s.HopSize = 1 << 14 }, "HopSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup := DefaultSetup()
			tt.mod(&setup)

			e := New()
			err := e.Configure(setup)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Configure() error = %v, want ErrConfiguration", err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("Configure() field = %v, want %s", err, tt.field)
			}
			if e.State() != Uninitialized {
				t.Errorf("State() = %v after failed Configure", e.State())
			}
		})
	}
}

func TestLifecycle(t *testing.T) {
	e := New()
	if err := e.Suspend(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Suspend() before Configure error = %v", err)
	}

	if err := e.Configure(DefaultSetup()); err != nil {
		t.Fatal(err)
	}
	if e.State() != Ready {
		t.Fatalf("State() = %v, want ready", e.State())
	}

	e.Process(toneBlock(2, 64, 0, 440, 0.5), nil)
	if e.State() != Ready {
		t.Fatalf("State() = %v after a block, want ready", e.State())
	}
	e.Process([][]float32{}, nil)
	if e.State() != Ready {
		t.Fatalf("State() = %v after an empty block, want ready", e.State())
	}

	// Reconfiguring between blocks.
	setup := DefaultSetup()
	setup.SampleRate = 44100
	if err := e.Configure(setup); err != nil {
		t.Fatalf("Configure() between blocks error = %v", err)
	}
	if e.Setup().SampleRate != 44100 {
		t.Errorf("SampleRate = %v, want 44100", e.Setup().SampleRate)
	}

	// Mid-callback.
	e.state.Store(uint32(Processing))
	if err := e.Configure(DefaultSetup()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Configure() while processing error = %v", err)
	}
	if err := e.Suspend(); err != nil {
		t.Fatalf("Suspend() while processing error = %v", err)
	}
	e.finish()
	if e.State() != Suspended {
		t.Fatalf("State() = %v, a suspend during the callback must win", e.State())
	}

	block := toneBlock(2, 64, 0, 440, 0.5)
	orig := copyBlock(block)
	e.Process(block, nil)
	for c := range block {
		for i := range block[c] {
			if block[c][i] != orig[c][i] {
				t.Fatal("suspended engine modified audio")
			}
		}
	}

	if err := e.Resume(); err != nil || e.State() != Ready {
		t.Fatalf("Resume() = %v, state %v", err, e.State())
	}
	if err := e.Configure(DefaultSetup()); err != nil {
		t.Errorf("Configure() when ready error = %v", err)
	}
}

func TestUninitializedPassThrough(t *testing.T) {
	e := New()
	block := toneBlock(2, 256, 0, 1000, 0.5)
	orig := copyBlock(block)

	e.Process(block, nil)
	for c := range block {
		for i := range block[c] {
			if block[c][i] != orig[c][i] {
				t.Fatalf("channel %d sample %d changed before Configure", c, i)
			}
		}
	}
	var s snapshot.Snapshot
	if e.Snapshots().ReadLatest(&s) {
		t.Error("unconfigured engine published a snapshot")
	}
}

func TestShapePreservedAndCounters(t *testing.T) {
	e := newTestEngine(t, 2)

	// Longer than MaxBlockSize: the tail is left untouched.
	long := toneBlock(2, testBlock+100, 0, 1000, 0.5)
	orig := copyBlock(long)
	e.Process(long, nil)
	if len(long) != 2 || len(long[0]) != testBlock+100 || len(long[1]) != testBlock+100 {
		t.Fatal("block shape changed")
	}
	for c := range long {
		for i := testBlock; i < len(long[c]); i++ {
			if long[c][i] != orig[c][i] {
				t.Fatalf("sample %d beyond MaxBlockSize was modified", i)
			}
		}
	}
	if got := e.Stats().Overruns; got != 1 {
		t.Errorf("Overruns = %d, want 1", got)
	}

	// Ragged channels.
	ragged := [][]float32{make([]float32, 100), make([]float32, 80)}
	e.Process(ragged, nil)
	if len(ragged[0]) != 100 || len(ragged[1]) != 80 {
		t.Fatal("ragged block shape changed")
	}
	if got := e.Stats().Underruns; got != 1 {
		t.Errorf("Underruns = %d, want 1", got)
	}

	// Empty block.
	e.Process([][]float32{{}, {}}, nil)
	if got := e.Stats().Underruns; got < 2 {
		t.Errorf("Underruns = %d, want at least 2", got)
	}
}

func TestSnapshotPublishedPerBlock(t *testing.T) {
	e := newTestEngine(t, 1)
	for i := 0; i < 3; i++ {
		e.Process(toneBlock(1, 128, i*128, 1000, 0.5), nil)
	}

	var s snapshot.Snapshot
	if !e.Snapshots().ReadLatest(&s) {
		t.Fatal("no snapshot published")
	}
	if s.Sequence != 3 {
		t.Errorf("Sequence = %d, want 3", s.Sequence)
	}
	if s.Position != 384 {
		t.Errorf("Position = %d, want 384", s.Position)
	}
	// Published from inside the callback.
	if State(s.State) != Processing {
		t.Errorf("State = %v, want processing", State(s.State))
	}
	if e.State() != Ready {
		t.Errorf("State() = %v between blocks, want ready", e.State())
	}
	if s.Params[param.Q] != param.Schema[param.Q].Default {
		t.Errorf("Params[Q] = %v, want default", s.Params[param.Q])
	}
}

func TestEndToEndTone(t *testing.T) {
	resolution := testSampleRate / float64(DefaultSetup().WindowSize)

	run := func() ([][]float32, float64) {
		e := newTestEngine(t, 2)
		e.Params().SetTarget(param.ModDepth, 0)
		total := int(testSampleRate)
		var out [][]float32
		var inSum, outSum float64
		var s snapshot.Snapshot

		for off := 0; off < total; off += testBlock {
			block := toneBlock(2, testBlock, off, 1000, 0.5)
			settled := off >= total/2
			if settled {
				inSum += utils.RMS(block[0])
			}
			e.Process(block, nil)
			out = append(out, block[0])
			if !settled {
				continue
			}
			outSum += utils.RMS(block[0])

			if !e.Snapshots().ReadLatest(&s) {
				t.Fatal("no snapshot published")
			}
			if math.Abs(s.PeakHz-1000) > resolution {
				t.Fatalf("block at %d: PeakHz = %.2f, want 1000 ± %.2f", off, s.PeakHz, resolution)
			}
			if s.Color.Input != s.PeakHz {
				t.Fatalf("block at %d: colour input %.2f does not follow the peak %.2f", off, s.Color.Input, s.PeakHz)
			}
			if s.Envelope < 0.99 || s.VoiceCount != 1 {
				t.Fatalf("block at %d: envelope %v with %d voice(s), want open gate and one voice", off, s.Envelope, s.VoiceCount)
			}
			if lead := s.BandFreqs[3]; math.Abs(lead-s.PeakHz) > resolution {
				t.Fatalf("block at %d: band 3 at %.2f Hz, want on the peak %.2f", off, lead, s.PeakHz)
			}
		}
		return out, outSum / inSum
	}

	// Only band 3 sits on the tone: +gain·e^(−3/4) dB, the other bands add
	// a few hundredths of a dB.
	want := math.Pow(10, 10*math.Exp(-0.75)/20)
	out1, ratio := run()
	if math.IsNaN(ratio) || ratio < want*0.93 || ratio > want*1.02 {
		t.Errorf("output/input RMS ratio = %.4f, want %.4f", ratio, want)
	}

	out2, _ := run()
	for b := range out1 {
		for i := range out1[b] {
			if out1[b][i] != out2[b][i] {
				t.Fatalf("block %d sample %d differs between identical runs", b, i)
			}
		}
	}
}

func TestVoicesFollowChord(t *testing.T) {
	chord := func(channels, frames, offset int) [][]float32 {
		block := toneBlock(channels, frames, offset, 440, 0.4)
		upper := toneBlock(channels, frames, offset, 660, 0.1)
		for c := range block {
			for i := range block[c] {
				block[c][i] += upper[c][i]
			}
		}
		return block
	}

	tests := []struct {
		name   string
		voices float64
		want   int
	}{
		{"Polyphonic", 4, 2},
		{"Single voice", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, 1)
			e.Params().SetTarget(param.Voices, tt.voices)
			e.Params().SetTarget(param.ModDepth, 0)
			for off := 0; off < int(testSampleRate/2); off += testBlock {
				e.Process(chord(1, testBlock, off), nil)
			}

			var s snapshot.Snapshot
			e.Snapshots().ReadLatest(&s)
			if s.VoiceCount != tt.want {
				t.Fatalf("VoiceCount = %d, want %d", s.VoiceCount, tt.want)
			}

			var held []snapshot.Voice
			for _, v := range s.Voices {
				if v.Active && !v.Releasing {
					held = append(held, v)
				}
			}
			if len(held) != tt.want {
				t.Fatalf("%d held voice(s), want %d", len(held), tt.want)
			}
			for _, v := range held {
				switch {
				case math.Abs(v.Hz-440) < 25:
					if v.Level != 1 {
						t.Errorf("440 Hz voice level = %v, want 1", v.Level)
					}
				case math.Abs(v.Hz-660) < 25:
					if v.Level < 0.4 || v.Level > 0.6 {
						t.Errorf("660 Hz voice level = %v, want about 0.5", v.Level)
					}
				default:
					t.Errorf("voice at %.1f Hz follows neither tone", v.Hz)
				}
			}
			if math.Abs(s.BandFreqs[3]-440) > 25 {
				t.Errorf("lead voice band 3 at %.1f Hz, want the stronger tone", s.BandFreqs[3])
			}
		})
	}
}

func TestVoicesReleaseAfterInput(t *testing.T) {
	e := newTestEngine(t, 1)
	for off := 0; off < 8192; off += testBlock {
		e.Process(toneBlock(1, testBlock, off, 800, 0.5), nil)
	}
	var s snapshot.Snapshot
	e.Snapshots().ReadLatest(&s)
	if s.VoiceCount != 1 || !s.Active() {
		t.Fatalf("VoiceCount = %d, active %v while the tone plays", s.VoiceCount, s.Active())
	}

	silence := [][]float32{make([]float32, testBlock)}
	for range 200 {
		clear(silence[0])
		e.Process(silence, nil)
	}
	e.Snapshots().ReadLatest(&s)
	if s.VoiceCount != 0 || s.Active() {
		t.Errorf("VoiceCount = %d, active %v after the release", s.VoiceCount, s.Active())
	}
	if peak := utils.Peak(silence[0]); peak != 0 {
		t.Errorf("silence after the release peaks at %v, want 0", peak)
	}
}

func TestDeltaWithClosedGateIsSilent(t *testing.T) {
	e := newTestEngine(t, 2)
	e.SetGateThreshold(1)
	e.Params().SetTarget(param.Delta, 1)

	block := toneBlock(2, testBlock, 0, 1000, 0.5)
	e.Process(block, nil)
	for c := range block {
		if peak := utils.Peak(block[c]); peak != 0 {
			t.Errorf("channel %d delta output peak %v, want 0", c, peak)
		}
	}
}

func TestEventsAreSampleAccurate(t *testing.T) {
	e := newTestEngine(t, 1)
	e.SetGateThreshold(1) // Identity filters, so delta is exactly zero.

	block := toneBlock(1, 256, 0, 1000, 0.5)
	orig := copyBlock(block)
	e.Process(block, []ParamEvent{{Offset: 100, ID: param.Delta, Value: 1}})

	for i := 0; i < 100; i++ {
		if block[0][i] != orig[0][i] {
			t.Fatalf("sample %d changed before the event", i)
		}
	}
	for i := 100; i < 256; i++ {
		if block[0][i] != 0 {
			t.Fatalf("sample %d = %v after the delta event, want 0", i, block[0][i])
		}
	}
}

func TestSafetySwitchBypassesHighBands(t *testing.T) {
	e := newTestEngine(t, 1)
	e.Params().SetTarget(param.ModDepth, 0)
	for off := 0; off < 8192; off += testBlock {
		e.Process(toneBlock(1, testBlock, off, 12000, 0.5), nil)
	}

	var s snapshot.Snapshot
	e.Snapshots().ReadLatest(&s)
	limit := math.Min(0.45*testSampleRate, 20000)
	for k := 0; k < s.BandCount; k++ {
		if s.BandFreqs[k] > limit && !s.Filters[k].IsIdentity() {
			t.Errorf("band %d at %.0f Hz above %.0f Hz is not bypassed", k, s.BandFreqs[k], limit)
		}
	}
}

func TestResetKeepsParameters(t *testing.T) {
	e := newTestEngine(t, 1)
	e.Params().SetTarget(param.Gain, 20)
	e.Process(toneBlock(1, testBlock, 0, 500, 0.5), nil)
	before := e.Params().Value(param.Gain)

	e.Reset()
	if got := e.Params().Value(param.Gain); got != before {
		t.Errorf("Reset changed smoothed gain from %v to %v", before, got)
	}
	if e.Latency() != DefaultSetup().WindowSize {
		t.Errorf("Latency() = %d, want %d", e.Latency(), DefaultSetup().WindowSize)
	}
}

func TestResetZeroesFilterState(t *testing.T) {
	excite := func(e *Engine) {
		for off := 0; off < 8192; off += testBlock {
			e.Process(toneBlock(1, testBlock, off, 3000, 0.5), nil)
		}
		impulse := [][]float32{make([]float32, testBlock)}
		impulse[0][0] = 1
		e.Process(impulse, nil)
	}
	silence := func(e *Engine) []float32 {
		block := [][]float32{make([]float32, SubBlockSize)}
		e.Process(block, nil)
		return block[0]
	}

	// Without a reset the filters ring into the silence.
	ringing := newTestEngine(t, 1)
	excite(ringing)
	if utils.Peak(silence(ringing)) == 0 {
		t.Fatal("filters did not ring after the impulse")
	}

	e := newTestEngine(t, 1)
	excite(e)
	e.Reset()
	out := silence(e)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %v after Reset, want exact silence", i, v)
		}
	}

	var s snapshot.Snapshot
	e.Snapshots().ReadLatest(&s)
	if s.VoiceCount != 0 || s.Active() {
		t.Errorf("VoiceCount = %d, active %v after Reset", s.VoiceCount, s.Active())
	}
	if want := e.mapper.MapFrequency(neutralHz); s.Color != want || s.PeakHz != 0 {
		t.Errorf("colour %v, peak %.1f Hz after Reset, want neutral %v and no peak", s.Color, s.PeakHz, want)
	}
	if s.Envelope != 0 {
		t.Errorf("Envelope = %v after Reset, want 0", s.Envelope)
	}
}

func TestVoiceLimitMatchesSchema(t *testing.T) {
	if int(param.Schema[param.Voices].Max) != MaxVoices {
		t.Errorf("voice_count max = %v, pool holds %d", param.Schema[param.Voices].Max, MaxVoices)
	}
}

func TestProcessHotPath(t *testing.T) {
	e := newTestEngine(t, 2)
	block := toneBlock(2, testBlock, 0, 1000, 0.5)
	events := []ParamEvent{
		{Offset: 10, ID: param.Gain, Value: 20},
		{Offset: 300, ID: param.Gain, Value: 10},
	}
	e.Process(block, events)

	allocs := testing.AllocsPerRun(100, func() {
		e.Process(block, events)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Process hot path, got %.1f", allocs)
	}
}

func BenchmarkProcess(b *testing.B) {
	e := New()
	setup := DefaultSetup()
	setup.MaxBlockSize = testBlock
	if err := e.Configure(setup); err != nil {
		b.Fatal(err)
	}
	block := toneBlock(2, testBlock, 0, 1000, 0.5)

	b.ReportAllocs()
	for b.Loop() {
		e.Process(block, nil)
	}
}
