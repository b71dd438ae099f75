// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"colorizr/internal/engine"
	"colorizr/pkg/utils"
)

const testRate = 48000

func testClip(channels, frames int) *Clip {
	clip := &Clip{SampleRate: testRate, BitDepth: 16, Channels: make([][]float32, channels)}
	for c := range clip.Channels {
		clip.Channels[c] = utils.GenerateSineWave(frames, testRate, 440*float64(c+1), 0.5)
	}
	return clip
}

func cloneClip(clip *Clip) *Clip {
	out := *clip
	out.Channels = make([][]float32, len(clip.Channels))
	for c := range clip.Channels {
		out.Channels[c] = append([]float32(nil), clip.Channels[c]...)
	}
	return &out
}

func testSetup(blockSize int) engine.Setup {
	s := engine.DefaultSetup()
	s.MaxBlockSize = blockSize
	return s
}

func TestWAVRoundTrip(t *testing.T) {
	for _, depth := range []int{16, 24, 32} {
		t.Run(fmt.Sprintf("%d bit", depth), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "clip.wav")
			clip := testClip(2, 1000)
			if err := WriteWAV(path, clip, depth); err != nil {
				t.Fatalf("WriteWAV() error = %v", err)
			}

			got, err := ReadWAV(path)
			if err != nil {
				t.Fatalf("ReadWAV() error = %v", err)
			}
			if got.SampleRate != testRate || got.BitDepth != depth || len(got.Channels) != 2 {
				t.Fatalf("ReadWAV() = %d Hz %d bit %d ch, want %d Hz %d bit 2 ch",
					got.SampleRate, got.BitDepth, len(got.Channels), testRate, depth)
			}
			if got.Frames() != clip.Frames() {
				t.Fatalf("Frames() = %d, want %d", got.Frames(), clip.Frames())
			}

			tol := max(2/math.Exp2(float64(depth-1)), 1e-6)
			for c := range clip.Channels {
				for i, want := range clip.Channels[c] {
					if d := math.Abs(float64(got.Channels[c][i] - want)); d > tol {
						t.Fatalf("channel %d sample %d = %f, want %f", c, i, got.Channels[c][i], want)
					}
				}
			}
		})
	}
}

func TestWriteWAVValidation(t *testing.T) {
	dir := t.TempDir()
	if err := WriteWAV(filepath.Join(dir, "a.wav"), testClip(1, 10), 12); err == nil {
		t.Error("expected error for 12-bit output")
	}
	if err := WriteWAV(filepath.Join(dir, "b.wav"), &Clip{SampleRate: testRate}, 16); err == nil {
		t.Error("expected error for clip without channels")
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadWAV(path); !errors.Is(err, ErrNotWAV) {
		t.Errorf("ReadWAV() error = %v, want ErrNotWAV", err)
	}
	if _, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	r, err := StartRecorder(path, RecorderOptions{SampleRate: testRate, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("StartRecorder() error = %v", err)
	}

	clip := testClip(2, 4096)
	for off := 0; off < clip.Frames(); off += 512 {
		r.Write([][]float32{clip.Channels[0][off : off+512], clip.Channels[1][off : off+512]})
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if r.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", r.Dropped())
	}

	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV() error = %v", err)
	}
	if got.Frames() != clip.Frames() || len(got.Channels) != 2 {
		t.Fatalf("recorded %d frames x %d ch, want %d x 2", got.Frames(), len(got.Channels), clip.Frames())
	}
	if d := math.Abs(float64(got.Channels[1][100] - clip.Channels[1][100])); d > 1e-3 {
		t.Errorf("recorded sample differs by %f", d)
	}

	// Writes after Stop are ignored.
	r.Write(clip.Channels)
}

func TestRecorderDropsWhenFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drop.wav")
	// 1ms at 48 kHz stereo rounds up to a 128-sample ring (64 frames).
	r, err := StartRecorder(path, RecorderOptions{
		SampleRate: testRate, Channels: 2, BitDepth: 16, Buffer: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("StartRecorder() error = %v", err)
	}
	block := testClip(2, 1000).Channels
	r.Write(block)
	if got := r.Dropped(); got != 936 {
		t.Errorf("Dropped() = %d, want 936", got)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestRecorderMaxDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limit.wav")
	r, err := StartRecorder(path, RecorderOptions{
		SampleRate: testRate, Channels: 1, BitDepth: 24, MaxDuration: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("StartRecorder() error = %v", err)
	}
	r.Write(testClip(1, 2000).Channels)
	r.Write(testClip(1, 2000).Channels)
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV() error = %v", err)
	}
	if got.Frames() != 480 {
		t.Errorf("recorded %d frames, want 480", got.Frames())
	}
}

func TestStartRecorderValidation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		opts RecorderOptions
	}{
		{"No sample rate", RecorderOptions{Channels: 2, BitDepth: 16}},
		{"No channels", RecorderOptions{SampleRate: testRate, BitDepth: 16}},
		{"Bad bit depth", RecorderOptions{SampleRate: testRate, Channels: 2, BitDepth: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := StartRecorder(filepath.Join(dir, "x.wav"), tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRecorderWriteZeroAlloc(t *testing.T) {
	r, err := StartRecorder(filepath.Join(t.TempDir(), "alloc.wav"), RecorderOptions{
		SampleRate: testRate, Channels: 2, BitDepth: 16,
	})
	if err != nil {
		t.Fatalf("StartRecorder() error = %v", err)
	}
	defer r.Stop()

	block := testClip(2, 256).Channels
	allocs := testing.AllocsPerRun(100, func() {
		r.Write(block)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Recorder.Write, got %f", allocs)
	}
}

func TestRender(t *testing.T) {
	clip := testClip(2, 4800)
	eng := engine.New()

	calls, last := 0, 0
	res, err := Render(context.Background(), eng, testSetup(256), clip, func(done int) {
		calls++
		last = done
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if res.Frames != 4800 || res.Channels != 2 || res.SampleRate != testRate {
		t.Errorf("Render() = %+v", res)
	}
	if calls != 19 || last != 4800 {
		t.Errorf("progress called %d times ending at %d, want 19 ending at 4800", calls, last)
	}
	if res.Stats.Blocks != 19 || res.Stats.Overruns != 0 {
		t.Errorf("Stats = %+v, want 19 blocks and no overruns", res.Stats)
	}
	for c := range clip.Channels {
		for i, s := range clip.Channels[c] {
			if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
				t.Fatalf("channel %d sample %d is not finite", c, i)
			}
		}
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Render(ctx, engine.New(), testSetup(256), testClip(1, 1024), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Render() error = %v, want context.Canceled", err)
	}
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")
	if err := WriteWAV(in, testClip(1, 3000), 16); err != nil {
		t.Fatal(err)
	}

	var total int
	res, err := RenderFile(context.Background(), engine.New(), testSetup(512), in, out, 0, func(_, n int) { total = n })
	if err != nil {
		t.Fatalf("RenderFile() error = %v", err)
	}
	if total != 3000 || res.Frames != 3000 {
		t.Errorf("total = %d, frames = %d, want 3000", total, res.Frames)
	}

	got, err := ReadWAV(out)
	if err != nil {
		t.Fatalf("ReadWAV() error = %v", err)
	}
	if got.BitDepth != 16 || got.Frames() != 3000 {
		t.Errorf("output = %d bit %d frames, want 16 bit 3000 frames", got.BitDepth, got.Frames())
	}
}

func TestClipReaderMatchesRender(t *testing.T) {
	clip := testClip(2, 2000)
	rendered := cloneClip(clip)
	if _, err := Render(context.Background(), engine.New(), testSetup(128), rendered, nil); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	r, err := NewClipReader(engine.New(), testSetup(128), cloneClip(clip))
	if err != nil {
		t.Fatalf("NewClipReader() error = %v", err)
	}

	var data []byte
	buf := make([]byte, 100) // Not a multiple of the frame size.
	for {
		n, err := r.Read(buf)
		data = append(data, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}
	if !r.Done() {
		t.Error("Done() = false after EOF")
	}
	if len(data) != 2000*2*4 {
		t.Fatalf("read %d bytes, want %d", len(data), 2000*2*4)
	}
	if want := time.Duration(2000) * time.Second / testRate; (r.Position() - want).Abs() > time.Microsecond {
		t.Errorf("Position() = %v, want %v", r.Position(), want)
	}

	for i := 0; i < 2000; i++ {
		for c := 0; c < 2; c++ {
			got := math.Float32frombits(binary.LittleEndian.Uint32(data[(i*2+c)*4:]))
			if got != rendered.Channels[c][i] {
				t.Fatalf("frame %d channel %d = %f, want %f", i, c, got, rendered.Channels[c][i])
			}
		}
	}
}

func TestClipReaderConfigureError(t *testing.T) {
	clip := testClip(1, 10)
	clip.SampleRate = 1000
	if _, err := NewClipReader(engine.New(), testSetup(128), clip); err == nil {
		t.Error("expected error for unsupported sample rate")
	}
}

func BenchmarkRender(b *testing.B) {
	clip := testClip(2, 48000)
	eng := engine.New()
	setup := testSetup(512)
	b.ReportAllocs()
	for b.Loop() {
		if _, err := Render(context.Background(), eng, setup, clip, nil); err != nil {
			b.Fatal(err)
		}
	}
}
