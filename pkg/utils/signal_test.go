// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"os"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 44100
	testFrequency  = 440.0 // A4 note
)

var testMagnitudes []float64

func TestMain(m *testing.M) {
	testMagnitudes = make([]float64, testSize)

	// Creates a "hill" with peak at position testSize/4.
	for i := range testMagnitudes {
		testMagnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2))
	}

	os.Exit(m.Run())
}

func TestGenerateComplexWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
	}{
		{"Standard", 1024, 44100},
		{"Small", 16, 8000},
		{"Large", 8192, 96000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateComplexWave(tt.size, tt.sampleRate)

			if len(result) != tt.size {
				t.Errorf("GenerateComplexWave() buffer size = %d, want %d", len(result), tt.size)
			}
			if Peak(result) == 0 {
				t.Errorf("GenerateComplexWave() produced all zeros")
			}
			if Peak(result) > 1 {
				t.Errorf("GenerateComplexWave() clipped: peak %v", Peak(result))
			}
		})
	}
}

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 1024, 44100, 440.0},
		{"Middle C", 1024, 44100, 261.63},
		{"High Sample Rate", 1024, 192000, 440.0},
		{"Low Sample Rate", 1024, 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.size, tt.sampleRate, tt.frequency, 0.9)

			if len(result) != tt.size {
				t.Errorf("GenerateSineWave() buffer size = %d, want %d", len(result), tt.size)
			}

			samplesPerCycle := tt.sampleRate / tt.frequency
			if samplesPerCycle > 2 && float64(tt.size) > samplesPerCycle {
				crossCount := 0
				for i := 1; i < tt.size; i++ {
					if (result[i-1] < 0 && result[i] >= 0) ||
						(result[i-1] >= 0 && result[i] < 0) {
						crossCount++
					}
				}

				// Two crossings per cycle, 20% margin for phase alignment.
				expectedCrossings := float64(tt.size) / (samplesPerCycle / 2)
				tolerance := 0.2 * expectedCrossings

				if math.Abs(float64(crossCount)-expectedCrossings) > tolerance {
					t.Errorf("GenerateSineWave() zero crossings = %d, expected approximately %.1f±%.1f",
						crossCount, expectedCrossings, tolerance)
				}
			}
		})
	}
}

func TestFillSineContinuous(t *testing.T) {
	whole := GenerateSineWave(256, testSampleRate, testFrequency, 1)
	parts := make([]float32, 256)
	FillSine(parts[:100], 0, testSampleRate, testFrequency, 1)
	FillSine(parts[100:], 100, testSampleRate, testFrequency, 1)

	for i := range whole {
		if whole[i] != parts[i] {
			t.Fatalf("sample %d: %v != %v", i, whole[i], parts[i])
		}
	}
}

func TestGenerateNoiseDeterministic(t *testing.T) {
	a := GenerateNoise(512, 7, 0.5)
	b := GenerateNoise(512, 7, 0.5)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs for the same seed", i)
		}
	}
	if Peak(a) > 0.5 {
		t.Errorf("noise peak %v above amplitude", Peak(a))
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", testMagnitudes, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", testMagnitudes, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", testMagnitudes, 0, testSize / 3, testSize / 4},
		{"Negative Start", testMagnitudes, -10, testSize - 1, testSize / 4},
		{"Out of Range End", testMagnitudes, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := FindPeakBin(tt.mags, tt.start, tt.end); result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(testMagnitudes, 0, len(testMagnitudes)-1)
	})
	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name string
		buf  []float32
		want float64
	}{
		{"Empty", nil, 0},
		{"DC", []float32{0.5, 0.5, 0.5, 0.5}, 0.5},
		{"Square", []float32{1, -1, 1, -1}, 1},
		{"Sine", GenerateSineWave(44100, 44100, 100, 1), 1 / math.Sqrt2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.buf); math.Abs(got-tt.want) > 1e-3 {
				t.Errorf("RMS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInterleaveRoundTrip(t *testing.T) {
	left := []float32{1, 2, 3}
	right := []float32{-1, -2, -3}

	inter := make([]float32, 6)
	if n := Interleave(inter, [][]float32{left, right}); n != 3 {
		t.Fatalf("Interleave() frames = %d, want 3", n)
	}
	want := []float32{1, -1, 2, -2, 3, -3}
	for i := range want {
		if inter[i] != want[i] {
			t.Fatalf("interleaved[%d] = %v, want %v", i, inter[i], want[i])
		}
	}

	planar := [][]float32{make([]float32, 3), make([]float32, 3)}
	if n := Deinterleave(planar, inter); n != 3 {
		t.Fatalf("Deinterleave() frames = %d, want 3", n)
	}
	for i := range left {
		if planar[0][i] != left[i] || planar[1][i] != right[i] {
			t.Fatalf("frame %d: got %v/%v", i, planar[0][i], planar[1][i])
		}
	}
}

func TestInterleaveShortDestination(t *testing.T) {
	dst := make([]float32, 3)
	if n := Interleave(dst, [][]float32{{1, 2}, {3, 4}}); n != 1 {
		t.Errorf("Interleave() frames = %d, want 1", n)
	}
}

func BenchmarkGenerateSineWave(b *testing.B) {
	benchmarks := []struct {
		name string
		size int
	}{
		{"Small", 64},
		{"Standard", 1024},
		{"Large", 8192},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				GenerateSineWave(bm.size, testSampleRate, testFrequency, 0.9)
			}
		})
	}
}

func BenchmarkInterleave(b *testing.B) {
	chans := [][]float32{make([]float32, 512), make([]float32, 512)}
	dst := make([]float32, 1024)
	b.ReportAllocs()
	for b.Loop() {
		Interleave(dst, chans)
	}
}
