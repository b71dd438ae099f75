// SPDX-License-Identifier: MIT
// Package utils holds signal helpers shared by the hosts and the tests:
// generators, (de)interleaving and simple level measurements.
package utils

import (
	"math"
	"math/rand/v2"
)

// GenerateSineWave returns size samples of a sine at frequency with the
// given peak amplitude.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	FillSine(buffer, 0, sampleRate, frequency, amplitude)
	return buffer
}

// FillSine writes a sine into buffer starting at sample offset, so
// consecutive blocks of one tone stay phase continuous.
func FillSine(buffer []float32, offset int, sampleRate, frequency, amplitude float64) {
	for i := range buffer {
		t := float64(offset+i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * amplitude)
	}
}

// GenerateComplexWave returns a 440 Hz tone with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2 // 440Hz fundamental + harmonics
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateNoise returns deterministic white noise in [-amplitude, amplitude].
func GenerateNoise(size int, seed uint64, amplitude float64) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	buffer := make([]float32, size)
	for i := range buffer {
		buffer[i] = float32((rng.Float64()*2 - 1) * amplitude)
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

// RMS returns the root mean square of buffer, 0 when empty.
func RMS(buffer []float32) float64 {
	if len(buffer) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buffer {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(buffer)))
}

// Peak returns the largest absolute sample value.
func Peak(buffer []float32) float64 {
	var peak float64
	for _, s := range buffer {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	return peak
}

// Interleave writes planar channels into dst as frame-interleaved samples and
// returns the number of frames written. dst must hold frames·channels samples.
func Interleave(dst []float32, channels [][]float32) int {
	if len(channels) == 0 {
		return 0
	}
	frames := len(dst) / len(channels)
	for _, ch := range channels {
		frames = min(frames, len(ch))
	}
	n := len(channels)
	for i := 0; i < frames; i++ {
		for c, ch := range channels {
			dst[i*n+c] = ch[i]
		}
	}
	return frames
}

// Deinterleave splits frame-interleaved src into planar dst channels and
// returns the number of frames written.
func Deinterleave(dst [][]float32, src []float32) int {
	if len(dst) == 0 {
		return 0
	}
	n := len(dst)
	frames := len(src) / n
	for _, ch := range dst {
		frames = min(frames, len(ch))
	}
	for i := 0; i < frames; i++ {
		for c := range dst {
			dst[c][i] = src[i*n+c]
		}
	}
	return frames
}
