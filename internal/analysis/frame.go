// SPDX-License-Identifier: MIT
/*
Package analysis turns the incoming audio stream into overlapped, windowed
magnitude spectra and reduces them to the scalars the colorizer runs on.

The Analyzer keeps a ring of the last W samples. Every H new samples it
windows the ring, runs a real FFT and stores W/2+1 magnitudes in a Frame.
All buffers are sized in New; Push never allocates.
*/
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Frame is one magnitude spectrum of W/2+1 bins. Bin i is centred on
// i·SampleRate/Size Hz.
type Frame struct {
	Magnitudes []float64
	SampleRate float64
	Size       int
	Sequence   uint64  // Increments per produced frame, 0 before the first.
	WindowSum  float64 // Sum of the window coefficients, for amplitude scaling.
}

// Resolution returns the bin spacing in Hz.
func (f *Frame) Resolution() float64 {
	return f.SampleRate / float64(f.Size)
}

// BinFrequency returns the centre frequency of bin i, or 0 when out of range.
func (f *Frame) BinFrequency(i int) float64 {
	if i < 0 || i >= len(f.Magnitudes) {
		return 0
	}
	return float64(i) * f.Resolution()
}

// binRange maps [lo, hi] Hz onto an inclusive bin range, excluding DC.
func (f *Frame) binRange(lo, hi float64) (int, int) {
	res := f.Resolution()
	first := int(math.Ceil(lo / res))
	last := int(math.Floor(hi / res))
	if first < 1 {
		first = 1
	}
	if last > len(f.Magnitudes)-1 {
		last = len(f.Magnitudes) - 1
	}
	return first, last
}

// Peak is one local maximum of a Frame.
type Peak struct {
	Hz        float64 // Interpolated frequency.
	Magnitude float64
}

// PeakFrequency returns the frequency of the strongest bin within [lo, hi] Hz,
// refined by parabolic interpolation over log magnitudes, and that bin's
// magnitude. Silence or an empty range yields 0, 0.
func (f *Frame) PeakFrequency(lo, hi float64) (float64, float64) {
	first, last := f.binRange(lo, hi)
	if first > last {
		return 0, 0
	}

	idx := first + floats.MaxIdx(f.Magnitudes[first:last+1])
	peak := f.Magnitudes[idx]
	if peak <= 0 {
		return 0, 0
	}
	return f.interpolate(idx, lo, hi), peak
}

// Peaks writes the strongest local maxima within [lo, hi] Hz into dst,
// strongest first, and returns how many it wrote. A bin is a local maximum
// when it exceeds its two neighbours on either side. Maxima more than relDB
// below the strongest bin in range are skipped. dst is never grown.
func (f *Frame) Peaks(lo, hi, relDB float64, dst []Peak) int {
	first, last := f.binRange(lo, hi)
	if first > last || len(dst) == 0 {
		return 0
	}
	strongest := floats.Max(f.Magnitudes[first : last+1])
	if strongest <= 0 {
		return 0
	}
	floor := strongest * math.Pow(10, relDB/20)

	n := 0
	for i := first; i <= last; i++ {
		m := f.Magnitudes[i]
		if m < floor || !f.localMax(i) {
			continue
		}
		pos := n
		for pos > 0 && dst[pos-1].Magnitude < m {
			pos--
		}
		if pos >= len(dst) {
			continue
		}
		if n < len(dst) {
			n++
		}
		copy(dst[pos+1:n], dst[pos:n-1])
		dst[pos] = Peak{Hz: f.interpolate(i, lo, hi), Magnitude: m}
	}
	return n
}

// localMax reports whether bin i beats its neighbours within two bins. Ties
// go to the highest bin of a plateau.
func (f *Frame) localMax(i int) bool {
	m := f.Magnitudes[i]
	for d := 1; d <= 2; d++ {
		if i-d >= 0 && f.Magnitudes[i-d] > m {
			return false
		}
		if i+d < len(f.Magnitudes) && f.Magnitudes[i+d] >= m {
			return false
		}
	}
	return true
}

// interpolate refines bin idx with a parabola through the log magnitudes of
// it and its neighbours, clamped to [lo, hi] Hz.
func (f *Frame) interpolate(idx int, lo, hi float64) float64 {
	offset := 0.0
	if idx > 0 && idx < len(f.Magnitudes)-1 {
		const floor = 1e-12
		alpha := math.Log(math.Max(f.Magnitudes[idx-1], floor))
		beta := math.Log(math.Max(f.Magnitudes[idx], floor))
		gamma := math.Log(math.Max(f.Magnitudes[idx+1], floor))
		if d := alpha - 2*beta + gamma; d != 0 {
			offset = 0.5 * (alpha - gamma) / d
		}
		offset = math.Max(-0.5, math.Min(0.5, offset))
	}

	hz := (float64(idx) + offset) * f.Resolution()
	return math.Max(lo, math.Min(hi, hz))
}

// Centroid returns the magnitude-weighted mean frequency, 0 for silence.
func (f *Frame) Centroid() float64 {
	var weighted, total float64
	for i, m := range f.Magnitudes {
		weighted += float64(i) * m
		total += m
	}
	if total <= 0 {
		return 0
	}
	return weighted / total * f.Resolution()
}

// Amplitude converts a bin magnitude into the amplitude of the sine that
// would produce it.
func (f *Frame) Amplitude(magnitude float64) float64 {
	if f.WindowSum <= 0 {
		return 0
	}
	return magnitude * 2 / f.WindowSum
}

// PeakAmplitude returns the amplitude of the strongest non-DC bin.
func (f *Frame) PeakAmplitude() float64 {
	if len(f.Magnitudes) < 2 {
		return 0
	}
	return f.Amplitude(floats.Max(f.Magnitudes[1:]))
}
