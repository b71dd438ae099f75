// SPDX-License-Identifier: MIT
package analysis

import "math"

// Display range of the spectrum.
const (
	LowHz   = 20.0
	HighHz  = 15000.0
	FloorDB = -120.0
)

// BandEdges returns the lower edge of band b of n log-spaced bands between
// LowHz and HighHz. BandEdges(n, n) is HighHz.
func BandEdges(b, n int) float64 {
	return LowHz * math.Pow(HighHz/LowHz, float64(b)/float64(n))
}

// BandLevels reduces the frame to len(dst) log-spaced bands between LowHz and
// HighHz. Each band holds the amplitude of its strongest bin in dBFS, floored
// at FloorDB. Bands too narrow to contain a bin take the nearest bin.
//
// Hot path: no allocations.
func (f *Frame) BandLevels(dst []float32) {
	n := len(dst)
	if n == 0 {
		return
	}
	res := f.Resolution()
	last := len(f.Magnitudes) - 1

	for b := range dst {
		lo := BandEdges(b, n)
		hi := BandEdges(b+1, n)

		first := int(math.Ceil(lo / res))
		end := int(math.Floor(hi / res))
		if end < first {
			// Narrower than a bin: nearest to the band centre.
			first = int(math.Round(math.Sqrt(lo*hi) / res))
			end = first
		}
		if first < 1 {
			first = 1
		}
		if end > last {
			end = last
		}

		peak := 0.0
		for i := first; i <= end; i++ {
			peak = math.Max(peak, f.Magnitudes[i])
		}
		dst[b] = float32(ToDB(f.Amplitude(peak)))
	}
}

// ToDB converts a linear amplitude to dBFS, floored at FloorDB.
func ToDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return FloorDB
	}
	return math.Max(FloorDB, 20*math.Log10(amplitude))
}
