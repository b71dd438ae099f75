// SPDX-License-Identifier: MIT
/*
Package filter implements the second-order sections and the harmonic filter
bank the colorizer drives.

Coefficients come from the RBJ Audio EQ Cookbook and are normalised by a0.
Sections run in transposed direct form II:

	y  = b0*x + s1
	s1 = b1*x - a1*y + s2
	s2 = b2*x - a2*y

Every coefficient set handed to a section is forced into the stability
triangle first, so no parameter combination can make the bank blow up.
*/
package filter

import (
	"math"
	"math/cmplx"
)

// Design limits.
const (
	MinFrequency   = 10.0
	MaxNyquistFrac = 0.49 // Highest centre frequency as a fraction of the sample rate.
	MinQ           = 0.1
	MaxQ           = 100.0
	MaxGainDB      = 48.0

	// poleMargin keeps the poles strictly inside the unit circle.
	poleMargin = 0.9999
)

// Coefficients of a normalised biquad.
type Coefficients struct {
	B0, B1, B2 float64 // feedforward
	A1, A2     float64 // feedback
}

// Identity passes the signal through unchanged.
func Identity() Coefficients {
	return Coefficients{B0: 1}
}

// IsIdentity reports whether c passes the signal unchanged.
func (c Coefficients) IsIdentity() bool {
	return c == Identity()
}

// PeakingEQ designs a peaking filter with gainDB of boost (positive) or cut
// (negative) at frequency.
func PeakingEQ(sampleRate, frequency, gainDB, q float64) Coefficients {
	frequency, q = clampDesign(sampleRate, frequency, q)
	gainDB = math.Max(-MaxGainDB, math.Min(MaxGainDB, gainDB))

	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * frequency / sampleRate
	sinW0, cosW0 := math.Sincos(w0)
	alpha := sinW0 / (2 * q)

	a0 := 1 + alpha/a
	return stabilize(Coefficients{
		B0: (1 + alpha*a) / a0,
		B1: (-2 * cosW0) / a0,
		B2: (1 - alpha*a) / a0,
		A1: (-2 * cosW0) / a0,
		A2: (1 - alpha/a) / a0,
	})
}

// Bandpass designs a constant skirt gain band-pass filter (peak gain Q).
func Bandpass(sampleRate, frequency, q float64) Coefficients {
	frequency, q = clampDesign(sampleRate, frequency, q)

	w0 := 2 * math.Pi * frequency / sampleRate
	sinW0, cosW0 := math.Sincos(w0)
	alpha := sinW0 / (2 * q)

	a0 := 1 + alpha
	return stabilize(Coefficients{
		B0: (q * alpha) / a0,
		B1: 0,
		B2: (-q * alpha) / a0,
		A1: (-2 * cosW0) / a0,
		A2: (1 - alpha) / a0,
	})
}

func clampDesign(sampleRate, frequency, q float64) (float64, float64) {
	maxF := sampleRate * MaxNyquistFrac
	if math.IsNaN(frequency) || frequency < MinFrequency {
		frequency = MinFrequency
	}
	if frequency > maxF {
		frequency = maxF
	}
	if math.IsNaN(q) || q < MinQ {
		q = MinQ
	}
	if q > MaxQ {
		q = MaxQ
	}
	return frequency, q
}

// stabilize clamps the feedback pair into the stability triangle
// |a2| < 1, |a1| < 1 + a2. Non-finite input yields Identity.
func stabilize(c Coefficients) Coefficients {
	for _, v := range [...]float64{c.B0, c.B1, c.B2, c.A1, c.A2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Identity()
		}
	}

	if c.A2 > poleMargin {
		c.A2 = poleMargin
	} else if c.A2 < -poleMargin {
		c.A2 = -poleMargin
	}

	limit := (1 + c.A2) * poleMargin
	if c.A1 > limit {
		c.A1 = limit
	} else if c.A1 < -limit {
		c.A1 = -limit
	}
	return c
}

// IsStable reports whether the poles of c lie inside the unit circle.
func (c Coefficients) IsStable() bool {
	return math.Abs(c.A2) < 1 && math.Abs(c.A1) < 1+c.A2
}

// Response evaluates H(e^jw) at freqHz.
func (c Coefficients) Response(freqHz, sampleRate float64) complex128 {
	w := 2 * math.Pi * freqHz / sampleRate
	z1 := cmplx.Exp(complex(0, -w))
	z2 := cmplx.Exp(complex(0, -2*w))

	num := complex(c.B0, 0) + complex(c.B1, 0)*z1 + complex(c.B2, 0)*z2
	den := 1 + complex(c.A1, 0)*z1 + complex(c.A2, 0)*z2
	return num / den
}

// MagnitudeDB returns 20·log10|H| at freqHz.
func (c Coefficients) MagnitudeDB(freqHz, sampleRate float64) float64 {
	return 20 * math.Log10(cmplx.Abs(c.Response(freqHz, sampleRate)))
}

// Biquad is a single section with its delay line.
type Biquad struct {
	Coefficients
	s1, s2 float64
}

// Process filters one sample.
func (b *Biquad) Process(x float64) float64 {
	y := b.B0*x + b.s1
	b.s1 = b.B1*x - b.A1*y + b.s2
	b.s2 = b.B2*x - b.A2*y
	return y
}

// Reset zeroes the delay line.
func (b *Biquad) Reset() {
	b.s1, b.s2 = 0, 0
}
