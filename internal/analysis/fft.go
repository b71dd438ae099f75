// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"
	"strings"
	"sync/atomic"

	"colorizr/internal/log"
	"colorizr/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions. Hann is the zero value.
const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	BartlettHann
	Lanczos
	Nuttall
)

var windowNames = [...]string{"hann", "hamming", "blackman", "blackmannuttall", "bartletthann", "lanczos", "nuttall"}

func (w WindowFunc) String() string {
	if w < 0 || int(w) >= len(windowNames) {
		return fmt.Sprintf("window(%d)", int(w))
	}
	return windowNames[w]
}

// Size limits for the analysis window.
const (
	MinSize = 64
	MaxSize = 32768
)

var (
	ErrSize       = errors.New("analysis size must be a power of two")
	ErrHop        = errors.New("analysis hop must be in (0, size]")
	ErrSampleRate = errors.New("sample rate must be positive")
	ErrMaxBlock   = errors.New("max block size must be positive")
)

var logger = log.For("analysis")

// Options configures an Analyzer.
type Options struct {
	Size       int     // Window size W in samples, a power of two.
	Hop        int     // New samples between frames H; defaults to Size/4.
	SampleRate float64 // Hz.
	MaxBlock   int     // Largest block Push accepts without truncation.
	Window     WindowFunc
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Windowed copy of the ring, oldest sample first.
	fftOutput []complex128 // FFT complex results.
	window    []float64    // Pre-calculated window coefficients.
}

// Analyzer turns a stream of audio blocks into overlapped magnitude spectra.
//
// It is owned by the audio goroutine: Push, Frame and Reset must not be
// called concurrently. Only the overrun/underrun counters may be read from
// other goroutines.
type Analyzer struct {
	fftCalculator *fourier.FFT
	size          int
	hop           int
	maxBlock      int
	sampleRate    float64
	workspace     fftWorkspace

	ring     []float64
	write    int // Next write position in ring.
	filled   int // Valid samples in ring, saturates at size.
	sinceHop int // Samples pushed since the last frame.

	frame Frame

	overruns  atomic.Uint64
	underruns atomic.Uint64
}

// New allocates an analyzer. This is the only place the analyzer allocates.
func New(opts Options) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(opts.Size) || opts.Size < MinSize || opts.Size > MaxSize {
		return nil, fmt.Errorf("%w: got %d (allowed %d..%d)", ErrSize, opts.Size, MinSize, MaxSize)
	}
	if opts.Hop == 0 {
		opts.Hop = opts.Size / 4
	}
	if opts.Hop < 0 || opts.Hop > opts.Size {
		return nil, fmt.Errorf("%w: got %d for size %d", ErrHop, opts.Hop, opts.Size)
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: got %f", ErrSampleRate, opts.SampleRate)
	}
	if opts.MaxBlock <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrMaxBlock, opts.MaxBlock)
	}

	windowCoeffs := make([]float64, opts.Size)
	applyWindow(windowCoeffs, opts.Window)

	// FFT output size for real input is N/2 + 1 complex values.
	bins := opts.Size/2 + 1

	logger.Debugf("analyzer size=%d hop=%d rate=%.0f window=%v", opts.Size, opts.Hop, opts.SampleRate, opts.Window)

	return &Analyzer{
		fftCalculator: fourier.NewFFT(opts.Size),
		size:          opts.Size,
		hop:           opts.Hop,
		maxBlock:      opts.MaxBlock,
		sampleRate:    opts.SampleRate,
		workspace: fftWorkspace{
			input:     make([]float64, opts.Size),
			fftOutput: make([]complex128, bins),
			window:    windowCoeffs,
		},
		ring: make([]float64, opts.Size),
		frame: Frame{
			Magnitudes: make([]float64, bins),
			SampleRate: opts.SampleRate,
			Size:       opts.Size,
			WindowSum:  floats.Sum(windowCoeffs),
		},
	}, nil
}

// Push feeds a block of mono samples. It returns true when at least one new
// frame was produced; Frame then holds the newest one.
//
// Hot path: no allocations, no locks.
func (a *Analyzer) Push(block []float32) bool {
	if len(block) == 0 {
		a.underruns.Add(1)
		return false
	}
	if len(block) > a.maxBlock {
		a.overruns.Add(1)
		block = block[:a.maxBlock]
	}

	produced := false
	for _, s := range block {
		a.ring[a.write] = float64(s)
		a.write++
		if a.write == a.size {
			a.write = 0
		}
		if a.filled < a.size {
			a.filled++
		}
		a.sinceHop++

		if a.filled == a.size && a.sinceHop >= a.hop {
			a.transform()
			a.sinceHop = 0
			produced = true
		}
	}
	return produced
}

// transform windows the ring (oldest sample first) and computes magnitudes.
func (a *Analyzer) transform() {
	// --- 1. Unroll the ring & window ---
	n := copy(a.workspace.input, a.ring[a.write:])
	copy(a.workspace.input[n:], a.ring[:a.write])
	floats.Mul(a.workspace.input, a.workspace.window)

	// --- 2. Perform FFT ---
	a.fftCalculator.Coefficients(a.workspace.fftOutput, a.workspace.input)

	// --- 3. Calculate Magnitudes ---
	for i, c := range a.workspace.fftOutput {
		a.frame.Magnitudes[i] = cmplx.Abs(c)
	}
	a.frame.Sequence++
}

// Frame returns the newest frame. It is overwritten by the next Push that
// produces a frame. Sequence is zero until the first frame exists.
func (a *Analyzer) Frame() *Frame {
	return &a.frame
}

// Reset forgets all buffered audio. Frames restart after Size new samples.
func (a *Analyzer) Reset() {
	clear(a.ring)
	a.write = 0
	a.filled = 0
	a.sinceHop = 0
}

// Latency is the number of samples between audio entering and the first
// frame that covers it completely.
func (a *Analyzer) Latency() int {
	return a.size
}

// Size returns the window size W.
func (a *Analyzer) Size() int { return a.size }

// Hop returns the hop size H.
func (a *Analyzer) Hop() int { return a.hop }

// Overruns counts blocks truncated to MaxBlock.
func (a *Analyzer) Overruns() uint64 { return a.overruns.Load() }

// Underruns counts empty blocks.
func (a *Analyzer) Underruns() uint64 { return a.underruns.Load() }

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window function. Unknown types
// fall back to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// Window funcs multiply in place, start from 1.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	default:
		logger.Warnf("unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
