// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"time"

	"colorizr/internal/engine"
)

// RenderResult summarises an offline render.
type RenderResult struct {
	Frames     int
	SampleRate int
	Channels   int
	Elapsed    time.Duration
	Stats      engine.Stats
}

// Realtime returns how many times faster than real time the render ran.
func (r RenderResult) Realtime() float64 {
	if r.Elapsed <= 0 || r.SampleRate <= 0 {
		return 0
	}
	return float64(r.Frames) / float64(r.SampleRate) / r.Elapsed.Seconds()
}

// Render runs clip through eng in blocks of setup.MaxBlockSize, in place.
// The sample rate and channel count come from the clip. onBlock, if set, is
// called after every block with the frames done so far.
func Render(ctx context.Context, eng *engine.Engine, setup engine.Setup, clip *Clip, onBlock func(done int)) (RenderResult, error) {
	setup.SampleRate = float64(clip.SampleRate)
	setup.Channels = len(clip.Channels)
	if err := eng.Configure(setup); err != nil {
		return RenderResult{}, err
	}

	start := time.Now()
	frames := clip.Frames()
	block := make([][]float32, len(clip.Channels))
	for off := 0; off < frames; off += setup.MaxBlockSize {
		if err := ctx.Err(); err != nil {
			return RenderResult{}, err
		}
		end := min(off+setup.MaxBlockSize, frames)
		for c := range block {
			block[c] = clip.Channels[c][off:end]
		}
		eng.Process(block, nil)
		if onBlock != nil {
			onBlock(end)
		}
	}

	return RenderResult{
		Frames:     frames,
		SampleRate: clip.SampleRate,
		Channels:   len(clip.Channels),
		Elapsed:    time.Since(start),
		Stats:      eng.Stats(),
	}, nil
}

// RenderFile reads inPath, processes it and writes outPath.
func RenderFile(ctx context.Context, eng *engine.Engine, setup engine.Setup, inPath, outPath string, bitDepth int, onBlock func(done, total int)) (RenderResult, error) {
	clip, err := ReadWAV(inPath)
	if err != nil {
		return RenderResult{}, err
	}
	if bitDepth == 0 {
		bitDepth = clip.BitDepth
	}

	total := clip.Frames()
	var progress func(int)
	if onBlock != nil {
		progress = func(done int) { onBlock(done, total) }
	}
	res, err := Render(ctx, eng, setup, clip, progress)
	if err != nil {
		return res, fmt.Errorf("rendering %s: %w", inPath, err)
	}
	if err := WriteWAV(outPath, clip, bitDepth); err != nil {
		return res, err
	}
	logger.Infof("rendered %s -> %s: %d frames in %v (%.1fx realtime)",
		inPath, outPath, res.Frames, res.Elapsed.Round(time.Millisecond), res.Realtime())
	return res, nil
}
