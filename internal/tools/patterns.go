package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/toio-bridge/internal/cube"
	"github.com/nerrad567/toio-bridge/internal/toio"
)

// LED pattern IDs.
const (
	PatternRainbow   = 1
	PatternBreathing = 2
	PatternBlink     = 3

	maxPatternRepeat = 100
)

const (
	rainbowStep   = 200 * time.Millisecond
	breathingStep = 20 * time.Millisecond
	breathingN    = 50
	blinkStep     = 200 * time.Millisecond
)

// frame is one colour held for a while.
type frame struct {
	color toio.Color
	hold  time.Duration
}

var (
	off = toio.Color{}

	rainbow = []toio.Color{
		{R: 255, G: 0, B: 0},
		{R: 255, G: 127, B: 0},
		{R: 255, G: 255, B: 0},
		{R: 0, G: 255, B: 0},
		{R: 0, G: 0, B: 255},
		{R: 75, G: 0, B: 130},
		{R: 148, G: 0, B: 211},
	}
)

// patternFrames returns one cycle of a pattern.
func patternFrames(pattern int) ([]frame, error) {
	var frames []frame
	switch pattern {
	case PatternRainbow:
		for _, c := range rainbow {
			frames = append(frames, frame{c, rainbowStep})
		}
	case PatternBreathing:
		// Fade in from dark, then out from full back to one step above dark.
		for i := 0; i < breathingN; i++ {
			frames = append(frames, frame{grey(i), breathingStep})
		}
		for i := breathingN; i > 0; i-- {
			frames = append(frames, frame{grey(i), breathingStep})
		}
	case PatternBlink:
		for _, c := range []toio.Color{{R: 255}, off, {G: 255}, off, {B: 255}, off} {
			frames = append(frames, frame{c, blinkStep})
		}
	default:
		return nil, cube.InvalidArgument("Invalid pattern ID: %d. Must be 1-3.", pattern)
	}
	return frames, nil
}

func grey(step int) toio.Color {
	v := uint8(255 * step / breathingN)
	return toio.Color{R: v, G: v, B: v}
}

// indicator is the part of a cube a pattern drives.
type indicator interface {
	SetIndicator(ctx context.Context, c toio.Color, d time.Duration) error
}

// playPattern shows frames cycles times, pacing itself with sleep.
// It stops at the first failed write or when ctx ends.
func playPattern(ctx context.Context, led indicator, frames []frame, cycles int, sleep func(context.Context, time.Duration) error) error {
	for range cycles {
		for _, f := range frames {
			if err := led.SetIndicator(ctx, f.color, f.hold); err != nil {
				return err
			}
			if err := sleep(ctx, f.hold); err != nil {
				return fmt.Errorf("pattern interrupted: %w", err)
			}
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
