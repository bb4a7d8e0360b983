package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pause is a randomized delay between Min and Max.
type Pause struct {
	Min time.Duration
	Max time.Duration
}

// Pauses between interactions, modeled on a person using the site.
var (
	pauseAction = Pause{Min: 300 * time.Millisecond, Max: time.Second}
	pauseTyping = Pause{Min: 500 * time.Millisecond, Max: time.Second}
	pauseDetail = Pause{Min: time.Second, Max: 2 * time.Second}
	pauseLoad   = Pause{Min: 3 * time.Second, Max: 5 * time.Second}
	pauseItem   = Pause{Min: 300 * time.Millisecond, Max: 800 * time.Millisecond}
)

// Pacer spaces out interactions with jittered delays.
// A scale of 1 uses the pauses as defined, 0 disables pacing.
type Pacer struct {
	scale float64
	jitter func(n int64) int64
}

// NewPacer creates a Pacer with the given scale. Negative scales count as 0.
func NewPacer(scale float64) *Pacer {
	if scale < 0 {
		scale = 0
	}
	return &Pacer{scale: scale, jitter: rand.Int64N}
}

// Duration returns the delay Wait would sleep for p.
func (pc *Pacer) Duration(p Pause) time.Duration {
	if pc == nil || pc.scale == 0 {
		return 0
	}
	d := p.Min
	if span := int64(p.Max - p.Min); span > 0 {
		d += time.Duration(pc.jitter(span))
	}
	return time.Duration(float64(d) * pc.scale)
}

// Wait sleeps for a jittered p or until ctx ends.
func (pc *Pacer) Wait(ctx context.Context, p Pause) error {
	d := pc.Duration(p)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
