// Package render coalesces content refreshes to at most one per display frame.
//
// The gate knows nothing about the chat protocol. Callers hand it producers,
// zero-argument functions that perform the actual markup substitution, and
// the gate guarantees that only the most recently requested producer runs on
// the next frame tick, however many requests arrived in between.
package render

import (
	"time"

	"github.com/lavandejoey/MobileRAG/internal/loop"
)

// DefaultFrameInterval approximates a 60Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameScheduler runs a callback on the next display frame.
type FrameScheduler interface {
	Schedule(fn func())
}

// Gate is the render-coalescing scheduler.
// It is not safe for concurrent use; all calls happen on the loop.
type Gate struct {
	frames    FrameScheduler
	pending   func()
	scheduled bool
	epoch     uint64

	// Requested and Rendered count requests and producer runs.
	Requested int
	Rendered  int
}

// NewGate creates a gate driven by frames.
func NewGate(frames FrameScheduler) *Gate {
	return &Gate{frames: frames}
}

// Request registers producer for the next frame. A request made while one is
// already pending replaces the pending producer instead of scheduling another frame.
func (g *Gate) Request(producer func()) {
	g.Requested++
	g.pending = producer
	if g.scheduled {
		return
	}
	g.scheduled = true
	epoch := g.epoch
	g.frames.Schedule(func() { g.tick(epoch) })
}

// Pending reports whether a producer is waiting for a frame.
func (g *Gate) Pending() bool {
	return g.pending != nil
}

// Flush runs the pending producer immediately, if any.
func (g *Gate) Flush() {
	p := g.take()
	if p != nil {
		g.Rendered++
		p()
	}
}

// Cancel drops the pending producer without running it.
func (g *Gate) Cancel() {
	g.take()
}

func (g *Gate) take() func() {
	p := g.pending
	g.pending = nil
	if g.scheduled {
		// Invalidate the outstanding frame callback.
		g.scheduled = false
		g.epoch++
	}
	return p
}

func (g *Gate) tick(epoch uint64) {
	if epoch != g.epoch {
		return
	}
	g.Flush()
}

// FrameTicker schedules frame callbacks on a loop after a fixed interval.
type FrameTicker struct {
	poster   loop.Poster
	interval time.Duration
}

// NewFrameTicker creates a scheduler posting to poster every interval.
func NewFrameTicker(poster loop.Poster, interval time.Duration) *FrameTicker {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameTicker{poster: poster, interval: interval}
}

// Schedule implements FrameScheduler.
func (f *FrameTicker) Schedule(fn func()) {
	time.AfterFunc(f.interval, func() { f.poster.Post(fn) })
}
