// Package loop provides the client's single logical execution context.
//
// Transport goroutines, timers and UI input never touch client state
// directly: they Post a callback and the loop runs callbacks one at a time,
// in arrival order, on the goroutine that called Run.
package loop

import (
	"context"
	"errors"
	"time"
)

// ErrStopped is returned when posting to a loop that is no longer running.
var ErrStopped = errors.New("loop stopped")

// Poster schedules a callback on the loop.
type Poster interface {
	Post(fn func()) bool
}

// Loop is a FIFO executor.
type Loop struct {
	tasks chan func()
	done  chan struct{}

	// Loop-owned.
	deferred []func()
}

// New creates a loop whose queue holds up to size pending callbacks.
func New(size int) *Loop {
	if size <= 0 {
		size = 1024
	}
	return &Loop{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post enqueues fn. It blocks while the queue is full and returns false
// once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Defer runs fn on the loop right after the current callback, before the
// next queued one. It never blocks and may only be called from a callback.
func (l *Loop) Defer(fn func()) {
	l.deferred = append(l.deferred, fn)
}

// Call runs fn on the loop and waits for it to finish.
// It must not be called from the loop goroutine.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// AfterFunc posts fn once d has elapsed. The returned function cancels it.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (stop func() bool) {
	t := time.AfterFunc(d, func() { l.Post(fn) })
	return t.Stop
}

// Run executes callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	fn()
	for len(l.deferred) > 0 {
		next := l.deferred[0]
		l.deferred = l.deferred[1:]
		next()
	}
}

// Drain runs every callback queued so far on the calling goroutine.
// Tests use it to drive the loop synchronously.
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case fn := <-l.tasks:
			l.run(fn)
			n++
		default:
			return n
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
