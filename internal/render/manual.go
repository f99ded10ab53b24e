package render

// ManualFrames is a FrameScheduler advanced explicitly (for testing and
// for hosts that own their own frame clock).
type ManualFrames struct {
	queued []func()
}

// Schedule implements FrameScheduler.
func (m *ManualFrames) Schedule(fn func()) {
	m.queued = append(m.queued, fn)
}

// Queued returns the number of callbacks waiting for the next frame.
func (m *ManualFrames) Queued() int {
	return len(m.queued)
}

// Tick runs every callback scheduled before the call.
func (m *ManualFrames) Tick() {
	batch := m.queued
	m.queued = nil
	for _, fn := range batch {
		fn()
	}
}
