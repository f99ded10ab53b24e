// Package conn owns the single streaming connection of a turn.
//
// A Manager keeps at most one stream active. Opening a new stream tears
// down the previous one first. Frames are read on a per-stream goroutine,
// decoded there, and posted to the loop, where a generation check discards
// anything belonging to a stream that has since been torn down.
package conn

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lavandejoey/MobileRAG/internal/loop"
	"github.com/lavandejoey/MobileRAG/internal/protocol"
)

// Stream is an open turn connection.
type Stream interface {
	Send(req protocol.Request) error
	Next() ([]byte, error)
	Close() error
}

// DialFunc opens a new stream.
type DialFunc func(ctx context.Context) (Stream, error)

// Dispatcher consumes stream events on the loop.
type Dispatcher interface {
	Dispatch(ev protocol.Event)
}

// Options configures a Manager.
type Options struct {
	Dial   DialFunc
	Poster loop.Poster
	Sink   Dispatcher
	// IsClosure classifies read errors as ordinary closure. Errors it
	// rejects are reported as transport errors.
	IsClosure func(error) bool
	Logger    *slog.Logger
}

type session struct {
	gen    uint64
	id     string
	cancel context.CancelFunc
}

// Manager is the connection manager.
// Open, Cancel, Abandon and Active must be called on the loop.
type Manager struct {
	dial      DialFunc
	poster    loop.Poster
	sink      Dispatcher
	isClosure func(error) bool
	logger    *slog.Logger

	gen    uint64
	active *session
}

// New creates a manager.
func New(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IsClosure == nil {
		opts.IsClosure = func(error) bool { return false }
	}
	return &Manager{
		dial:      opts.Dial,
		poster:    opts.Poster,
		sink:      opts.Sink,
		isClosure: opts.IsClosure,
		logger:    opts.Logger,
	}
}

// Active reports whether a stream is open or opening.
func (m *Manager) Active() bool {
	return m.active != nil
}

// Generation returns the number of streams opened so far.
func (m *Manager) Generation() uint64 {
	return m.gen
}

// Open tears down any active stream, then connects and sends req.
// Events are delivered to the sink asynchronously.
func (m *Manager) Open(req protocol.Request) {
	if m.active != nil {
		m.logger.Debug("replacing active stream", "turn_id", m.active.id)
		m.teardown()
	}

	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{gen: m.gen, id: uuid.NewString(), cancel: cancel}
	m.active = s

	m.logger.Debug("opening stream", "turn_id", s.id, "generation", s.gen, "chat_id", req.ChatID)
	go m.run(ctx, s, req)
}

// Cancel closes the active stream. Partial output is kept: the sink sees
// an ordinary closure.
func (m *Manager) Cancel() {
	if m.active == nil {
		return
	}
	m.logger.Debug("cancelling stream", "turn_id", m.active.id)
	m.teardown()
	m.sink.Dispatch(protocol.Closed{})
}

// Abandon closes the active stream without notifying the sink.
func (m *Manager) Abandon() {
	if m.active == nil {
		return
	}
	m.logger.Debug("abandoning stream", "turn_id", m.active.id)
	m.teardown()
}

func (m *Manager) teardown() {
	m.active.cancel()
	m.active = nil
}

// deliver runs on the loop.
func (m *Manager) deliver(s *session, ev protocol.Event) {
	if m.active == nil || m.active.gen != s.gen {
		m.logger.Debug("dropping event from stale stream", "event", ev.Tag(), "turn_id", s.id)
		return
	}

	switch ev.(type) {
	case protocol.Closed:
		m.active = nil
	case protocol.Error, protocol.TransportError:
		m.teardown()
	}
	m.sink.Dispatch(ev)
}

func (m *Manager) post(s *session, ev protocol.Event) bool {
	return m.poster.Post(func() { m.deliver(s, ev) })
}

// run owns the stream for its whole life. Cancelling ctx closes it, which
// unblocks a pending read.
func (m *Manager) run(ctx context.Context, s *session, req protocol.Request) {
	stream, err := m.dial(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("stream connect failed", "turn_id", s.id, "error", err)
			m.post(s, protocol.TransportError{Err: err})
		}
		return
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	if err := stream.Send(req); err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("stream send failed", "turn_id", s.id, "error", err)
			m.post(s, protocol.TransportError{Err: err})
		}
		return
	}

	for {
		data, err := stream.Next()
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case m.isClosure(err):
				m.logger.Debug("stream closed", "turn_id", s.id)
				m.post(s, protocol.Closed{})
			default:
				m.logger.Warn("stream read failed", "turn_id", s.id, "error", err)
				m.post(s, protocol.TransportError{Err: err})
			}
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownEvent) {
				m.logger.Debug("ignoring unknown event", "turn_id", s.id, "error", err)
			} else {
				m.logger.Debug("dropping malformed frame", "turn_id", s.id, "error", err)
			}
			continue
		}
		if !m.post(s, ev) {
			return
		}
	}
}
