// Package turn drives a single request/response exchange from the stream's
// typed events into the transcript.
//
// Phases: Idle -> Connecting (Begin) -> Thinking (think_start) -> Answering
// (first answer_token, with or without thinking) -> Done (done or ordinary
// close). Any active phase moves to Errored on an error event or transport
// failure; the next Begin starts over.
package turn

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lavandejoey/MobileRAG/internal/markup"
	"github.com/lavandejoey/MobileRAG/internal/protocol"
	"github.com/lavandejoey/MobileRAG/internal/render"
	"github.com/lavandejoey/MobileRAG/internal/view"
)

// Phase is the lifecycle position of the current turn.
type Phase int

const (
	Idle Phase = iota
	Connecting
	Thinking
	Answering
	Done
	Errored
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Thinking:
		return "thinking"
	case Answering:
		return "answering"
	case Done:
		return "done"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Active reports whether the phase belongs to an in-flight turn.
func (p Phase) Active() bool {
	return p == Connecting || p == Thinking || p == Answering
}

// Status texts shown next to the status indicator.
const (
	StatusIdle     = "Idle"
	StatusThinking = "Thinking..."
)

// ErrBackend wraps error events reported by the backend.
var ErrBackend = errors.New("backend error")

// Result summarizes a finished turn.
type Result struct {
	ChatID  string
	Answer  string
	Think   string
	ThinkMs int64
	TotalMs int64

	// Err is nil for explicit and implicit completion.
	Err error
}

// Hooks are invoked on the loop as the turn progresses. Any may be nil.
type Hooks struct {
	// ChatCreated is called when the backend assigns a chat to the turn.
	ChatCreated func(chatID string)
	// Finished is called once per turn when it reaches Done or Errored.
	Finished func(Result)
	// Changed is called when phase, busy state or status text change.
	Changed func()
}

// Options configures a Machine.
type Options struct {
	Transcript *view.Transcript
	Gate       *render.Gate
	Renderer   markup.Renderer
	Hooks      Hooks
	Logger     *slog.Logger
	Now        func() time.Time
}

// Machine is the turn state machine. It exclusively owns the live turn's
// buffers and assistant bubble.
// It is not safe for concurrent use; all calls happen on the loop.
type Machine struct {
	transcript *view.Transcript
	gate       *render.Gate
	renderer   markup.Renderer
	hooks      Hooks
	logger     *slog.Logger
	now        func() time.Time

	phase  Phase
	busy   bool
	status string
	turns  int

	chatID    string
	think     strings.Builder
	answer    strings.Builder
	thinkMs   int64
	totalMs   int64
	assistant *view.Bubble
}

// New creates an idle machine.
func New(opts Options) *Machine {
	if opts.Transcript == nil {
		opts.Transcript = view.NewTranscript()
	}
	if opts.Gate == nil {
		opts.Gate = render.NewGate(&render.ManualFrames{})
	}
	if opts.Renderer == nil {
		opts.Renderer = markup.Plain
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Machine{
		transcript: opts.Transcript,
		gate:       opts.Gate,
		renderer:   opts.Renderer,
		hooks:      opts.Hooks,
		logger:     opts.Logger,
		now:        opts.Now,
		status:     StatusIdle,
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Busy reports whether a turn is in flight.
func (m *Machine) Busy() bool { return m.busy }

// Status returns the status indicator text.
func (m *Machine) Status() string { return m.status }

// ChatID returns the chat assigned to the current turn, if any.
func (m *Machine) ChatID() string { return m.chatID }

// Turns returns how many turns have been started.
func (m *Machine) Turns() int { return m.turns }

// Begin starts a new turn for message, discarding the previous turn's
// buffers entirely, and appends the user's bubble.
func (m *Machine) Begin(message string) {
	// A pending producer holds the previous turn's bubble and text.
	m.gate.Flush()
	m.resetBuffers()
	m.turns++

	m.transcript.AddUser(message, m.now())
	m.setPhase(Connecting, true, StatusThinking)
	m.logger.Debug("turn started", "turn", m.turns)
}

// Reset abandons the current turn without finalizing it. Used when the view
// is cleared.
func (m *Machine) Reset() {
	m.gate.Cancel()
	m.resetBuffers()
	m.setPhase(Idle, false, StatusIdle)
}

func (m *Machine) resetBuffers() {
	m.chatID = ""
	m.think.Reset()
	m.answer.Reset()
	m.thinkMs = 0
	m.totalMs = 0
	m.assistant = nil
}

// Dispatch applies one stream event.
func (m *Machine) Dispatch(ev protocol.Event) {
	if !m.phase.Active() {
		// Closures after completion are the normal tail of a stream.
		if _, ok := ev.(protocol.Closed); !ok {
			m.logger.Debug("event outside an active turn ignored", "event", ev.Tag(), "phase", m.phase.String())
		}
		return
	}

	switch e := ev.(type) {
	case protocol.ChatCreated:
		m.chatID = e.ChatID
		if m.hooks.ChatCreated != nil {
			m.hooks.ChatCreated(e.ChatID)
		}

	case protocol.Stage:
		status := StatusThinking
		if e.Stage != "" {
			status = fmt.Sprintf("%s (%s)", StatusThinking, e.Stage)
		}
		m.setPhase(m.phase, true, status)

	case protocol.ThinkStart:
		if m.phase == Answering {
			m.logger.Debug("think_start after answer tokens ignored")
			return
		}
		m.ensureAssistant().HintThinking()
		m.setPhase(Thinking, true, m.status)

	case protocol.ThinkToken:
		m.think.WriteString(e.Token)
		if m.phase == Connecting {
			m.setPhase(Thinking, true, m.status)
		}

	case protocol.ThinkEnd:
		m.thinkMs = e.ThinkMs
		m.ensureAssistant().HintDone(m.thinkMs, m.think.String())

	case protocol.AnswerToken:
		m.answer.WriteString(e.Token)
		m.ensureAssistant()
		m.setPhase(Answering, true, m.status)
		m.requestRender()

	case protocol.Done:
		if e.ChatID != "" {
			m.chatID = e.ChatID
		}
		if m.thinkMs == 0 {
			m.thinkMs = e.ThinkMs
		}
		m.totalMs = e.TotalMs
		m.complete()

	case protocol.Closed:
		m.complete()

	case protocol.Error:
		m.fail("Error: "+e.Detail(), fmt.Errorf("%w: %s", ErrBackend, e.Detail()))

	case protocol.TransportError:
		m.fail("WebSocket error.", fmt.Errorf("transport: %w", e.Err))

	default:
		m.logger.Debug("unhandled event", "event", ev.Tag())
	}
}

func (m *Machine) ensureAssistant() *view.Bubble {
	if m.assistant == nil {
		m.assistant = m.transcript.AddAssistant(m.now())
	}
	return m.assistant
}

// requestRender asks the gate to re-render the cumulative answer. The
// producer captures its bubble and text so it stays correct even if it runs
// after the turn has moved on.
func (m *Machine) requestRender() {
	bubble := m.assistant
	text := m.answer.String()
	renderer := m.renderer
	m.gate.Request(func() {
		bubble.SetAnswer(text, renderer.Render(text))
	})
}

// renderFinal renders the cumulative answer directly, bypassing the gate.
func (m *Machine) renderFinal() {
	m.gate.Cancel()
	if m.assistant == nil {
		return
	}
	text := m.answer.String()
	m.assistant.SetAnswer(text, m.renderer.Render(text))
	if m.totalMs > 0 {
		m.assistant.SetTotal(m.totalMs)
	}
}

func (m *Machine) complete() {
	m.renderFinal()
	m.setPhase(Done, false, StatusIdle)
	m.logger.Debug("turn finished", "turn", m.turns, "chat_id", m.chatID, "think_ms", m.thinkMs, "total_ms", m.totalMs)
	m.finished(nil)
}

// fail keeps whatever partial answer arrived and appends a system notice.
func (m *Machine) fail(notice string, err error) {
	m.renderFinal()
	m.setPhase(Errored, false, StatusIdle)
	m.transcript.AddSystem(notice, m.now())
	m.logger.Warn("turn failed", "turn", m.turns, "error", err)
	m.finished(err)
}

func (m *Machine) finished(err error) {
	if m.hooks.Finished == nil {
		return
	}
	m.hooks.Finished(Result{
		ChatID:  m.chatID,
		Answer:  m.answer.String(),
		Think:   m.think.String(),
		ThinkMs: m.thinkMs,
		TotalMs: m.totalMs,
		Err:     err,
	})
}

func (m *Machine) setPhase(p Phase, busy bool, status string) {
	if p == m.phase && busy == m.busy && status == m.status {
		return
	}
	m.phase = p
	m.busy = busy
	m.status = status
	if m.hooks.Changed != nil {
		m.hooks.Changed()
	}
}
