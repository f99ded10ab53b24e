// Package app wires the client's components into one session context.
//
// A Session owns the loop and everything that runs on it: the transcript,
// the render gate, the turn machine, the connection manager, the history
// reconciler and the directory. Its exported methods are safe to call from
// any goroutine; they post work onto the loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lavandejoey/MobileRAG/internal/client"
	"github.com/lavandejoey/MobileRAG/internal/config"
	"github.com/lavandejoey/MobileRAG/internal/conn"
	"github.com/lavandejoey/MobileRAG/internal/directory"
	"github.com/lavandejoey/MobileRAG/internal/health"
	"github.com/lavandejoey/MobileRAG/internal/history"
	"github.com/lavandejoey/MobileRAG/internal/loop"
	"github.com/lavandejoey/MobileRAG/internal/markup"
	"github.com/lavandejoey/MobileRAG/internal/metrics"
	"github.com/lavandejoey/MobileRAG/internal/models"
	"github.com/lavandejoey/MobileRAG/internal/protocol"
	"github.com/lavandejoey/MobileRAG/internal/render"
	"github.com/lavandejoey/MobileRAG/internal/state"
	"github.com/lavandejoey/MobileRAG/internal/turn"
	"github.com/lavandejoey/MobileRAG/internal/view"
)

// ReadyMessage greets a session that has no chat to restore.
const ReadyMessage = "Ready. Select a chat or send a message to create one."

// State is the projected view-model of the whole session.
type State struct {
	Transcript view.Snapshot
	Chats      []models.Chat
	Selected   string
	Stale      bool
	Busy       bool
	Phase      turn.Phase
	Status     string
	Health     health.Reading
}

// Options configures a Session.
type Options struct {
	Config   *config.Config
	Client   *client.Client
	Store    *state.Store
	Renderer markup.Renderer
	// Frames overrides the display-frame scheduler (default: a ticker on the loop).
	Frames  render.FrameScheduler
	Metrics *metrics.Collector
	Logger  *slog.Logger
	// DisableProbe turns off the periodic status probe.
	DisableProbe bool
}

// Session is the explicit session context.
type Session struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector

	loop       *loop.Loop
	transcript *view.Transcript
	gate       *render.Gate
	machine    *turn.Machine
	conn       *conn.Manager
	reconciler *history.Reconciler
	dir        *directory.Directory
	indicator  *health.Indicator
	probe      *health.Probe

	// Loop-owned.
	dirty       bool
	turnStarted time.Time
	firstToken  bool

	mu          sync.Mutex
	subscribers []func(State)
	finished    []func(turn.Result)
}

// New builds a session. Nothing runs until Run is called.
func New(opts Options) *Session {
	cfg := opts.Config
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Renderer == nil {
		opts.Renderer = markup.Plain
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}

	s := &Session{
		cfg:        cfg,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		loop:       loop.New(1024),
		transcript: view.NewTranscript(),
		indicator:  &health.Indicator{},
	}

	frames := opts.Frames
	if frames == nil {
		frames = render.NewFrameTicker(s.loop, cfg.FrameInterval)
	}
	s.gate = render.NewGate(frames)

	s.machine = turn.New(turn.Options{
		Transcript: s.transcript,
		Gate:       s.gate,
		Renderer:   opts.Renderer,
		Logger:     opts.Logger.With("component", "turn"),
		Hooks: turn.Hooks{
			ChatCreated: s.onChatCreated,
			Finished:    s.onFinished,
			Changed:     s.markDirty,
		},
	})

	s.conn = conn.New(conn.Options{
		Dial: func(ctx context.Context) (conn.Stream, error) {
			st, err := opts.Client.DialStream(ctx)
			if err != nil {
				return nil, err
			}
			return st, nil
		},
		Poster:    s.loop,
		Sink:      sink{s},
		IsClosure: client.IsClosure,
		Logger:    opts.Logger.With("component", "conn"),
	})

	s.reconciler = history.New(s.transcript, opts.Renderer, opts.Logger.With("component", "history"))

	var selection directory.SelectionStore
	if opts.Store != nil {
		selection = opts.Store
	}
	s.dir = directory.New(directory.Options{
		Backend:      opts.Client,
		Selection:    selection,
		Profile:      cfg.Profile,
		Poster:       s.loop,
		Transcript:   s.transcript,
		Reconciler:   s.reconciler,
		ClearTurn:    s.clearTurn,
		Changed:      s.markDirty,
		ChatLimit:    cfg.ChatLimit,
		MessageLimit: cfg.MessageLimit,
		Timeout:      cfg.ClientTimeout,
		Logger:       opts.Logger.With("component", "directory"),
	})

	if !opts.DisableProbe {
		s.probe = health.NewProbe(opts.Client, s.indicator, cfg.StatusInterval, opts.Logger.With("component", "health"))
		s.indicator.OnChange(func(health.Reading) { s.loop.Post(s.markDirty) })
	}

	s.transcript.OnChange(s.markDirty)
	return s
}

// sink forwards stream events to the turn machine, timing the first token.
type sink struct{ s *Session }

func (k sink) Dispatch(ev protocol.Event) {
	if _, ok := ev.(protocol.AnswerToken); ok && !k.s.firstToken && k.s.machine.Phase().Active() {
		k.s.firstToken = true
		k.s.metrics.RecordTiming(metrics.OpFirstToken, time.Since(k.s.turnStarted))
	}
	k.s.machine.Dispatch(ev)
}

// Run processes the session until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if s.probe != nil {
		go func() { _ = s.probe.Run(ctx) }()
	}
	return s.loop.Run(ctx)
}

// Subscribe registers fn to receive a State after every batch of changes.
// fn runs on the loop and must not block.
func (s *Session) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// OnFinished registers fn to receive the result of every finished turn.
func (s *Session) OnFinished(fn func(turn.Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, fn)
}

// Boot refreshes the chat list, then restores the persisted selection or
// greets the user.
func (s *Session) Boot() {
	s.loop.Post(func() {
		s.dir.Refresh(func(error) {
			if s.machine.Turns() > 0 || s.transcript.Len() > 0 {
				return
			}
			if s.restore() {
				return
			}
			s.transcript.AddSystem(ReadyMessage, time.Now())
		})
	})
}

func (s *Session) restore() bool {
	started := time.Now()
	return s.dir.Restore(func(err error) { s.recordReplay(started, err) })
}

// Send starts a turn for message in the selected chat (or a new one).
// Any turn still streaming is discarded first.
func (s *Session) Send(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	s.loop.Post(func() {
		s.dir.DiscardPendingReplay()
		s.machine.Begin(message)
		s.turnStarted = time.Now()
		s.firstToken = false
		s.conn.Open(protocol.Request{
			SessionID: s.cfg.SessionID,
			ChatID:    s.dir.Selected(),
			Message:   message,
		})
	})
}

// Stop cancels the streaming turn, keeping its partial answer.
func (s *Session) Stop() {
	s.loop.Post(s.conn.Cancel)
}

// NewChat clears the view and the selection.
func (s *Session) NewChat() {
	s.loop.Post(s.dir.Create)
}

// Select replays chatID into the view and persists the selection.
func (s *Session) Select(chatID string) {
	s.loop.Post(func() {
		started := time.Now()
		s.dir.Select(chatID, func(err error) { s.recordReplay(started, err) })
	})
}

// Delete removes a chat from the backend.
func (s *Session) Delete(chatID string) {
	s.loop.Post(func() { s.dir.Delete(chatID, nil) })
}

// Refresh reloads the chat list.
func (s *Session) Refresh() {
	s.loop.Post(func() { s.dir.Refresh(nil) })
}

// UseChat sets the chat the next Send continues, without replaying it.
func (s *Session) UseChat(chatID string) {
	s.loop.Post(func() { s.dir.Adopt(chatID) })
}

// Reveal returns the reasoning text behind a bubble's thinking hint.
func (s *Session) Reveal(ctx context.Context, bubbleID int) (title, text string, ok bool, err error) {
	err = s.loop.Call(ctx, func() {
		title, text, ok = s.transcript.Reveal(bubbleID)
	})
	if err != nil {
		return "", "", false, fmt.Errorf("reveal thinking: %w", err)
	}
	return title, text, ok, nil
}

// State returns the current view-model.
func (s *Session) State(ctx context.Context) (State, error) {
	var st State
	if err := s.loop.Call(ctx, func() { st = s.snapshot() }); err != nil {
		return State{}, fmt.Errorf("read state: %w", err)
	}
	return st, nil
}

// Stats returns the collected client metrics.
func (s *Session) Stats() metrics.Snapshot {
	return s.metrics.Snapshot()
}

func (s *Session) snapshot() State {
	return State{
		Transcript: s.transcript.Snapshot(),
		Chats:      s.dir.List(),
		Selected:   s.dir.Selected(),
		Stale:      s.dir.Stale(),
		Busy:       s.machine.Busy(),
		Phase:      s.machine.Phase(),
		Status:     s.machine.Status(),
		Health:     s.indicator.Current(),
	}
}

// markDirty schedules one publish after the current loop callback.
// It runs on the loop, so it must not wait on the loop's own queue.
func (s *Session) markDirty() {
	if s.dirty {
		return
	}
	s.dirty = true
	s.loop.Defer(s.publish)
}

func (s *Session) publish() {
	s.dirty = false
	s.mu.Lock()
	subs := slices.Clone(s.subscribers)
	s.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	st := s.snapshot()
	for _, fn := range subs {
		fn(st)
	}
}

func (s *Session) onChatCreated(chatID string) {
	s.dir.Adopt(chatID)
	s.dir.Refresh(nil)
}

func (s *Session) onFinished(res turn.Result) {
	if res.Err != nil {
		s.metrics.RecordFailure(metrics.OpTurn)
	} else {
		s.metrics.RecordTiming(metrics.OpTurn, time.Since(s.turnStarted))
		if res.ThinkMs > 0 {
			s.metrics.RecordTiming(metrics.OpThink, time.Duration(res.ThinkMs)*time.Millisecond)
		}
		if res.TotalMs > 0 {
			s.metrics.RecordTiming(metrics.OpServerTotal, time.Duration(res.TotalMs)*time.Millisecond)
		}
		s.dir.Adopt(res.ChatID)
		s.dir.Refresh(nil)
	}
	s.metrics.RecordRenders(s.gate.Requested, s.gate.Rendered)

	s.mu.Lock()
	fns := slices.Clone(s.finished)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(res)
	}
}

// clearTurn abandons the live turn before the directory clears the view.
func (s *Session) clearTurn() {
	s.conn.Abandon()
	s.machine.Reset()
}

func (s *Session) recordReplay(started time.Time, err error) {
	if err != nil {
		s.metrics.RecordFailure(metrics.OpReplay)
		return
	}
	s.metrics.RecordTiming(metrics.OpReplay, time.Since(started))
}
