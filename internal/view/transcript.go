// Package view holds the chat view-model: an ordered transcript of bubbles
// that the turn machine and the history reconciler both build, and a pure
// projection of it (Snapshot) that UI adapters apply to their toolkit.
package view

import (
	"time"

	"github.com/lavandejoey/MobileRAG/internal/models"
)

// Kind is the author of a bubble.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindSystem    Kind = "system"
)

// Badge returns the upper-case label shown above a bubble.
func (k Kind) Badge() string {
	switch k {
	case KindUser:
		return "YOU"
	case KindAssistant:
		return "ASSISTANT"
	default:
		return "SYSTEM"
	}
}

// Bubble is one visible message. Assistant bubbles are the AssistantView:
// answer markup plus an optional thinking hint.
type Bubble struct {
	id     int
	kind   Kind
	at     time.Time
	source string
	markup string
	hint   ThinkHint
	total  int64

	owner *Transcript
}

// ID is unique within the transcript's lifetime, across clears.
func (b *Bubble) ID() int { return b.id }

// Kind returns the bubble author.
func (b *Bubble) Kind() Kind { return b.kind }

// Time returns when the bubble was created (or persisted, for replays).
func (b *Bubble) Time() time.Time { return b.at }

// Source returns the raw text.
func (b *Bubble) Source() string { return b.source }

// Markup returns the rendered answer; empty for user and system bubbles.
func (b *Bubble) Markup() string { return b.markup }

// Hint returns a copy of the thinking hint.
func (b *Bubble) Hint() ThinkHint { return b.hint }

// TotalMs returns the end-to-end turn duration, if known.
func (b *Bubble) TotalMs() int64 { return b.total }

// SetAnswer replaces the answer region with markup rendered from source.
func (b *Bubble) SetAnswer(source, markup string) {
	if b.source == source && b.markup == markup {
		return
	}
	b.source = source
	b.markup = markup
	b.changed()
}

// HintThinking shows the in-progress hint with nothing to inspect.
func (b *Bubble) HintThinking() {
	b.hint = ThinkHint{state: HintThinking}
	b.changed()
}

// HintDone freezes text and duration into an inspectable hint.
func (b *Bubble) HintDone(thinkMs int64, text string) {
	if thinkMs < 0 {
		thinkMs = 0
	}
	b.hint = ThinkHint{state: HintDone, ms: thinkMs, text: text}
	b.changed()
}

// HideHint removes the hint.
func (b *Bubble) HideHint() {
	if b.hint.state == HintHidden {
		return
	}
	b.hint = ThinkHint{}
	b.changed()
}

// AttachThink binds persisted reasoning to the bubble. Empty text hides the
// hint; the duration comes from meta when present.
func (b *Bubble) AttachThink(text string, meta *models.Meta) {
	if text == "" {
		b.HideHint()
		return
	}
	var ms int64
	if meta != nil {
		ms = meta.ThinkMs
	}
	b.HintDone(ms, text)
}

// SetTotal records the end-to-end duration of the turn.
func (b *Bubble) SetTotal(ms int64) {
	if ms == b.total {
		return
	}
	b.total = ms
	b.changed()
}

func (b *Bubble) changed() {
	if b.owner != nil {
		b.owner.changed()
	}
}

// Transcript is the ordered list of bubbles in the chat view.
// It is not safe for concurrent use; all calls happen on the loop.
type Transcript struct {
	bubbles  []*Bubble
	nextID   int
	version  uint64
	onChange func()
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// OnChange registers fn to run after every mutation.
func (t *Transcript) OnChange(fn func()) {
	t.onChange = fn
}

// AddUser appends a user bubble.
func (t *Transcript) AddUser(text string, at time.Time) *Bubble {
	return t.add(KindUser, text, at)
}

// AddAssistant appends an empty assistant bubble.
func (t *Transcript) AddAssistant(at time.Time) *Bubble {
	return t.add(KindAssistant, "", at)
}

// AddSystem appends a system notice.
func (t *Transcript) AddSystem(text string, at time.Time) *Bubble {
	return t.add(KindSystem, text, at)
}

func (t *Transcript) add(kind Kind, text string, at time.Time) *Bubble {
	t.nextID++
	b := &Bubble{id: t.nextID, kind: kind, at: at, source: text, owner: t}
	t.bubbles = append(t.bubbles, b)
	t.changed()
	return b
}

// Clear removes every bubble. Bubbles handed out earlier are detached, so
// late mutations through them no longer affect the transcript.
func (t *Transcript) Clear() {
	for _, b := range t.bubbles {
		b.owner = nil
	}
	t.bubbles = nil
	t.changed()
}

// Len returns the number of bubbles.
func (t *Transcript) Len() int { return len(t.bubbles) }

// Bubbles returns the bubbles in display order.
func (t *Transcript) Bubbles() []*Bubble {
	out := make([]*Bubble, len(t.bubbles))
	copy(out, t.bubbles)
	return out
}

// Find returns the bubble with the given id.
func (t *Transcript) Find(id int) (*Bubble, bool) {
	for _, b := range t.bubbles {
		if b.id == id {
			return b, true
		}
	}
	return nil, false
}

// Reveal returns the reasoning text of a bubble's hint, if it has one.
func (t *Transcript) Reveal(id int) (title, text string, ok bool) {
	b, found := t.Find(id)
	if !found {
		return "", "", false
	}
	return b.hint.Reveal()
}

// Version increases on every mutation.
func (t *Transcript) Version() uint64 { return t.version }

func (t *Transcript) changed() {
	t.version++
	if t.onChange != nil {
		t.onChange()
	}
}
