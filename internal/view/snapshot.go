package view

import "time"

// HintView is the projected thinking hint. It never carries the reasoning text.
type HintView struct {
	State       HintState
	Label       string
	DrawerTitle string
	DurationMs  int64
}

// BubbleView is the projected bubble.
type BubbleView struct {
	ID      int
	Kind    Kind
	Badge   string
	Time    time.Time
	Text    string
	Markup  string
	Hint    HintView
	TotalMs int64
}

// Snapshot is an immutable projection of a transcript.
type Snapshot struct {
	Version uint64
	Bubbles []BubbleView
}

// Snapshot projects the transcript. The result shares nothing with t.
func (t *Transcript) Snapshot() Snapshot {
	s := Snapshot{Version: t.version, Bubbles: make([]BubbleView, 0, len(t.bubbles))}
	for _, b := range t.bubbles {
		s.Bubbles = append(s.Bubbles, BubbleView{
			ID:     b.id,
			Kind:   b.kind,
			Badge:  b.kind.Badge(),
			Time:   b.at,
			Text:   b.source,
			Markup: b.markup,
			Hint: HintView{
				State:       b.hint.state,
				Label:       b.hint.Label(),
				DrawerTitle: b.hint.DrawerTitle(),
				DurationMs:  b.hint.ms,
			},
			TotalMs: b.total,
		})
	}
	return s
}

// Assistants returns only the assistant bubbles.
func (s Snapshot) Assistants() []BubbleView {
	var out []BubbleView
	for _, b := range s.Bubbles {
		if b.Kind == KindAssistant {
			out = append(out, b)
		}
	}
	return out
}
