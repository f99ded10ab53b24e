package view

import "fmt"

// HintState is the visual state of a thinking hint.
type HintState int

const (
	// HintHidden means no reasoning was produced (or none is known yet).
	HintHidden HintState = iota
	// HintThinking means reasoning is in progress; nothing can be inspected yet.
	HintThinking
	// HintDone means reasoning finished; its text can be revealed on request.
	HintDone
)

func (s HintState) String() string {
	switch s {
	case HintThinking:
		return "thinking"
	case HintDone:
		return "done"
	default:
		return "hidden"
	}
}

// ThinkHint is the small control next to an assistant badge that surfaces
// the existence and duration of reasoning. The reasoning text itself is
// frozen when the hint is marked done and only returned by Reveal.
type ThinkHint struct {
	state HintState
	ms    int64
	text  string
}

// State returns the hint's visual state.
func (h ThinkHint) State() HintState { return h.state }

// Visible reports whether the hint is shown at all.
func (h ThinkHint) Visible() bool { return h.state != HintHidden }

// DurationMs returns the frozen reasoning duration.
func (h ThinkHint) DurationMs() int64 { return h.ms }

// Label is the text shown in the badge line.
func (h ThinkHint) Label() string {
	switch h.state {
	case HintThinking:
		return "Thinking"
	case HintDone:
		return fmt.Sprintf("Thought · %.1fs", float64(h.ms)/1000)
	default:
		return ""
	}
}

// DrawerTitle is the heading of the reasoning drawer.
func (h ThinkHint) DrawerTitle() string {
	if h.ms > 0 {
		return fmt.Sprintf("Thinking (%.2fs)", float64(h.ms)/1000)
	}
	return "Thinking"
}

// Reveal returns the frozen reasoning text. ok is false unless the hint is done.
func (h ThinkHint) Reveal() (title, text string, ok bool) {
	if h.state != HintDone {
		return "", "", false
	}
	return h.DrawerTitle(), h.text, true
}
