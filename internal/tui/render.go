package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/lavandejoey/MobileRAG/internal/app"
	"github.com/lavandejoey/MobileRAG/internal/health"
	"github.com/lavandejoey/MobileRAG/internal/models"
	"github.com/lavandejoey/MobileRAG/internal/view"
)

// renderTranscript draws every bubble of a snapshot, oldest first.
func renderTranscript(snap view.Snapshot, theme Theme) string {
	var b strings.Builder
	for i, bubble := range snap.Bubbles {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderBubble(bubble, theme))
	}
	return b.String()
}

func renderBubble(bubble view.BubbleView, theme Theme) string {
	var color = theme.System
	switch bubble.Kind {
	case view.KindUser:
		color = theme.User
	case view.KindAssistant:
		color = theme.Assistant
	}

	header := theme.badgeStyle(color).Render(bubble.Badge)
	if bubble.Hint.Label != "" {
		header += " " + theme.hintStyle().Render("["+bubble.Hint.Label+"]")
	}
	if !bubble.Time.IsZero() {
		header += "  " + theme.dimStyle().Render(clock(bubble.Time))
	}
	if bubble.TotalMs > 0 {
		header += "  " + theme.dimStyle().Render(fmt.Sprintf("%.1fs", float64(bubble.TotalMs)/1000))
	}

	body := bubble.Text
	if bubble.Kind == view.KindAssistant {
		body = bubble.Markup
	}
	if body == "" {
		return header
	}
	return header + "\n" + body
}

func clock(t time.Time) string {
	return t.Local().Format("15:04")
}

// renderStatus draws the status line: turn status and backend health.
func renderStatus(st app.State, theme Theme) string {
	dot := theme.dotStyle(theme.Online).Render("●")
	if st.Busy {
		dot = theme.dotStyle(theme.Busy).Render("●")
	}
	status := st.Status
	if status == "" {
		status = "Idle"
	}

	var hc = theme.Hint
	switch st.Health.Level {
	case health.Online:
		hc = theme.Online
	case health.Degraded:
		hc = theme.Busy
	case health.Offline:
		hc = theme.Offline
	}
	server := theme.dotStyle(hc).Render("server " + st.Health.Level.String())

	line := dot + " " + status + "  " + server
	if st.Stale {
		line += "  " + theme.hintStyle().Render("(chat list may be stale)")
	}
	return line
}

// renderChatList draws the sidebar; cursor marks the highlighted row.
func renderChatList(chats []models.Chat, selected string, cursor int, focused bool, width int, theme Theme) string {
	if len(chats) == 0 {
		return theme.hintStyle().Render("No chats yet")
	}

	var b strings.Builder
	for i, c := range chats {
		title := truncate(c.DisplayTitle(), width-2)
		marker := "  "
		if focused && i == cursor {
			marker = "> "
		}
		style := theme.dimStyle()
		if c.ChatID == selected {
			style = theme.badgeStyle(theme.Selected)
		}
		b.WriteString(marker + style.Render(title) + "\n")

		meta := c.ShortID()
		if !c.UpdatedAt.IsZero() {
			meta += " " + c.UpdatedAt.Local().Format("01-02 15:04")
		}
		b.WriteString("  " + theme.dimStyle().Render(truncate(meta, width-2)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderDrawer draws the reasoning drawer.
func renderDrawer(title, text string, width int, theme Theme) string {
	if text == "" {
		text = theme.hintStyle().Render("(empty)")
	}
	content := theme.badgeStyle(theme.Hint).Render(title) + "\n\n" + text
	return theme.drawerStyle(width).Render(content)
}

func truncate(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// lastRevealable returns the newest bubble whose thinking can be opened.
func lastRevealable(snap view.Snapshot) (int, bool) {
	for i := len(snap.Bubbles) - 1; i >= 0; i-- {
		if snap.Bubbles[i].Hint.State == view.HintDone {
			return snap.Bubbles[i].ID, true
		}
	}
	return 0, false
}
