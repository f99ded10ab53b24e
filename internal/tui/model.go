// Package tui is the interactive chat screen.
//
// The model holds no chat logic. It renders the session's published State
// and turns key presses into session calls.
package tui

import (
	"context"
	"strings"
	"time"

	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/lavandejoey/MobileRAG/internal/app"
)

const (
	sidebarWidth  = 30
	composerLines = 3
	// Below this width the chat list is hidden.
	minSidebarTotal = 80
)

// Session is the part of app.Session the screen drives.
type Session interface {
	Send(message string)
	Stop()
	NewChat()
	Select(chatID string)
	Delete(chatID string)
	Refresh()
	Reveal(ctx context.Context, bubbleID int) (title, text string, ok bool, err error)
}

type focus int

const (
	focusComposer focus = iota
	focusList
)

// stateMsg carries a published session state into the program.
type stateMsg app.State

type revealMsg struct {
	title string
	text  string
	ok    bool
	err   error
}

type model struct {
	session Session
	theme   Theme

	state    app.State
	viewport viewport.Model
	input    textarea.Model

	width  int
	height int

	focus         focus
	cursor        int
	confirmDelete string

	drawerOpen  bool
	drawerTitle string
	drawerText  string

	notice   string
	quitting bool
}

func newModel(session Session, width, height int) *model {
	input := textarea.New()
	input.Placeholder = "Send a message (enter to send, ctrl+j for newline)"
	input.ShowLineNumbers = false
	input.SetHeight(composerLines)
	input.Focus()

	m := &model{
		session:  session,
		theme:    defaultTheme,
		viewport: viewport.New(),
		input:    input,
	}
	m.resize(width, height)
	return m
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshTranscript()
		return m, nil

	case stateMsg:
		m.applyState(app.State(msg))
		return m, nil

	case revealMsg:
		switch {
		case msg.err != nil:
			m.notice = msg.err.Error()
		case !msg.ok:
			m.notice = "No thinking to show"
		default:
			m.drawerOpen = true
			m.drawerTitle = msg.title
			m.drawerText = msg.text
		}
		return m, nil

	case tea.KeyPressMsg:
		key := msg.String()
		if cmd, handled := m.handleKey(key); handled {
			return m, cmd
		}
		// Typed text belongs to the composer; only paging scrolls the transcript.
		if key != "pgup" && key != "pgdown" {
			var cmd tea.Cmd
			if m.focus == focusComposer {
				m.input, cmd = m.input.Update(msg)
			}
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleKey maps a key to a session action. It reports false for keys the
// focused component should receive.
func (m *model) handleKey(key string) (tea.Cmd, bool) {
	m.notice = ""

	if key == "ctrl+c" {
		m.quitting = true
		return tea.Quit, true
	}

	if m.confirmDelete != "" {
		if key == "y" {
			m.session.Delete(m.confirmDelete)
		}
		m.confirmDelete = ""
		return nil, true
	}

	if m.drawerOpen && (key == "esc" || key == "ctrl+t") {
		m.drawerOpen = false
		return nil, true
	}

	switch key {
	case "tab":
		m.toggleFocus()
		return nil, true
	case "ctrl+n":
		m.session.NewChat()
		return nil, true
	case "ctrl+r":
		m.session.Refresh()
		return nil, true
	case "ctrl+t":
		return m.reveal(), true
	case "esc", "ctrl+x":
		if m.state.Busy {
			m.session.Stop()
		}
		return nil, true
	}

	if m.focus == focusList {
		return nil, m.handleListKey(key)
	}

	if key == "enter" {
		m.send()
		return nil, true
	}
	if key == "ctrl+j" {
		m.input.InsertString("\n")
		return nil, true
	}
	return nil, false
}

func (m *model) handleListKey(key string) bool {
	n := len(m.state.Chats)
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < n-1 {
			m.cursor++
		}
	case "enter":
		if n > 0 {
			m.session.Select(m.state.Chats[m.cursor].ChatID)
			m.toggleFocus()
		}
	case "d", "delete":
		if n > 0 {
			m.confirmDelete = m.state.Chats[m.cursor].ChatID
		}
	}
	return true
}

func (m *model) toggleFocus() {
	if m.focus == focusComposer {
		m.focus = focusList
		m.input.Blur()
		return
	}
	m.focus = focusComposer
	m.input.Focus()
}

func (m *model) send() {
	if m.state.Busy {
		m.notice = "Wait for the answer or press esc to stop"
		return
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	m.session.Send(text)
	m.input.Reset()
}

func (m *model) reveal() tea.Cmd {
	id, ok := lastRevealable(m.state.Transcript)
	if !ok {
		m.notice = "No thinking to show"
		return nil
	}
	session := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		title, text, ok, err := session.Reveal(ctx, id)
		return revealMsg{title: title, text: text, ok: ok, err: err}
	}
}

func (m *model) applyState(st app.State) {
	follow := m.viewport.AtBottom()
	changed := st.Transcript.Version != m.state.Transcript.Version
	m.state = st

	if m.cursor >= len(st.Chats) {
		m.cursor = max(len(st.Chats)-1, 0)
	}
	if changed || len(st.Transcript.Bubbles) == 0 {
		m.refreshTranscript()
		if follow || st.Busy {
			m.viewport.GotoBottom()
		}
	}
}

func (m *model) refreshTranscript() {
	m.viewport.SetContent(renderTranscript(m.state.Transcript, m.theme))
}

func (m *model) showSidebar() bool {
	return m.width >= minSidebarTotal
}

// TranscriptWidth returns the transcript column width for a terminal width.
func TranscriptWidth(width int) int {
	if width >= minSidebarTotal {
		return width - sidebarWidth - 2
	}
	return width
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height

	mainWidth := TranscriptWidth(width)
	// status line, composer, footer and the composer border spacing
	bodyHeight := height - composerLines - 3
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	m.viewport.SetWidth(max(mainWidth, 1))
	m.viewport.SetHeight(bodyHeight)
	m.input.SetWidth(max(width, 1))
}

func (m *model) View() tea.View {
	if m.quitting {
		return tea.NewView("")
	}
	return tea.NewView(m.render())
}

func (m *model) render() string {
	body := m.viewport.View()
	if m.drawerOpen {
		body = renderDrawer(m.drawerTitle, m.drawerText, m.viewport.Width()-2, m.theme)
	}
	if m.showSidebar() {
		list := renderChatList(m.state.Chats, m.state.Selected, m.cursor, m.focus == focusList, sidebarWidth, m.theme)
		sidebar := m.theme.sidebarStyle(sidebarWidth, m.viewport.Height()).Render(list)
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", body)
	}

	var b strings.Builder
	b.WriteString(renderStatus(m.state, m.theme))
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m *model) footer() string {
	switch {
	case m.confirmDelete != "":
		return m.theme.badgeStyle(m.theme.System).Render("Delete this chat? (y/n)")
	case m.notice != "":
		return m.theme.hintStyle().Render(m.notice)
	case m.focus == focusList:
		return m.theme.dimStyle().Render("↑/↓ move • enter open • d delete • tab back")
	default:
		return m.theme.dimStyle().Render("enter send • esc stop • tab chats • ctrl+n new • ctrl+t thinking • ctrl+c quit")
	}
}
