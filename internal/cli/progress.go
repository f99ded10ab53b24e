package cli

import (
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/lavandejoey/MobileRAG/internal/app"
	"github.com/lavandejoey/MobileRAG/internal/turn"
)

const tickInterval = 100 * time.Millisecond

// Theme holds the color scheme for command output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg refreshes the elapsed time
type tickMsg time.Time

// askStateMsg carries a published session state
type askStateMsg app.State

// askResultMsg carries the finished turn
type askResultMsg turn.Result

// stopper cancels a streaming turn.
type stopper interface {
	Stop()
}

// askModel is the bubbletea model for one streamed answer.
type askModel struct {
	session  stopper
	theme    Theme
	started  time.Time
	elapsed  time.Duration
	status   string
	answer   string
	hint     string
	result   *turn.Result
	stopping bool
	quitting bool
}

func newAskModel(s stopper, started time.Time) askModel {
	return askModel{
		session: s,
		theme:   defaultTheme,
		started: started,
		status:  turn.StatusThinking,
	}
}

// Init returns the initial command (start the clock).
func (m askModel) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages and returns the updated model.
func (m askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// First press stops the turn and waits for the partial answer.
			if m.stopping {
				m.quitting = true
				return m, tea.Quit
			}
			m.stopping = true
			m.session.Stop()
		}

	case tickMsg:
		m.elapsed = time.Time(msg).Sub(m.started)
		return m, tickCmd()

	case askStateMsg:
		st := app.State(msg)
		if st.Status != "" {
			m.status = st.Status
		}
		if a := st.Transcript.Assistants(); len(a) > 0 {
			last := a[len(a)-1]
			m.answer = last.Markup
			m.hint = last.Hint.Label
		}

	case askResultMsg:
		r := turn.Result(msg)
		m.result = &r
		m.answer = r.Answer
		return m, tea.Quit
	}

	return m, nil
}

// View renders the answer as it streams.
func (m askModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m askModel) renderContent() string {
	if m.result != nil || m.quitting {
		return m.finalView()
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.status))
	clock := fmt.Sprintf("%.1fs", m.elapsed.Seconds())
	header := status + " " + clock
	if m.hint != "" {
		header += " " + m.theme.hintStyle().Render(m.hint)
	}

	hint := "Press Ctrl+C to stop"
	if m.stopping {
		hint = "Stopping... press Ctrl+C again to quit"
	}
	return fmt.Sprintf("%s\n%s\n%s\n", header, m.answer, m.theme.hintStyle().Render(hint))
}

// finalView renders the complete answer.
func (m askModel) finalView() string {
	if m.result == nil {
		return m.theme.hintStyle().Render("\nStopped.\n")
	}
	if m.result.Err != nil {
		out := ""
		if m.answer != "" {
			out = m.answer + "\n"
		}
		return out + m.theme.errorStyle().Render(fmt.Sprintf("✗ %s", m.result.Err)) + "\n"
	}

	mark := m.theme.completedStyle().Render("✓")
	if m.hint != "" {
		mark += " " + m.theme.hintStyle().Render(m.hint)
	}
	return mark + "\n" + m.answer + "\n"
}

// tickCmd returns a command that sends a tick after the tick interval.
func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runAskProgress runs the interactive answer view for one message.
// A user who quits before the turn ends gets the partial result.
func runAskProgress(session *app.Session, message string) (turn.Result, error) {
	model := newAskModel(session, time.Now())
	p := tea.NewProgram(model)

	states := make(chan app.State, 1)
	done := make(chan struct{})
	defer close(done)

	session.Subscribe(func(st app.State) {
		select {
		case <-states:
		default:
		}
		states <- st
	})
	session.OnFinished(func(r turn.Result) {
		go p.Send(askResultMsg(r))
	})
	go func() {
		for {
			select {
			case st := <-states:
				p.Send(askStateMsg(st))
			case <-done:
				return
			}
		}
	}()
	session.Send(message)

	finalModel, err := p.Run()
	if err != nil {
		return turn.Result{}, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(askModel)
	if !ok {
		return turn.Result{}, nil
	}
	if m.result != nil {
		return *m.result, nil
	}
	return turn.Result{Answer: m.answer}, nil
}
