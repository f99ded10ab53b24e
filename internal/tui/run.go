package tui

import (
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/lavandejoey/MobileRAG/internal/app"
)

// Run shows the chat screen until the user quits. The session must already
// be running; Run boots it once the screen is subscribed.
func Run(session *app.Session, width, height int) error {
	m := newModel(session, width, height)
	p := tea.NewProgram(m)

	updates := make(chan app.State, 1)
	done := make(chan struct{})
	defer close(done)

	// Publishing runs on the session loop. Only the newest state is kept so
	// a slow screen never stalls it.
	session.Subscribe(func(st app.State) {
		select {
		case <-updates:
		default:
		}
		updates <- st
	})
	go func() {
		for {
			select {
			case st := <-updates:
				p.Send(stateMsg(st))
			case <-done:
				return
			}
		}
	}()
	session.Boot()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
