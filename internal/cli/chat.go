package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lavandejoey/MobileRAG/internal/app"
	"github.com/lavandejoey/MobileRAG/internal/markup"
	"github.com/lavandejoey/MobileRAG/internal/tui"
)

func runChat(cmd *cobra.Command, args []string) error {
	if !isTerminal() {
		return errors.New("the chat screen needs a terminal; use 'mobilerag ask' in scripts")
	}
	width, height := terminalSize()

	session := app.New(app.Options{
		Config:   &cfg,
		Client:   apiClient,
		Store:    stateStore,
		Renderer: markup.Terminal(tui.TranscriptWidth(width)),
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("session stopped", "error", err)
		}
	}()

	if err := tui.Run(session, width, height); err != nil {
		return fmt.Errorf("run chat: %w", err)
	}

	stats := session.Stats()
	if stats.Turn != nil {
		logger.Info("session finished",
			"turns", stats.Turn.Count,
			"failed", stats.Turn.Failed,
			"renders_requested", stats.Render.Requested,
			"renders", stats.Render.Rendered)
	}
	return nil
}
