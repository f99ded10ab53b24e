package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lavandejoey/MobileRAG/internal/models"
	"github.com/lavandejoey/MobileRAG/internal/state"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats, most recently updated first",
	Long: `List the chats stored on the backend, most recently updated first.

The chat selected for the current profile is marked with '*'.

Examples:
  mobilerag list
  mobilerag list --limit 10
  mobilerag list --profile work`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "max chats (default $MOBILERAG_CHAT_LIMIT)")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ClientTimeout)
	defer cancel()

	limit := listLimit
	if limit <= 0 {
		limit = cfg.ChatLimit
	}
	chats, err := apiClient.ListChats(ctx, limit)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}

	selected, err := stateStore.Selected(cfg.Profile)
	if err != nil && !errors.Is(err, state.ErrNoProfile) {
		logger.Warn("read selection failed", "error", err)
	}

	printChats(os.Stdout, chats, selected)
	return nil
}

func printChats(w io.Writer, chats []models.Chat, selected string) {
	if len(chats) == 0 {
		fmt.Fprintln(w, "No chats found.")
		return
	}

	theme := defaultTheme
	fmt.Fprintf(w, "Chats (%d):\n\n", len(chats))
	for _, c := range chats {
		mark := " "
		title := c.DisplayTitle()
		if c.ChatID == selected {
			mark = "*"
			title = theme.completedStyle().Render(title)
		}
		updated := "-"
		if !c.UpdatedAt.IsZero() {
			updated = c.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s %s  %s  %s\n", mark, theme.statusStyle().Render(c.ShortID()), theme.hintStyle().Render(updated), title)
		if verbose {
			fmt.Fprintf(w, "    %s\n", c.ChatID)
		}
	}
}
