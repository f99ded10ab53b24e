package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new chat with the next message",
	Long: `Clear the selected chat of the current profile.

The next 'mobilerag ask' (or the chat screen) starts a new chat; the
backend creates it when the first message is sent.

Examples:
  mobilerag new
  mobilerag new --profile work`,
	Args: cobra.NoArgs,
	RunE: runNew,
}

var selectCmd = &cobra.Command{
	Use:   "select <chat-id>",
	Short: "Select the chat new messages continue",
	Long: `Select the chat that 'mobilerag ask' and the chat screen continue.

The selection is stored per profile in the local state file.

Examples:
  mobilerag select 3f2a9c1e
  mobilerag select 3f2a9c1e --profile work`,
	Args: cobra.ExactArgs(1),
	RunE: runSelect,
}

func runNew(cmd *cobra.Command, args []string) error {
	if err := stateStore.ClearSelected(cfg.Profile); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	fmt.Println("The next message starts a new chat.")
	return nil
}

func runSelect(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ClientTimeout)
	defer cancel()

	chat, err := resolveChat(ctx, apiClient, args[0])
	if err != nil {
		return err
	}
	if err := stateStore.SetSelected(cfg.Profile, chat.ChatID); err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	fmt.Printf("Selected: %s (%s)\n", chat.DisplayTitle(), chat.ShortID())
	return nil
}
