package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lavandejoey/MobileRAG/internal/client"
	"github.com/lavandejoey/MobileRAG/internal/state"
)

var (
	deleteForce bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a chat from the backend",
	Long: `Delete a chat and all of its messages from the backend.

If the chat is selected for the current profile, the selection is cleared
and the next message starts a new chat.
Requires confirmation unless --force is used.

Examples:
  mobilerag delete 3f2a9c1e
  mobilerag delete 3f2a9c1e --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ClientTimeout)
	defer cancel()

	chat, err := resolveChat(ctx, apiClient, args[0])
	if err != nil {
		return err
	}

	// Confirm deletion
	if !deleteForce {
		fmt.Printf("About to delete: %s (%s)\n", chat.DisplayTitle(), chat.ChatID)
		fmt.Print("\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	// Already gone counts as deleted.
	if err := apiClient.DeleteChat(ctx, chat.ChatID); err != nil && !errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("delete chat: %w", err)
	}

	selected, err := stateStore.Selected(cfg.Profile)
	if err != nil && !errors.Is(err, state.ErrNoProfile) {
		return fmt.Errorf("read selection: %w", err)
	}
	if selected == chat.ChatID {
		if err := stateStore.ClearSelected(cfg.Profile); err != nil {
			return fmt.Errorf("clear selection: %w", err)
		}
	}

	fmt.Printf("Deleted: %s\n", chat.DisplayTitle())
	return nil
}
