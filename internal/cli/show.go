package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lavandejoey/MobileRAG/internal/history"
	"github.com/lavandejoey/MobileRAG/internal/markup"
	"github.com/lavandejoey/MobileRAG/internal/view"
)

var (
	showThink bool
	showRaw   bool
)

var showCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Print a stored chat",
	Long: `Print the messages of a stored chat.

Assistant answers are rendered as Markdown when stdout is a terminal.
Reasoning is summarized as a "Thought" hint; --show-think prints it in full.

Examples:
  mobilerag show 3f2a9c1e
  mobilerag show 3f2a9c1e --show-think
  mobilerag show 3f2a9c1e --raw > chat.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showThink, "show-think", false, "print the reasoning behind each answer")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print answers without Markdown rendering")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ClientTimeout)
	defer cancel()

	chat, err := resolveChat(ctx, apiClient, args[0])
	if err != nil {
		return err
	}
	records, err := apiClient.GetMessages(ctx, chat.ChatID, cfg.MessageLimit)
	if err != nil {
		return fmt.Errorf("get messages: %w", err)
	}

	var renderer = markup.Plain
	if isTerminal() && !showRaw {
		width, _ := terminalSize()
		renderer = markup.Terminal(width)
	}

	transcript := view.NewTranscript()
	stats := history.New(transcript, renderer, logger).Replay(records)
	logger.Debug("replayed chat", "chat_id", chat.ChatID, "records", stats.Records, "skipped", stats.Skipped, "bad_meta", stats.BadMeta)

	theme := defaultTheme
	fmt.Println(theme.completedStyle().Render(chat.DisplayTitle()) + "  " + theme.hintStyle().Render(chat.ChatID))
	fmt.Println()
	printTranscript(os.Stdout, transcript, showThink)
	return nil
}

// printTranscript writes every bubble; with think set the reasoning
// behind each hint follows its answer.
func printTranscript(w io.Writer, t *view.Transcript, think bool) {
	theme := defaultTheme
	snap := t.Snapshot()
	if len(snap.Bubbles) == 0 {
		fmt.Fprintln(w, "No messages.")
		return
	}

	for i, b := range snap.Bubbles {
		if i > 0 {
			fmt.Fprintln(w)
		}

		badge := theme.statusStyle().Render(b.Badge)
		if b.Kind == view.KindSystem {
			badge = theme.errorStyle().Render(b.Badge)
		}
		header := badge
		if !b.Time.IsZero() {
			header += " " + theme.hintStyle().Render(b.Time.Local().Format("2006-01-02 15:04:05"))
		}
		if b.Hint.Label != "" {
			header += " " + theme.hintStyle().Render("["+b.Hint.Label+"]")
		}
		fmt.Fprintln(w, header)

		body := b.Text
		if b.Kind == view.KindAssistant {
			body = b.Markup
		}
		if body != "" {
			fmt.Fprintln(w, strings.TrimRight(body, "\n"))
		}

		if !think {
			continue
		}
		if title, text, ok := t.Reveal(b.ID); ok {
			fmt.Fprintln(w, theme.hintStyle().Render("--- "+title+" ---"))
			fmt.Fprintln(w, theme.hintStyle().Render(text))
		}
	}
}
