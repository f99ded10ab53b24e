package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lavandejoey/MobileRAG/internal/app"
	"github.com/lavandejoey/MobileRAG/internal/markup"
	"github.com/lavandejoey/MobileRAG/internal/state"
	"github.com/lavandejoey/MobileRAG/internal/turn"
)

var (
	askChatID        string
	askNew           bool
	askDebugThinking bool
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and stream the answer",
	Long: `Send one message and stream the answer to stdout.

By default the message continues the chat selected for the current profile
(see 'mobilerag select'). The chat the answer was stored in becomes the
selected chat, so consecutive asks form one conversation.

The model's reasoning is not printed unless --debug-thinking is given.
Press Ctrl+C once to stop the answer and keep what arrived so far.

Examples:
  mobilerag ask "Summarize the install guide"
  mobilerag ask --new "Start over: what is RAG?"
  mobilerag ask --chat-id 3f2a9c1e "And the second step?"
  mobilerag ask --debug-thinking "Why is the sky blue?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askChatID, "chat-id", "", "continue this chat (id or unique prefix)")
	askCmd.Flags().BoolVar(&askNew, "new", false, "start a new chat")
	askCmd.Flags().BoolVar(&askDebugThinking, "debug-thinking", false, "print the model's reasoning after the answer")
	askCmd.MarkFlagsMutuallyExclusive("chat-id", "new")
}

func runAsk(cmd *cobra.Command, args []string) error {
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return errors.New("message is empty")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	chatID, err := askTarget(ctx)
	if err != nil {
		return err
	}

	session := app.New(app.Options{
		Config:       &cfg,
		Client:       apiClient,
		Store:        stateStore,
		Renderer:     markup.Plain,
		Logger:       logger,
		DisableProbe: true,
	})
	go func() { _ = session.Run(ctx) }()
	if chatID != "" {
		session.UseChat(chatID)
	}

	var res turn.Result
	if isTerminal() {
		res, err = runAskProgress(session, message)
	} else {
		res, err = streamAnswer(ctx, session, message, os.Stdout)
	}
	if err != nil {
		return err
	}

	printAskSummary(os.Stderr, res, askDebugThinking)
	if res.Err != nil {
		return res.Err
	}
	return nil
}

// askTarget picks the chat the message continues; empty means a new chat.
func askTarget(ctx context.Context) (string, error) {
	if askNew {
		return "", nil
	}
	if askChatID != "" {
		chat, err := resolveChat(ctx, apiClient, askChatID)
		if err != nil {
			return "", err
		}
		return chat.ChatID, nil
	}
	id, err := stateStore.Selected(cfg.Profile)
	if errors.Is(err, state.ErrNoProfile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read selection: %w", err)
	}
	return id, nil
}

// answerWriter prints the growing answer text as deltas.
type answerWriter struct {
	mu      sync.Mutex
	w       io.Writer
	printed int
}

func (a *answerWriter) update(answer string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(answer) <= a.printed {
		return
	}
	fmt.Fprint(a.w, answer[a.printed:])
	a.printed = len(answer)
}

// streamAnswer sends message and writes the answer to w as it arrives.
// An interrupt stops the turn; the partial answer is kept.
func streamAnswer(ctx context.Context, session *app.Session, message string, w io.Writer) (turn.Result, error) {
	out := &answerWriter{w: w}
	results := make(chan turn.Result, 1)

	session.Subscribe(func(st app.State) {
		if a := st.Transcript.Assistants(); len(a) > 0 {
			out.update(a[len(a)-1].Markup)
		}
	})
	session.OnFinished(func(r turn.Result) { results <- r })

	interrupt, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	session.Send(message)
	for {
		select {
		case r := <-results:
			out.update(r.Answer)
			if out.printed > 0 {
				fmt.Fprintln(w)
			}
			return r, nil
		case <-interrupt.Done():
			if ctx.Err() != nil {
				return turn.Result{}, ctx.Err()
			}
			// A second interrupt kills the process.
			stop()
			session.Stop()
			interrupt = ctx
		}
	}
}

func printAskSummary(w io.Writer, res turn.Result, showThink bool) {
	theme := defaultTheme
	if showThink && res.Think != "" {
		title := "Thinking"
		if res.ThinkMs > 0 {
			title = fmt.Sprintf("Thinking (%.2fs)", float64(res.ThinkMs)/1000)
		}
		fmt.Fprintln(w, theme.statusStyle().Render(title))
		fmt.Fprintln(w, theme.hintStyle().Render(res.Think))
	}

	var parts []string
	if res.ChatID != "" {
		parts = append(parts, "chat "+shortID(res.ChatID))
	}
	if res.ThinkMs > 0 {
		parts = append(parts, fmt.Sprintf("think %.2fs", float64(res.ThinkMs)/1000))
	}
	if res.TotalMs > 0 {
		parts = append(parts, fmt.Sprintf("total_ms %d", res.TotalMs))
	}
	if len(parts) > 0 {
		fmt.Fprintln(w, theme.hintStyle().Render(strings.Join(parts, " · ")))
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
