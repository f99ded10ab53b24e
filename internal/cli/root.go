// Package cli provides the command-line interface for mobilerag.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lavandejoey/MobileRAG/internal/client"
	"github.com/lavandejoey/MobileRAG/internal/config"
	"github.com/lavandejoey/MobileRAG/internal/state"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string
	profile   string
	sessionID string

	// Global config, logger and backend client
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func() error
	apiClient  *client.Client
	stateStore *state.Store
)

// rootCmd runs the interactive chat screen when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "mobilerag",
	Short: "Streaming chat client for a MobileRAG backend",
	Long: `mobilerag is a terminal client for a MobileRAG chat backend.

Without a subcommand it opens the interactive chat screen: a chat list,
the transcript of the selected chat and a composer. Answers stream in as
they are generated; the model's reasoning is hidden behind a "Thought"
hint that can be opened with ctrl+t.

Examples:
  mobilerag
  mobilerag --server http://10.0.0.5:8000
  mobilerag ask "What is in the onboarding doc?"
  mobilerag list`,
	Version: Version,
	Args:    cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if serverURL != "" {
			cfg.ServerURL = serverURL
		}
		if profile != "" {
			cfg.Profile = profile
		}
		if sessionID != "" {
			cfg.SessionID = sessionID
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		// Full-screen views own the terminal, so they log to the file only.
		var console io.Writer = os.Stderr
		if cmd == cmd.Root() || (cmd.Name() == "ask" && isTerminal()) {
			console = nil
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel, console)
		slog.SetDefault(logger)

		apiClient = client.New(cfg.ServerURL, cfg.APIPrefix, cfg.ClientTimeout).WithLogger(logger.With("component", "client"))
		stateStore = state.NewStore(cfg.StateFile)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
	RunE: runChat,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend base URL (default $MOBILERAG_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "local profile holding the selected chat")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session id sent with every message")

	// Add subcommands
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(selectCmd)
}

// isTerminal reports whether stdout is an interactive terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// terminalSize returns the size of stdout, or 80x24 when it is not a terminal.
func terminalSize() (width, height int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return w, h
}
