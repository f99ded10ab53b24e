package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lavandejoey/MobileRAG/internal/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the backend is reachable",
	Long: `Probe the backend's status route once and print the result.

Exits with an error when the backend cannot be reached.

Examples:
  mobilerag status
  mobilerag status --server http://10.0.0.5:8000`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ClientTimeout)
	defer cancel()

	indicator := &health.Indicator{}
	probe := health.NewProbe(apiClient, indicator, cfg.StatusInterval, logger)
	reading := probe.Check(ctx)

	theme := defaultTheme
	server := theme.hintStyle().Render(apiClient.BaseURL())
	switch reading.Level {
	case health.Online:
		fmt.Printf("%s %s\n", theme.completedStyle().Render("● online"), server)
	case health.Degraded:
		fmt.Printf("%s %s (status %q)\n", theme.statusStyle().Render("● degraded"), server, reading.Status)
	default:
		fmt.Printf("%s %s\n", theme.errorStyle().Render("● offline"), server)
		if reading.Err == nil {
			return errors.New("backend unreachable")
		}
		return fmt.Errorf("backend unreachable: %w", reading.Err)
	}
	return nil
}
