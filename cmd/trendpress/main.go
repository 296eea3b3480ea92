package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/trendpress/internal/app"
	"github.com/deusflow/trendpress/internal/config"
	"github.com/deusflow/trendpress/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trendpress",
		Short: "Beauty trend content engine",
		Long: `trendpress discovers trending beauty keywords, crawls registered media sources
and drafts grounded articles for editorial review.

Example usage:
  trendpress serve                  # HTTP API and background workers
  trendpress crawl                  # crawl every active source once
  trendpress generate レチノール    # draft an article for one keyword
  trendpress run --url https://...  # manual pipeline for one page`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newCrawlCmd(),
		newGenerateCmd(),
		newTrendsCmd(),
		newRecommendCmd(),
		newPublishCmd(),
		newRunCmd(),
	)
	return root
}

// withApp loads configuration, builds the app and closes it after fn returns.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	log := logger.Init()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
