package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deusflow/trendpress/internal/app"
	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the background task queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Serve(ctx)
			})
		},
	}
}

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every active media source once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.CrawlActive(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate KEYWORD...",
		Short: "Draft one article per keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				var saved []*domain.Article
				var errs []error
				for _, kw := range args {
					article, err := a.GenerateKeyword(ctx, kw)
					switch {
					case err != nil:
						errs = append(errs, fmt.Errorf("%s: %w", kw, err))
					case article == nil:
						logger.Warn("keyword abandoned", "keyword", kw)
					default:
						saved = append(saved, article)
					}
				}
				if err := printJSON(cmd.OutOrStdout(), saved); err != nil {
					return err
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newTrendsCmd() *cobra.Command {
	var bulk int
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Print trending keywords",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if bulk > 0 {
					return printJSON(cmd.OutOrStdout(), map[string][]string{"keywords": a.Trends.Candidates(ctx, bulk)})
				}
				return printJSON(cmd.OutOrStdout(), map[string][]string{"keywords": a.Trends.Discover(ctx)})
			})
		},
	}
	cmd.Flags().IntVar(&bulk, "bulk", 0, "print N bulk-generation candidates instead")
	return cmd
}

func newRecommendCmd() *cobra.Command {
	var approve bool
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Suggest new media sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				recs, err := a.Recommender.Recommend(ctx)
				if err != nil {
					return err
				}
				if approve {
					for _, r := range recs {
						if _, err := a.Store.AddSource(ctx, domain.Source{Name: r.Name, URL: r.URL, Type: domain.SourceTypeWeb}); err != nil {
							return fmt.Errorf("failed to add source %s: %w", r.URL, err)
						}
						logger.Info("source added", "name", r.Name, "url", r.URL)
					}
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"recommendations": recs})
			})
		},
	}
	cmd.Flags().BoolVar(&approve, "approve", false, "register every recommendation as an active source")
	return cmd
}

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish ID",
		Short: "Publish a reviewed draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid article id %q", args[0])
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				article, err := a.Publisher.Publish(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), article)
			})
		},
	}
}

func newRunCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the manual pipeline for one URL or every active source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.RunPipeline(ctx, url)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "page to process (default: all active sources)")
	return cmd
}
