// Package app wires the services from configuration and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/trendpress/internal/cache"
	"github.com/deusflow/trendpress/internal/config"
	"github.com/deusflow/trendpress/internal/crawl"
	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/gemini"
	"github.com/deusflow/trendpress/internal/generator"
	"github.com/deusflow/trendpress/internal/httpapi"
	"github.com/deusflow/trendpress/internal/metrics"
	"github.com/deusflow/trendpress/internal/notify"
	"github.com/deusflow/trendpress/internal/queue"
	"github.com/deusflow/trendpress/internal/rag"
	"github.com/deusflow/trendpress/internal/ratelimit"
	"github.com/deusflow/trendpress/internal/recommend"
	"github.com/deusflow/trendpress/internal/scraper"
	"github.com/deusflow/trendpress/internal/storage"
	"github.com/deusflow/trendpress/internal/translate"
	"github.com/deusflow/trendpress/internal/trends"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Store        storage.Store
	Generator    gemini.Generator
	Limiter      *ratelimit.AIRateLimiter
	Translations *cache.Cache[string]
	Assets       *generator.LocalAssets

	Trends       *trends.Discoverer
	RAG          *rag.Builder
	Orchestrator *generator.Orchestrator
	Reviser      *generator.Reviser
	Publisher    *generator.Publisher
	Recommender  *recommend.Recommender
	Crawler      *crawl.Crawler
	Owner        *notify.Owner
	Queue        *queue.Queue

	fileStore *storage.FileStore
	closers   []func()
}

// New builds every service. Missing credentials degrade to the dummy generator and the
// JSON file store instead of failing.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initGenerator(ctx); err != nil {
		a.Close()
		return nil, err
	}

	lists := cfg.Lists
	persona := lists.Persona

	a.Translations = cache.New[string](cfg.TranslateSize, cfg.TranslateTTL)
	translator := translate.New(a.Generator, logger, translate.Options{Cache: a.Translations})

	a.RAG = rag.NewBuilder(a.Store, translator, logger)
	a.Trends = trends.NewDiscoverer(a.Store, a.Generator, lists.FallbackKeywords, lists.BulkFallbackKeywords, logger)
	a.Recommender = recommend.New(a.Store, a.Generator, lists.RecommendationQueries, lists.PlatformDenylist, logger)

	a.Owner = notify.NewOwner(a.notifier(), cfg.AdminBaseURL, a.Metrics, logger)

	fetcher := scraper.NewPageFetcher(cfg.PageTimeout, logger)
	a.Assets = generator.NewLocalAssets(cfg.AssetDir, cfg.PublicBaseURL)
	a.Crawler = crawl.New(a.Store, fetcher, crawl.NewGofeedReader(cfg.PageTimeout), a.Metrics, logger)

	a.Orchestrator = generator.New(generator.Deps{
		Store:       a.Store,
		Generator:   a.Generator,
		Context:     a.RAG,
		Fetcher:     fetcher,
		Assets:      a.Assets,
		Notifier:    a.Owner,
		Metrics:     a.Metrics,
		Persona:     persona,
		Placeholder: cfg.PlaceholderImageURL,
		Logger:      logger,
	})
	a.Reviser = generator.NewReviser(a.Generator, persona, cfg.MockMode, logger)
	a.Publisher = generator.NewPublisher(a.Store, a.Owner, logger)

	a.Queue = queue.New(queue.Options{
		Workers:    cfg.QueueWorkers,
		Size:       cfg.QueueSize,
		Attempts:   cfg.TaskAttempts,
		RetryDelay: cfg.RetryDelay,
		Timeout:    cfg.TaskTimeout,
		Grace:      shutdownTimeout,
	}, a.Metrics, logger)

	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.Config.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, a.Config.DatabaseURL, a.Logger)
		if err == nil {
			a.Logger.Info("using PostgreSQL store")
			a.Store = pg
			a.closers = append(a.closers, pg.Close)
			return nil
		}
		a.Logger.Warn("PostgreSQL unavailable, falling back to file store", "error", err)
	}

	path := filepath.Join(a.Config.DataDir, "store.json")
	fs := storage.NewFileStore(path)
	if err := fs.Load(); err != nil {
		return fmt.Errorf("failed to load file store: %w", err)
	}
	for _, c := range a.Config.Lists.Categories {
		if err := fs.AddCategory(domain.Category{Name: c.Name, Slug: c.Slug}); err != nil {
			return fmt.Errorf("failed to seed category %q: %w", c.Slug, err)
		}
	}
	a.Logger.Info("using file store", "path", path, "categories", len(a.Config.Lists.Categories))
	a.Store = fs
	a.fileStore = fs
	return nil
}

func (a *App) initGenerator(ctx context.Context) error {
	cfg := a.Config
	a.Limiter = ratelimit.NewAIRateLimiter(cfg.MaxGeminiRequests, cfg.GeminiRPS, 1, a.Logger)

	if cfg.MockMode {
		a.Logger.Warn("running in mock mode, Gemini is not called")
		a.Generator = gemini.Dummy{}
		return nil
	}

	client, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:      cfg.GeminiAPIKey,
		TextModel:   cfg.TextModel,
		SearchModel: cfg.SearchModel,
		ImageModel:  cfg.ImageModel,
		Limiter:     a.Limiter,
		Logger:      a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to init Gemini: %w", err)
	}
	a.Generator = client
	a.closers = append(a.closers, client.Close)
	return nil
}

func (a *App) notifier() notify.Notifier {
	cfg := a.Config
	var channels notify.Multi
	if cfg.LineEnabled() {
		channels = append(channels, notify.NewLineNotifier(cfg.LineToken, cfg.LineUserID, a.Logger))
	}
	if cfg.TelegramEnabled() {
		channels = append(channels, notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, a.Logger))
	}
	if len(channels) == 0 {
		a.Logger.Warn("no notification channel configured, owner notifications are disabled")
		return notify.Noop{}
	}
	return channels
}

// Handler returns the HTTP surface bound to this app.
func (a *App) Handler() *echo.Echo {
	return httpapi.New(httpapi.Deps{
		Store:       a.Store,
		Trends:      a.Trends,
		Batch:       a,
		Crawler:     a.Crawler,
		Recommender: a.Recommender,
		RAG:         a.RAG,
		Reviser:     a.Reviser,
		Publisher:   a.Publisher,
		Queue:       a.Queue,
		Metrics:     a.Metrics,
		ExtraStats:  a.stats,
		APIKey:      a.Config.EngineAPIKey,
		AssetDir:    a.Assets.Dir(),
		Logger:      a.Logger,
	})
}

func (a *App) stats() map[string]any {
	hits, misses := a.Translations.Stats()
	out := map[string]any{
		"gemini":    a.Limiter.GetStats(),
		"queue_len": a.Queue.Len(),
		"mock_mode": a.Config.MockMode,
		"translate": map[string]int64{"hits": hits, "misses": misses},
	}
	if a.fileStore != nil {
		out["store"] = a.fileStore.GetStats()
	}
	return out
}

// Serve runs the HTTP server and the task queue until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	a.Queue.Start(ctx)
	e := a.Handler()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + a.Config.Port
		a.Logger.Info("starting HTTP server", "addr", addr, "mock_mode", a.Config.MockMode)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("http shutdown failed", "error", err)
		}
		return a.Queue.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// GenerateBatch enqueues one independent generation task per keyword.
func (a *App) GenerateBatch(keywords []string) error {
	var errs []error
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		err := a.Queue.Enqueue(queue.Task{
			Kind: "generate",
			Name: kw,
			Run: func(ctx context.Context) error {
				_, err := a.Orchestrator.GenerateForKeyword(ctx, kw)
				return err
			},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("keyword %q: %w", kw, err))
		}
	}
	return errors.Join(errs...)
}

// CrawlActive crawls every active source synchronously.
func (a *App) CrawlActive(ctx context.Context) (*crawl.Report, error) {
	sources, err := a.Store.ActiveSources(ctx)
	if err != nil {
		a.Metrics.SetError(err.Error())
		return nil, fmt.Errorf("failed to list active sources: %w", err)
	}
	report, err := a.Crawler.CrawlAll(ctx, sources)
	if err != nil {
		a.Metrics.SetError(err.Error())
		return report, err
	}
	a.Metrics.SetLastRun()
	return report, nil
}

// GenerateKeyword runs one keyword in the foreground.
func (a *App) GenerateKeyword(ctx context.Context, keyword string) (*domain.Article, error) {
	start := time.Now()
	article, err := a.Orchestrator.GenerateForKeyword(ctx, keyword)
	a.Metrics.RecordProcessingTime(time.Since(start))
	if err != nil {
		a.Metrics.SetError(err.Error())
		return nil, err
	}
	a.Metrics.SetLastRun()
	return article, nil
}

// RunPipeline processes one URL, or every active source when url is empty.
func (a *App) RunPipeline(ctx context.Context, url string) (*generator.PipelineReport, error) {
	return a.Orchestrator.RunPipeline(ctx, url, a.Config.MockMode, a.Config.Lists.MockTargetURL)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
