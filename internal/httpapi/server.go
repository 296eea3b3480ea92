// Package httpapi exposes the pipeline over HTTP.
package httpapi

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/deusflow/trendpress/internal/crawl"
	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/metrics"
	"github.com/deusflow/trendpress/internal/queue"
	"github.com/deusflow/trendpress/internal/rag"
	"github.com/deusflow/trendpress/internal/storage"
)

const apiKeyHeader = "x-api-key"

type Trends interface {
	Discover(ctx context.Context) []string
	Candidates(ctx context.Context, n int) []string
}

// Batcher queues one generation task per keyword.
type Batcher interface {
	GenerateBatch(keywords []string) error
}

type Crawler interface {
	CrawlAll(ctx context.Context, sources []domain.Source) (*crawl.Report, error)
}

type Recommender interface {
	Recommend(ctx context.Context) ([]domain.RecommendedSource, error)
}

type Inspector interface {
	Inspect(ctx context.Context, keyword string) (*rag.Inspection, error)
}

type Reviser interface {
	Revise(ctx context.Context, content, feedback string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, id int64) (*domain.Article, error)
}

type Dispatcher interface {
	Enqueue(t queue.Task) error
}

// Deps are the services behind the routes. Store may be nil, in which case the
// media endpoints answer 503.
type Deps struct {
	Store       storage.Store
	Trends      Trends
	Batch       Batcher
	Crawler     Crawler
	Recommender Recommender
	RAG         Inspector
	Reviser     Reviser
	Publisher   Publisher
	Queue       Dispatcher
	Metrics     *metrics.Metrics

	// ExtraStats adds component stats (limiter, store) to /stats.
	ExtraStats func() map[string]any
	APIKey     string
	AssetDir   string
	Logger     *slog.Logger
}

type Handler struct {
	d Deps
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	h := &Handler{d: d}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/health" || p == "/metrics"
		},
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				d.Logger.Error("request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			d.Logger.Info("request completed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(APIKeyAuth(d.APIKey))

	e.GET("/health", h.Health)
	e.GET("/stats", h.Stats)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	e.GET("/trends", h.Trends)
	e.POST("/generate", h.Generate)
	e.POST("/generate_bulk", h.GenerateBulk)
	e.POST("/media/crawl", h.Crawl)
	e.GET("/media/recommendations", h.Recommendations)
	e.POST("/media/sources", h.AddSource)
	e.GET("/debug/rag", h.DebugRAG)
	e.POST("/revise", h.Revise)
	e.POST("/articles/:id/publish", h.Publish)

	if d.AssetDir != "" {
		e.Static("/assets", d.AssetDir)
	}
	return e
}

// APIKeyAuth checks the x-api-key header when key is set. Health, metrics and
// assets stay open.
func APIKeyAuth(key string) echo.MiddlewareFunc {
	secret := []byte(key)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(secret) == 0 || exempt(c.Request().URL.Path) {
				return next(c)
			}
			provided := []byte(c.Request().Header.Get(apiKeyHeader))
			if len(provided) == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing api key")
			}
			if subtle.ConstantTimeCompare(provided, secret) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "invalid api key")
			}
			return next(c)
		}
	}
}

func exempt(path string) bool {
	switch path {
	case "/health", "/metrics":
		return true
	}
	return strings.HasPrefix(path, "/assets/")
}
