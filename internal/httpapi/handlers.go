package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/generator"
	"github.com/deusflow/trendpress/internal/queue"
	"github.com/deusflow/trendpress/internal/recommend"
	"github.com/deusflow/trendpress/internal/storage"
)

const bulkKeywords = 3

type KeywordRequest struct {
	Keyword     string `json:"keyword"`
	TargetCount int    `json:"target_count"`
}

type SourceRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

type ReviseRequest struct {
	Content  string `json:"content"`
	Feedback string `json:"feedback"`
}

type accepted struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Keywords []string `json:"keywords,omitempty"`
}

func (h *Handler) Health(c echo.Context) error {
	status, code := "ok", http.StatusOK
	resp := map[string]any{"time": time.Now().UTC().Format(time.RFC3339)}
	if m := h.d.Metrics; m != nil {
		stats := m.GetStats()
		if !m.Healthy() {
			status, code = "error", http.StatusServiceUnavailable
		}
		resp["last_run"] = stats["last_run_time"]
		resp["last_error"] = stats["last_error"]
	}
	resp["status"] = status
	return c.JSON(code, resp)
}

func (h *Handler) Stats(c echo.Context) error {
	stats := map[string]any{}
	if h.d.Metrics != nil {
		for k, v := range h.d.Metrics.GetStats() {
			stats[k] = v
		}
	}
	if h.d.ExtraStats != nil {
		for k, v := range h.d.ExtraStats() {
			stats[k] = v
		}
	}
	return c.JSON(http.StatusOK, stats)
}

// Trends always answers 200; discovery falls back to the curated list.
func (h *Handler) Trends(c echo.Context) error {
	keywords := h.d.Trends.Discover(c.Request().Context())
	return c.JSON(http.StatusOK, map[string][]string{"keywords": keywords})
}

func (h *Handler) Generate(c echo.Context) error {
	var req KeywordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Keyword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "keyword is required")
	}

	if err := queueError(h.d.Batch.GenerateBatch([]string{req.Keyword})); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, accepted{
		Status:  "accepted",
		Message: "Generation started for keyword: " + req.Keyword,
	})
}

func (h *Handler) GenerateBulk(c echo.Context) error {
	keywords := h.d.Trends.Candidates(c.Request().Context(), bulkKeywords)
	h.d.Logger.Info("triggering bulk generation", "keywords", keywords)
	if err := queueError(h.d.Batch.GenerateBatch(keywords)); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, accepted{
		Status:   "accepted",
		Message:  "Bulk generation started for: " + strings.Join(keywords, ", "),
		Keywords: keywords,
	})
}

func (h *Handler) Crawl(c echo.Context) error {
	if h.d.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database not available")
	}

	sources, err := h.d.Store.ActiveSources(c.Request().Context())
	if err != nil {
		h.d.Logger.Error("media crawl initiation failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(sources) == 0 {
		return c.JSON(http.StatusOK, map[string]string{"message": "No active sources found to crawl."})
	}

	crawler := h.d.Crawler
	err = h.d.Queue.Enqueue(queue.Task{
		Kind: "crawl",
		Name: fmt.Sprintf("%d sources", len(sources)),
		Run: func(ctx context.Context) error {
			_, err := crawler.CrawlAll(ctx, sources)
			return err
		},
	})
	if err := queueError(err); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, accepted{
		Status:  "accepted",
		Message: fmt.Sprintf("Started crawling for %d sources.", len(sources)),
	})
}

func (h *Handler) Recommendations(c echo.Context) error {
	recs, err := h.d.Recommender.Recommend(c.Request().Context())
	if err != nil {
		h.d.Logger.Error("failed to get recommendations", "error", err)
		return c.JSON(http.StatusOK, map[string]any{
			"error":           err.Error(),
			"recommendations": []domain.RecommendedSource{},
		})
	}
	if recs == nil {
		recs = []domain.RecommendedSource{}
	}
	return c.JSON(http.StatusOK, map[string]any{"recommendations": recs})
}

func (h *Handler) AddSource(c echo.Context) error {
	if h.d.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database not available")
	}

	var req SourceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if _, ok := recommend.HostOf(req.URL); !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "url must be an absolute http(s) url")
	}

	src := domain.Source{
		Name: strings.TrimSpace(req.Name),
		URL:  strings.TrimSpace(req.URL),
		Type: domain.SourceType(req.Type),
	}
	switch src.Type {
	case "":
		src.Type = domain.SourceTypeWeb
	case domain.SourceTypeWeb, domain.SourceTypeRSS:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "type must be web or rss")
	}
	if src.Name == "" {
		src.Name = src.URL
	}

	saved, err := h.d.Store.AddSource(c.Request().Context(), src)
	if err != nil {
		h.d.Logger.Error("failed to add source", "url", src.URL, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, saved)
}

func (h *Handler) DebugRAG(c echo.Context) error {
	keyword := strings.TrimSpace(c.QueryParam("keyword"))
	if keyword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "keyword is required")
	}

	res, err := h.d.RAG.Inspect(c.Request().Context(), keyword)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Revise(c echo.Context) error {
	var req ReviseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	content, err := h.d.Reviser.Revise(c.Request().Context(), req.Content, req.Feedback)
	switch {
	case errors.Is(err, generator.ErrEmptyContent):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		h.d.Logger.Error("revision failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"content": content})
}

func (h *Handler) Publish(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid article id")
	}

	article, err := h.d.Publisher.Publish(c.Request().Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "article not found")
	case err != nil:
		h.d.Logger.Error("publish failed", "id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, article)
}

func queueError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
