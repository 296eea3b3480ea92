// Package crawl ingests pages from registered sources into the content store.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/metrics"
	"github.com/deusflow/trendpress/internal/scraper"
	"github.com/deusflow/trendpress/internal/storage"
)

type Recorder interface {
	RecordCrawl(outcome string)
}

// Report is the per-batch crawl summary.
type Report struct {
	Total    int               `json:"total"`
	Ingested int               `json:"ingested"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
	Errors   map[string]string `json:"errors,omitempty"`
}

type Crawler struct {
	store   storage.Store
	browser scraper.Browser
	feeds   FeedReader
	metrics Recorder
	now     func() time.Time
	logger  *slog.Logger
}

func New(store storage.Store, browser scraper.Browser, feeds FeedReader, rec Recorder, logger *slog.Logger) *Crawler {
	return &Crawler{
		store:   store,
		browser: browser,
		feeds:   feeds,
		metrics: rec,
		now:     time.Now,
		logger:  logger,
	}
}

var errNoContent = errors.New("no content found")

// CrawlAll visits every source with one fetch session. A failing source is logged and
// counted; the loop always continues.
func (c *Crawler) CrawlAll(ctx context.Context, sources []domain.Source) (*Report, error) {
	report := &Report{Total: len(sources), Errors: map[string]string{}}
	if len(sources) == 0 {
		return report, nil
	}

	c.logger.Info("starting media crawl", "sources", len(sources))
	sess, err := c.browser.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open fetch session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			c.logger.Warn("failed to close fetch session", "error", err)
		}
	}()

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		err := c.crawlOne(ctx, sess, src)
		switch {
		case err == nil:
			report.Ingested++
			c.record(metrics.OutcomeOK)
		case errors.Is(err, errNoContent) || errors.Is(err, scraper.ErrNoContent):
			report.Skipped++
			c.record(metrics.OutcomeSkipped)
			c.logger.Warn("no content found", "source", src.Name, "url", src.URL)
		default:
			report.Failed++
			report.Errors[src.URL] = err.Error()
			c.record(metrics.OutcomeFailed)
			c.logger.Error("failed to crawl source", "source", src.Name, "url", src.URL, "error", err)
		}
	}

	c.logger.Info("media crawl finished", "total", report.Total, "ingested", report.Ingested,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (c *Crawler) crawlOne(ctx context.Context, sess scraper.Session, src domain.Source) error {
	c.logger.Info("crawling source", "source", src.Name, "url", src.URL, "type", src.Type)

	page, err := c.fetchSource(ctx, sess, src)
	if err != nil {
		return err
	}
	if page == nil || page.Content == "" {
		return errNoContent
	}

	title := page.Title
	if title == "" {
		title = scraper.DefaultTitle
	}
	articleURL := page.SourceURL
	if articleURL == "" {
		articleURL = src.URL
	}

	now := c.now().UTC()
	if err := c.store.UpsertCrawledArticle(ctx, domain.CrawledArticle{
		SourceID:  src.ID,
		Title:     title,
		Content:   page.Content,
		URL:       articleURL,
		CrawledAt: now,
	}); err != nil {
		return fmt.Errorf("failed to save crawled data: %w", err)
	}
	if err := c.store.TouchSource(ctx, src.ID, now); err != nil {
		return fmt.Errorf("failed to update last_crawled_at: %w", err)
	}

	c.logger.Info("successfully crawled and saved", "url", articleURL)
	return nil
}

func (c *Crawler) fetchSource(ctx context.Context, sess scraper.Session, src domain.Source) (*domain.PageContent, error) {
	if src.Type != domain.SourceTypeRSS {
		return sess.Fetch(ctx, src.URL)
	}
	if c.feeds == nil {
		return nil, errors.New("no feed reader configured")
	}

	entry, err := c.feeds.Latest(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	if entry.Link == "" {
		return feedPage(entry, src.URL), nil
	}

	page, err := sess.Fetch(ctx, entry.Link)
	if err != nil || page.Content == "" {
		c.logger.Debug("feed item page unavailable, using feed summary", "link", entry.Link, "error", err)
		return feedPage(entry, entry.Link), nil
	}
	if page.Title == scraper.DefaultTitle && entry.Title != "" {
		page.Title = entry.Title
	}
	return page, nil
}

func feedPage(e *FeedEntry, link string) *domain.PageContent {
	return &domain.PageContent{
		Title:     e.Title,
		Content:   scraper.Truncate(e.Summary, scraper.MaxContentRunes),
		SourceURL: link,
	}
}

func (c *Crawler) record(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordCrawl(outcome)
	}
}
