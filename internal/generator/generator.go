// Package generator turns keywords and crawled pages into draft articles.
package generator

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/extract"
	"github.com/deusflow/trendpress/internal/fallback"
	"github.com/deusflow/trendpress/internal/gemini"
	"github.com/deusflow/trendpress/internal/metrics"
	"github.com/deusflow/trendpress/internal/scraper"
	"github.com/deusflow/trendpress/internal/storage"
)

const (
	DefaultPlaceholder = "https://placehold.co/1200x630/ffe4e6/be123c?text=AURA+Beauty"
	fallbackCandidates = 3
)

// ContextBuilder supplies reference material for a keyword. "" means none.
type ContextBuilder interface {
	BuildContext(ctx context.Context, keyword string) string
}

type OwnerNotifier interface {
	NotifyOwnerReview(ctx context.Context, a *domain.Article) error
	NotifyNewArticle(ctx context.Context, a *domain.Article) error
}

type Recorder interface {
	RecordGeneration(outcome string)
	ObserveStage(stage string, d time.Duration)
}

type Deps struct {
	Store       storage.Store
	Generator   gemini.Generator
	Context     ContextBuilder
	Fetcher     scraper.Fetcher
	Assets      AssetStore
	Notifier    OwnerNotifier
	Metrics     Recorder
	Persona     string
	Placeholder string
	Logger      *slog.Logger
}

type Orchestrator struct {
	store       storage.Store
	gen         gemini.Generator
	context     ContextBuilder
	fetcher     scraper.Fetcher
	assets      AssetStore
	notifier    OwnerNotifier
	metrics     Recorder
	persona     string
	placeholder string
	policy      *bluemonday.Policy
	logger      *slog.Logger
}

func New(d Deps) *Orchestrator {
	if d.Persona == "" {
		d.Persona = DefaultPersona
	}
	if d.Placeholder == "" {
		d.Placeholder = DefaultPlaceholder
	}
	if d.Metrics == nil {
		d.Metrics = nopRecorder{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Orchestrator{
		store:       d.Store,
		gen:         d.Generator,
		context:     d.Context,
		fetcher:     d.Fetcher,
		assets:      d.Assets,
		notifier:    d.Notifier,
		metrics:     d.Metrics,
		persona:     d.Persona,
		placeholder: d.Placeholder,
		policy:      bluemonday.StrictPolicy(),
		logger:      d.Logger,
	}
}

// GenerateForKeyword runs context, grounded generation, thumbnail and persistence for one
// keyword. A nil article with a nil error means the keyword was abandoned.
func (o *Orchestrator) GenerateForKeyword(ctx context.Context, keyword string) (*domain.Article, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("keyword is required")
	}
	o.logger.Info("processing keyword", "keyword", keyword)

	learning := o.stage("rag", func() string {
		if o.context == nil {
			return ""
		}
		return o.context.BuildContext(ctx, keyword)
	})

	content := o.stage("generate", func() string {
		return o.generateGrounded(ctx, keyword, learning)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if content == "" {
		o.logger.Warn("grounding returned no content, falling back to crawled articles", "keyword", keyword)
		return o.generateFromCrawled(ctx, keyword)
	}

	title, body := SplitTitle(content, fmt.Sprintf("【徹底解説】%sの最新事情", keyword))
	thumb := o.stage("thumbnail", func() string {
		return o.thumbnail(ctx, keyword, title, "")
	})

	saved, err := o.save(ctx, domain.Article{
		Title:        title,
		Content:      body,
		SourceURL:    domain.SourceURLGrounding,
		ThumbnailURL: thumb,
		GeneratedBy:  domain.GeneratedByGrounding,
	})
	if err != nil {
		o.metrics.RecordGeneration(metrics.OutcomeFailed)
		return nil, err
	}
	o.metrics.RecordGeneration(metrics.OutcomeGrounded)
	o.logger.Info("saved grounded draft", "keyword", keyword, "id", saved.ID)
	return saved, nil
}

func (o *Orchestrator) generateGrounded(ctx context.Context, keyword, learning string) string {
	prompt := groundedPrompt(o.persona, keyword, learning, o.categoryNames(ctx))
	raw, err := o.gen.GenerateWithSearch(ctx, prompt)
	if err != nil {
		o.logger.Error("grounded generation failed", "keyword", keyword, "error", err)
		return ""
	}
	return extract.TrimFence(raw)
}

func (o *Orchestrator) categoryNames(ctx context.Context) []string {
	if o.store == nil {
		return nil
	}
	cats, err := o.store.ListCategories(ctx)
	if err != nil {
		o.logger.Warn("failed to load categories", "error", err)
		return nil
	}
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	return names
}

// generateFromCrawled tries stored crawled articles matching keyword, one at a time,
// until one yields a draft.
func (o *Orchestrator) generateFromCrawled(ctx context.Context, keyword string) (*domain.Article, error) {
	var candidates []domain.CrawledArticle
	if o.store != nil {
		found, err := o.store.SearchCrawledArticles(ctx, []string{keyword}, fallbackCandidates)
		if err != nil {
			o.logger.Error("failed to search fallback candidates", "keyword", keyword, "error", err)
		}
		candidates = found
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := o.loadCandidate(ctx, c)
		if page == nil {
			continue
		}

		raw, err := o.gen.GenerateText(ctx, keywordSourcePrompt(o.persona, keyword, page.Content))
		content := extract.TrimFence(raw)
		if err != nil || content == "" {
			o.logger.Warn("fallback generation failed", "keyword", keyword, "url", c.URL, "error", err)
			continue
		}

		title, body := SplitTitle(content, fmt.Sprintf("【話題の%s】%s", keyword, page.Title))
		thumb := o.thumbnail(ctx, keyword, title, page.ThumbnailURL)

		saved, err := o.save(ctx, domain.Article{
			Title:        title,
			Content:      body,
			SourceURL:    c.URL,
			ThumbnailURL: thumb,
			GeneratedBy:  domain.GeneratedByKeyword,
		})
		if err != nil {
			o.metrics.RecordGeneration(metrics.OutcomeFailed)
			return nil, err
		}
		o.metrics.RecordGeneration(metrics.OutcomeFallback)
		o.logger.Info("saved fallback draft", "keyword", keyword, "id", saved.ID, "source", c.URL)
		return saved, nil
	}

	o.metrics.RecordGeneration(metrics.OutcomeAbandoned)
	o.logger.Warn("no usable fallback content, abandoning keyword", "keyword", keyword, "candidates", len(candidates))
	return nil, nil
}

// loadCandidate refetches the page and falls back to the stored copy.
func (o *Orchestrator) loadCandidate(ctx context.Context, c domain.CrawledArticle) *domain.PageContent {
	chain := fallback.New(o.logger,
		fallback.Strategy[*domain.PageContent]{Name: "fetch", Run: func(ctx context.Context) (*domain.PageContent, error) {
			if o.fetcher == nil {
				return nil, scraper.ErrNoContent
			}
			return o.fetcher.Fetch(ctx, c.URL)
		}},
		fallback.Static("stored", &domain.PageContent{
			Title:     c.Title,
			Content:   c.Content,
			SourceURL: c.URL,
		}),
	).WithAccept(func(p *domain.PageContent) bool {
		return p != nil && strings.TrimSpace(p.Content) != ""
	})

	res, err := chain.Run(ctx)
	if err != nil {
		o.logger.Warn("crawled content was empty", "url", c.URL)
		return nil
	}
	return res.Value
}

// thumbnail resolves AI image, then crawledImage when set, then the placeholder.
func (o *Orchestrator) thumbnail(ctx context.Context, keyword, title, crawledImage string) string {
	strategies := []fallback.Strategy[string]{
		{Name: "ai_image", Run: func(ctx context.Context) (string, error) {
			return o.generateImage(ctx, keyword, title)
		}},
	}
	if crawledImage != "" {
		strategies = append(strategies, fallback.Static("crawled_image", crawledImage))
	}
	strategies = append(strategies, fallback.Static("placeholder", o.placeholder))

	res, err := fallback.New(o.logger, strategies...).WithAccept(fallback.NonEmptyString).Run(ctx)
	if err != nil {
		return o.placeholder
	}
	o.logger.Debug("thumbnail resolved", "keyword", keyword, "via", res.Strategy)
	return res.Value
}

func (o *Orchestrator) generateImage(ctx context.Context, keyword, title string) (string, error) {
	if o.assets == nil {
		return "", gemini.ErrUnavailable
	}
	visual, err := o.gen.GenerateText(ctx, imagePrompt(keyword, title))
	if err != nil {
		return "", fmt.Errorf("failed to build image prompt: %w", err)
	}
	visual = strings.TrimSpace(visual)
	if visual == "" {
		visual = fmt.Sprintf("Beauty and skincare concept image about %s, soft pink tones, no text", keyword)
	}

	img, err := o.gen.GenerateImage(ctx, visual)
	if err != nil {
		return "", fmt.Errorf("failed to generate image: %w", err)
	}
	return o.assets.Save(ctx, img)
}

// save sanitizes, persists as draft and notifies the owner.
func (o *Orchestrator) save(ctx context.Context, a domain.Article) (*domain.Article, error) {
	if o.store == nil {
		return nil, errors.New("store not available")
	}

	a.Title = o.sanitize(a.Title)
	a.Content = o.sanitize(a.Content)
	a.Status = domain.StatusDraft

	start := time.Now()
	saved, err := o.store.InsertArticle(ctx, a)
	o.metrics.ObserveStage("persist", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	if o.notifier != nil {
		if err := o.notifier.NotifyOwnerReview(ctx, saved); err != nil {
			o.logger.Warn("owner notification failed", "id", saved.ID, "error", err)
		}
	}
	return saved, nil
}

// sanitize strips any HTML the model emitted while leaving Markdown intact.
func (o *Orchestrator) sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(o.policy.Sanitize(s)))
}

func (o *Orchestrator) stage(name string, fn func() string) string {
	start := time.Now()
	out := fn()
	o.metrics.ObserveStage(name, time.Since(start))
	return out
}

// SplitTitle takes the first line as the title when it is a Markdown heading. Otherwise
// the default title is used and content is returned whole.
func SplitTitle(content, defaultTitle string) (title, body string) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "#") {
		return defaultTitle, content
	}

	first, rest, _ := strings.Cut(content, "\n")
	title = strings.TrimSpace(strings.ReplaceAll(first, "#", ""))
	if title == "" {
		title = defaultTitle
	}
	return title, strings.TrimSpace(rest)
}

type nopRecorder struct{}

func (nopRecorder) RecordGeneration(string) {}

func (nopRecorder) ObserveStage(string, time.Duration) {}
