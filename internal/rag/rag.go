// Package rag builds the reference-article context injected into generation prompts.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/storage"
)

const (
	ContextLimit  = 3
	InspectLimit  = 5
	ExcerptRunes  = 2000
	unknownSource = "Unknown Source"
)

// Translator maps a keyword to its Korean form. It must not fail.
type Translator interface {
	ToKorean(ctx context.Context, keyword string) string
}

type Builder struct {
	store      storage.Store
	translator Translator
	logger     *slog.Logger
}

func NewBuilder(store storage.Store, translator Translator, logger *slog.Logger) *Builder {
	return &Builder{store: store, translator: translator, logger: logger}
}

// Inspection is the retrieval result for a keyword, as served by the debug endpoint.
type Inspection struct {
	KeywordJP string                  `json:"keyword_jp"`
	KeywordKR string                  `json:"keyword_kr"`
	Count     int                     `json:"count"`
	Results   []domain.CrawledArticle `json:"results"`
}

// BuildContext returns the rendered context for keyword, or "" when nothing matched
// or retrieval failed.
func (b *Builder) BuildContext(ctx context.Context, keyword string) string {
	articles, _, err := b.retrieve(ctx, keyword, ContextLimit)
	if err != nil {
		b.logger.Error("RAG search failed", "keyword", keyword, "error", err)
		return ""
	}
	if len(articles) == 0 {
		b.logger.Info("RAG: no relevant learning data found", "keyword", keyword)
		return ""
	}

	blocks := make([]string, 0, len(articles))
	for _, a := range articles {
		blocks = append(blocks, Render(a))
	}
	b.logger.Info("RAG: retrieved articles for learning context", "keyword", keyword, "count", len(articles))
	return strings.Join(blocks, "\n\n")
}

func (b *Builder) Inspect(ctx context.Context, keyword string) (*Inspection, error) {
	articles, kr, err := b.retrieve(ctx, keyword, InspectLimit)
	if err != nil {
		return nil, err
	}
	if articles == nil {
		articles = []domain.CrawledArticle{}
	}
	return &Inspection{
		KeywordJP: keyword,
		KeywordKR: kr,
		Count:     len(articles),
		Results:   articles,
	}, nil
}

func (b *Builder) retrieve(ctx context.Context, keyword string, limit int) ([]domain.CrawledArticle, string, error) {
	if b.store == nil {
		return nil, keyword, fmt.Errorf("store not available")
	}

	kr := keyword
	if b.translator != nil {
		kr = b.translator.ToKorean(ctx, keyword)
	}
	b.logger.Debug("RAG: cross-language search", "keyword", keyword, "korean", kr)

	terms := []string{keyword}
	if kr != "" && kr != keyword {
		terms = append(terms, kr)
	}

	articles, err := b.store.SearchCrawledArticles(ctx, terms, limit)
	if err != nil {
		return nil, kr, fmt.Errorf("failed to search crawled articles: %w", err)
	}
	return articles, kr, nil
}

// Render formats one reference article block.
func Render(a domain.CrawledArticle) string {
	source := a.SourceName
	if source == "" {
		source = unknownSource
	}
	return fmt.Sprintf("## 参考記事: %s\n- 出典: %s\n- URL: %s\n- 内容抜粋: %s...",
		a.Title, source, a.URL, excerpt(a.Content))
}

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) > ExcerptRunes {
		runes = runes[:ExcerptRunes]
	}
	return strings.ReplaceAll(string(runes), "\n", " ")
}
