package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/deusflow/trendpress/internal/domain"
)

var ErrNotFound = errors.New("record not found")

// Store is the content store used by every pipeline stage.
type Store interface {
	ListSources(ctx context.Context) ([]domain.Source, error)
	ActiveSources(ctx context.Context) ([]domain.Source, error)
	// AddSource inserts the source or reactivates the existing row with the same url.
	AddSource(ctx context.Context, src domain.Source) (*domain.Source, error)
	TouchSource(ctx context.Context, id int64, at time.Time) error

	// UpsertCrawledArticle overwrites any existing row with the same url.
	UpsertCrawledArticle(ctx context.Context, a domain.CrawledArticle) error
	RecentCrawledArticles(ctx context.Context, limit int) ([]domain.CrawledArticle, error)
	// SearchCrawledArticles matches any term against title or content, case-insensitively,
	// newest first.
	SearchCrawledArticles(ctx context.Context, terms []string, limit int) ([]domain.CrawledArticle, error)

	InsertArticle(ctx context.Context, a domain.Article) (*domain.Article, error)
	GetArticle(ctx context.Context, id int64) (*domain.Article, error)
	// PublishArticle moves a draft to published. Already published articles are returned unchanged.
	PublishArticle(ctx context.Context, id int64, at time.Time) (*domain.Article, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)

	Close()
}

// uniqueTerms drops blanks and duplicates while keeping order.
func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
