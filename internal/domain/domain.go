package domain

import "time"

type SourceType string

const (
	SourceTypeWeb SourceType = "web"
	SourceTypeRSS SourceType = "rss"
)

// Source is a media site the crawl loop visits.
type Source struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Type          SourceType `json:"type"`
	IsActive      bool       `json:"is_active"`
	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
}

// CrawledArticle is one ingested page. SourceName is filled by joins and never persisted.
type CrawledArticle struct {
	ID         string    `json:"id"`
	SourceID   int64     `json:"source_id"`
	SourceName string    `json:"source_name,omitempty"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	URL        string    `json:"url"`
	CrawledAt  time.Time `json:"crawled_at"`
}

type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusPublished ArticleStatus = "published"
)

// Article is a generated post awaiting or past review.
type Article struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	Status       ArticleStatus `json:"status"`
	SourceURL    string        `json:"source_url"`
	ThumbnailURL string        `json:"thumbnail_url"`
	GeneratedBy  string        `json:"generated_by"`
	CreatedAt    time.Time     `json:"created_at"`
	PublishedAt  *time.Time    `json:"published_at,omitempty"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// RecommendedSource is a candidate site surfaced for human approval.
type RecommendedSource struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	QueryUsed string `json:"query_used"`
}

// PageContent is the normalized result of fetching a single URL.
type PageContent struct {
	Title        string `json:"title"`
	SiteName     string `json:"site_name"`
	ThumbnailURL string `json:"thumbnail_url"`
	SourceURL    string `json:"source_url"`
	Content      string `json:"content"`
}

// Generated-by tags and source markers written on draft records.
const (
	GeneratedByGrounding = "gemini-2.0-flash-grounding"
	GeneratedByKeyword   = "ai_misaki_keyword"
	GeneratedByPipeline  = "ai_misaki"
	SourceURLGrounding   = "google_search_grounding"
)
