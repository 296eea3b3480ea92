package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/trendpress/internal/domain"
)

const (
	// MaxContentRunes bounds ingested content so downstream prompts stay small.
	MaxContentRunes = 10000
	TruncationMark  = "..."
	DefaultTitle    = "No Title"

	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBodyBytes = 8 << 20
)

var ErrNoContent = errors.New("no content extracted")

// Fetcher turns a URL into a normalized page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*domain.PageContent, error)
}

// Session is a fetcher holding connection state for a batch of fetches.
type Session interface {
	Fetcher
	Close() error
}

// Browser opens sessions. The crawl loop opens one per batch.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

// PageFetcher fetches pages over plain HTTP and extracts the readable text.
type PageFetcher struct {
	timeout time.Duration
	logger  *slog.Logger
	client  *http.Client
}

var (
	_ Browser = (*PageFetcher)(nil)
	_ Fetcher = (*PageFetcher)(nil)
)

func NewPageFetcher(timeout time.Duration, logger *slog.Logger) *PageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PageFetcher{
		timeout: timeout,
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
	}
}

// Open starts a session with its own cookie jar.
func (p *PageFetcher) Open(_ context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &session{
		fetcher: p,
		client:  &http.Client{Timeout: p.timeout, Jar: jar},
	}, nil
}

// Fetch performs a single fetch outside of any session.
func (p *PageFetcher) Fetch(ctx context.Context, pageURL string) (*domain.PageContent, error) {
	return p.fetch(ctx, p.client, pageURL)
}

type session struct {
	fetcher *PageFetcher
	client  *http.Client
}

func (s *session) Fetch(ctx context.Context, pageURL string) (*domain.PageContent, error) {
	return s.fetcher.fetch(ctx, s.client, pageURL)
}

func (s *session) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (p *PageFetcher) fetch(ctx context.Context, client *http.Client, pageURL string) (*domain.PageContent, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ja,en;q=0.8,ko;q=0.6")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			p.logger.Warn("failed to close response body", "url", pageURL, "error", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error reading page: %w", err)
	}

	page, err := ExtractPage(raw, resp.Request.URL)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("page fetched", "url", pageURL, "chars", utf8.RuneCountInString(page.Content), "took", time.Since(start))
	return page, nil
}

// Regions that never carry article text.
const noiseSelector = "script, style, nav, header, footer, iframe, noscript, .ad, .advertisement, .banner, .sidebar, .popup"

// Containers tried in order before falling back to readability and then <body>.
var contentSelectors = []string{
	"article",
	"main",
	".post-content",
	".entry-content",
	".article-body",
	".news-body",
}

// ExtractPage parses raw HTML into a PageContent. pageURL resolves relative og:image
// links and becomes SourceURL; it may be nil.
func ExtractPage(raw []byte, pageURL *url.URL) (*domain.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	page := &domain.PageContent{
		Title:        extractTitle(doc),
		SiteName:     metaProperty(doc, "og:site_name"),
		ThumbnailURL: resolve(pageURL, metaProperty(doc, "og:image")),
	}
	if pageURL != nil {
		page.SourceURL = pageURL.String()
	}

	doc.Find(noiseSelector).Remove()

	content := extractBySelectors(doc)
	if content == "" {
		content = extractReadable(doc)
	}
	if content == "" {
		content = textOf(doc.Find("body"))
	}

	content = cleanContent(content)
	if content == "" {
		return page, ErrNoContent
	}
	page.Content = Truncate(content, MaxContentRunes)
	return page, nil
}

func extractTitle(doc *goquery.Document) string {
	if t := metaProperty(doc, "og:title"); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return DefaultTitle
}

func metaProperty(doc *goquery.Document, property string) string {
	v, _ := doc.Find(fmt.Sprintf("meta[property='%s']", property)).First().Attr("content")
	return strings.TrimSpace(v)
}

func resolve(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func extractBySelectors(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if text := textOf(sel); text != "" {
			return text
		}
	}
	return ""
}

// extractReadable runs readability over the already cleaned document.
func extractReadable(doc *goquery.Document) string {
	html, err := doc.Html()
	if err != nil || strings.TrimSpace(html) == "" {
		return ""
	}

	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err != nil {
		return ""
	}

	var buf strings.Builder
	if err := article.RenderText(&buf); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

// textOf joins every non-blank text node under sel with blank lines.
func textOf(sel *goquery.Selection) string {
	var parts []string
	collectText(sel, &parts)
	return strings.Join(parts, "\n\n")
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				*parts = append(*parts, t)
			}
			return
		}
		collectText(c, parts)
	})
}

// cleanContent normalizes whitespace inside paragraphs and drops empty ones.
func cleanContent(content string) string {
	paragraphs := strings.Split(content, "\n\n")
	out := paragraphs[:0]
	for _, p := range paragraphs {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

// Truncate cuts s to max runes and appends the truncation mark when it had to cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + TruncationMark
}
