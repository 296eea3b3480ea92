package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/trendpress/internal/logger"
)

const articlePage = `<html><head>
<title>Fallback title</title>
<meta property="og:title" content="水光注射の最新トレンド">
<meta property="og:site_name" content="Beauty Times">
<meta property="og:image" content="/img/cover.jpg">
<script>var tracking = 1;</script>
</head><body>
<header>Site header</header>
<nav>Menu</nav>
<div class="sidebar">Popular posts</div>
<article>
  <h1>水光注射の最新トレンド</h1>
  <p>First   paragraph.</p>
  <div class="ad">Buy now</div>
  <p>Second paragraph.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestExtractPage_ArticleContainer(t *testing.T) {
	page, err := ExtractPage([]byte(articlePage), mustURL(t, "https://beauty.example/posts/1"))
	require.NoError(t, err)

	assert.Equal(t, "水光注射の最新トレンド", page.Title)
	assert.Equal(t, "Beauty Times", page.SiteName)
	assert.Equal(t, "https://beauty.example/img/cover.jpg", page.ThumbnailURL)
	assert.Equal(t, "https://beauty.example/posts/1", page.SourceURL)
	assert.Equal(t, "水光注射の最新トレンド\n\nFirst paragraph.\n\nSecond paragraph.", page.Content)
	assert.NotContains(t, page.Content, "Buy now")
	assert.NotContains(t, page.Content, "Menu")
}

func TestExtractPage_SelectorPriority(t *testing.T) {
	html := `<html><body>
<div class="entry-content"><p>entry</p></div>
<main><p>main text</p></main>
</body></html>`
	page, err := ExtractPage([]byte(html), nil)
	require.NoError(t, err)
	assert.Equal(t, "main text", page.Content)
	assert.Equal(t, DefaultTitle, page.Title)
}

func TestExtractPage_TitleFallsBackToTitleTag(t *testing.T) {
	html := `<html><head><title> Plain title </title></head><body><div class="post-content">body text</div></body></html>`
	page, err := ExtractPage([]byte(html), nil)
	require.NoError(t, err)
	assert.Equal(t, "Plain title", page.Title)
	assert.Equal(t, "body text", page.Content)
}

func TestExtractPage_BodyFallback(t *testing.T) {
	html := `<html><body><div><span>Only</span> <b>loose</b> text</div><script>x()</script></body></html>`
	page, err := ExtractPage([]byte(html), nil)
	require.NoError(t, err)
	assert.Contains(t, page.Content, "Only")
	assert.Contains(t, page.Content, "loose")
	assert.NotContains(t, page.Content, "x()")
}

func TestExtractPage_NoContent(t *testing.T) {
	_, err := ExtractPage([]byte(`<html><body><nav>menu only</nav></body></html>`), nil)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestExtractPage_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("美", MaxContentRunes+500)
	html := fmt.Sprintf(`<html><body><article><p>%s</p></article></body></html>`, long)

	page, err := ExtractPage([]byte(html), nil)
	require.NoError(t, err)
	assert.Equal(t, MaxContentRunes+utf8.RuneCountInString(TruncationMark), utf8.RuneCountInString(page.Content))
	assert.True(t, strings.HasSuffix(page.Content, TruncationMark))
}

func TestTruncate(t *testing.T) {
	exact := strings.Repeat("a", 10)
	assert.Equal(t, exact, Truncate(exact, 10))
	assert.Equal(t, "aaaaa...", Truncate(exact, 5))
}

func TestPageFetcher_SessionFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Chrome")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	fetcher := NewPageFetcher(5*time.Second, logger.Discard())
	sess, err := fetcher.Open(context.Background())
	require.NoError(t, err)
	defer func() { assert.NoError(t, sess.Close()) }()

	page, err := sess.Fetch(context.Background(), srv.URL+"/post")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/img/cover.jpg", page.ThumbnailURL)

	_, err = sess.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestPageFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	fetcher := NewPageFetcher(50*time.Millisecond, logger.Discard())
	_, err := fetcher.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoContent))
}
