package crawl

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

var ErrEmptyFeed = errors.New("feed has no items")

// FeedEntry is the newest item of an RSS or Atom feed.
type FeedEntry struct {
	Title   string
	Link    string
	Summary string
}

type FeedReader interface {
	Latest(ctx context.Context, feedURL string) (*FeedEntry, error)
}

// GofeedReader reads feeds with gofeed.
type GofeedReader struct {
	parser *gofeed.Parser
	policy *bluemonday.Policy
}

func NewGofeedReader(timeout time.Duration) *GofeedReader {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = "trendpress/1.0"
	return &GofeedReader{parser: parser, policy: bluemonday.StrictPolicy()}
}

func (r *GofeedReader) Latest(ctx context.Context, feedURL string) (*FeedEntry, error) {
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("error parsing RSS %s: %w", feedURL, err)
	}
	item := newest(feed.Items)
	if item == nil {
		return nil, ErrEmptyFeed
	}

	summary := item.Content
	if summary == "" {
		summary = item.Description
	}
	return &FeedEntry{
		Title:   strings.TrimSpace(item.Title),
		Link:    strings.TrimSpace(item.Link),
		Summary: strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(summary))),
	}, nil
}

// newest prefers the latest published date and falls back to feed order.
func newest(items []*gofeed.Item) *gofeed.Item {
	var best *gofeed.Item
	for _, it := range items {
		if it == nil {
			continue
		}
		if best == nil {
			best = it
			continue
		}
		if it.PublishedParsed != nil && (best.PublishedParsed == nil || it.PublishedParsed.After(*best.PublishedParsed)) {
			best = it
		}
	}
	return best
}
