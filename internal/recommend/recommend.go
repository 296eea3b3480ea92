// Package recommend surfaces new media sites worth crawling.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/extract"
	"github.com/deusflow/trendpress/internal/gemini"
	"github.com/deusflow/trendpress/internal/storage"
)

const (
	MaxCandidates      = 5
	MaxRecommendations = 3
)

const prompt = `次の検索クエリでGoogle検索を行い、美容メディアとして定期的に情報収集する価値のあるブログやWebサイトを最大5件挙げてください。
SNS（X, Instagram, TikTok, YouTube, Facebook）のアカウントは除外してください。

検索クエリ: %s

Output format: [{"name": "サイト名", "url": "https://..."}]
Only return the JSON.`

// Candidate is one raw {name, url} pair from the model.
type Candidate struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Recommender struct {
	store    storage.Store
	gen      gemini.Generator
	queries  []string
	denylist []string
	pick     func(n int) int
	logger   *slog.Logger
}

func New(store storage.Store, gen gemini.Generator, queries, denylist []string, logger *slog.Logger) *Recommender {
	return &Recommender{
		store:    store,
		gen:      gen,
		queries:  queries,
		denylist: denylist,
		pick:     rand.IntN,
		logger:   logger,
	}
}

// Recommend returns at most three sites whose hosts are neither known sources nor
// denylisted platforms.
func (r *Recommender) Recommend(ctx context.Context) ([]domain.RecommendedSource, error) {
	if len(r.queries) == 0 {
		return nil, fmt.Errorf("no recommendation queries configured")
	}

	existing, err := r.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	query := r.queries[r.pick(len(r.queries))]
	r.logger.Info("recommendation search query", "query", query)

	raw, err := r.gen.GenerateWithSearch(ctx, fmt.Sprintf(prompt, query))
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendations: %w", err)
	}

	var candidates []Candidate
	if err := extract.JSON(raw, &candidates); err != nil {
		r.logger.Warn("could not parse recommendation output", "error", err)
		return []domain.RecommendedSource{}, nil
	}
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	r.logger.Debug("AI recommendations", "count", len(candidates))

	hosts := make([]string, 0, len(existing))
	for _, s := range existing {
		hosts = append(hosts, s.URL)
	}
	return Filter(candidates, hosts, r.denylist, query), nil
}

// Filter applies the known-host, batch-duplicate and denylist rules in that order and
// stops after three accepted candidates.
func Filter(candidates []Candidate, existingURLs, denylist []string, query string) []domain.RecommendedSource {
	known := make(map[string]struct{}, len(existingURLs))
	for _, u := range existingURLs {
		if h, ok := HostOf(u); ok {
			known[h] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	out := []domain.RecommendedSource{}
	for _, c := range candidates {
		host, ok := HostOf(c.URL)
		if !ok {
			continue
		}
		if _, dup := known[host]; dup {
			continue
		}
		if _, dup := seen[host]; dup {
			continue
		}
		if denied(host, denylist) {
			continue
		}

		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = host
		}
		out = append(out, domain.RecommendedSource{Name: name, URL: c.URL, QueryUsed: query})
		seen[host] = struct{}{}

		if len(out) >= MaxRecommendations {
			break
		}
	}
	return out
}

// HostOf returns the lower-cased host of an absolute http(s) URL without its port.
func HostOf(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	return host, true
}

func denied(host string, denylist []string) bool {
	for _, d := range denylist {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
