// Package trends asks the model for trending beauty keywords, biased by recently
// crawled titles.
package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deusflow/trendpress/internal/extract"
	"github.com/deusflow/trendpress/internal/fallback"
	"github.com/deusflow/trendpress/internal/gemini"
	"github.com/deusflow/trendpress/internal/storage"
)

const (
	MaxKeywords  = 10
	signalTitles = 10
)

const discoverPrompt = `2026年の最新美容医療・自由診療トレンドを分析してください。
以下の「収集済みメディア記事」の傾向も加味しつつ、
条件に合致する「おすすめキーワード」を10個抽出してJSON形式で返してください。

%s

【抽出条件】
- 美容医療（クリニック施術、ドクターズコスメ、医療ダイエット）と親和性が極めて高い。
- 日本および韓国のSNS（TikTok, Instagram, Naver）で爆発的に発信されている。
- 収集済みの記事で頻出している、あるいはそこから読み取れる次なる流行。
- Google検索シェアが急上昇中で、SEO対策としてブルーオーシャンである。
- クリニックへの送客（CV）に繋がりやすい。

Output format: {"keywords": ["keyword1", "keyword2", ...]}
Only return the JSON.`

const bulkPrompt = `2026年の最新美容医療・自由診療トレンドを分析してください。
以下の条件に合致する「おすすめキーワード」を10個抽出してJSON形式で返してください。

【抽出条件】
- 美容医療（クリニック施術、ドクターズコスメ、医療ダイエット）と親和性が極めて高い。
- 日本および韓国のSNS（TikTok, Instagram, Naver）で爆発的に発信されている。
- Google検索シェアが急上昇中で、SEO対策としてブルーオーシャンである。

Output format: {"keywords": ["keyword1", "keyword2", ...]}
Only return the JSON.`

type Discoverer struct {
	store        storage.Store
	gen          gemini.Generator
	fallback     []string
	bulkFallback []string
	logger       *slog.Logger
}

// NewDiscoverer builds a Discoverer. store may be nil, which removes the title signal.
func NewDiscoverer(store storage.Store, gen gemini.Generator, fallbackKeywords, bulkFallback []string, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		store:        store,
		gen:          gen,
		fallback:     fallbackKeywords,
		bulkFallback: bulkFallback,
		logger:       logger,
	}
}

// Discover returns between 1 and 10 keywords. It never fails: model or parse failures
// resolve to the static list.
func (d *Discoverer) Discover(ctx context.Context) []string {
	raw, err := d.gen.GenerateText(ctx, fmt.Sprintf(discoverPrompt, d.learningContext(ctx)))
	if err != nil {
		d.logger.Error("error fetching trends", "error", err)
	}

	chain := fallback.New(d.logger,
		fallback.Strategy[[]string]{Name: "json", Run: func(context.Context) ([]string, error) {
			return extract.KeywordsJSON(raw, MaxKeywords)
		}},
		fallback.Strategy[[]string]{Name: "quoted", Run: func(context.Context) ([]string, error) {
			return extract.KeywordsLoose(raw, MaxKeywords)
		}},
		fallback.Static("static", capped(d.fallback, MaxKeywords)),
	).WithAccept(fallback.NonEmptySlice[string])

	res, err := chain.Run(ctx)
	if err != nil {
		// Only reachable when the context is done before the static step.
		return capped(d.fallback, MaxKeywords)
	}
	d.logger.Info("trends resolved", "count", len(res.Value), "via", res.Strategy)
	return res.Value
}

func (d *Discoverer) learningContext(ctx context.Context) string {
	if d.store == nil {
		return ""
	}
	recent, err := d.store.RecentCrawledArticles(ctx, signalTitles)
	if err != nil {
		d.logger.Warn("trends: failed to fetch learning data", "error", err)
		return ""
	}
	if len(recent) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("【直近の収集済みメディア記事タイトル】")
	for _, a := range recent {
		b.WriteString("\n- ")
		b.WriteString(a.Title)
	}
	d.logger.Info("trends: using articles for context", "count", len(recent))
	return b.String()
}

// Candidates returns the top n keywords for bulk generation.
func (d *Discoverer) Candidates(ctx context.Context, n int) []string {
	d.logger.Info("bulk gen: requesting trends from AI")
	raw, err := d.gen.GenerateText(ctx, bulkPrompt)
	if err != nil {
		d.logger.Error("bulk gen: trend request failed", "error", err)
	}

	chain := fallback.New(d.logger,
		fallback.Strategy[[]string]{Name: "object", Run: func(context.Context) ([]string, error) {
			return parseObject(raw)
		}},
		fallback.Static("static", d.bulkFallback),
	).WithAccept(fallback.NonEmptySlice[string])

	res, err := chain.Run(ctx)
	keywords := res.Value
	if err != nil {
		keywords = d.bulkFallback
	}
	if res.Strategy != "object" {
		d.logger.Info("bulk gen: using fallback candidates")
	}
	return capped(keywords, n)
}

// parseObject decodes the span between the first '{' and the last '}'.
func parseObject(raw string) ([]string, error) {
	cleaned := extract.StripFences(raw)
	if obj, ok := extract.ObjectSpan(cleaned); ok {
		cleaned = obj
	}

	var payload struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("JSON decode error: %w", err)
	}
	return payload.Keywords, nil
}

func capped(in []string, n int) []string {
	if n > 0 && len(in) > n {
		in = in[:n]
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
