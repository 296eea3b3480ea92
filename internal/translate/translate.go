// Package translate turns Japanese beauty keywords into Korean search terms.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/deusflow/trendpress/internal/cache"
	"github.com/deusflow/trendpress/internal/fallback"
	"github.com/deusflow/trendpress/internal/gemini"
)

const defaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// Translator resolves Korean translations through Gemini, then the public Google
// Translate endpoint, then the keyword itself. Results are cached.
type Translator struct {
	gen      gemini.Generator
	client   *http.Client
	endpoint string
	cache    *cache.Cache[string]
	logger   *slog.Logger
}

type Options struct {
	// Endpoint overrides the gtx endpoint. Empty means the public one.
	Endpoint string
	Client   *http.Client
	Cache    *cache.Cache[string]
}

func New(gen gemini.Generator, logger *slog.Logger, opts Options) *Translator {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Cache == nil {
		opts.Cache = cache.New[string](512, 24*time.Hour)
	}
	return &Translator{
		gen:      gen,
		client:   opts.Client,
		endpoint: opts.Endpoint,
		cache:    opts.Cache,
		logger:   logger,
	}
}

// ToKorean never fails. When every strategy fails the keyword is its own translation.
func (t *Translator) ToKorean(ctx context.Context, keyword string) string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return keyword
	}

	key := cache.GenerateKey("ko", keyword)
	if v, ok := t.cache.Get(key); ok {
		return v
	}

	chain := fallback.New(t.logger,
		fallback.Strategy[string]{Name: "gemini", Run: func(ctx context.Context) (string, error) {
			return t.withGemini(ctx, keyword)
		}},
		fallback.Strategy[string]{Name: "google_translate", Run: func(ctx context.Context) (string, error) {
			return t.withGoogleTranslate(ctx, keyword, "ja", "ko")
		}},
	).WithAccept(singleLine)

	res, err := chain.Run(ctx)
	if err != nil {
		t.logger.Warn("translation failed, using original keyword", "keyword", keyword, "error", err)
		return keyword
	}

	t.logger.Debug("keyword translated", "keyword", keyword, "korean", res.Value, "via", res.Strategy)
	t.cache.Set(key, res.Value)
	return res.Value
}

func singleLine(s string) bool {
	return s != "" && !strings.Contains(s, "\n")
}

func (t *Translator) withGemini(ctx context.Context, keyword string) (string, error) {
	if t.gen == nil {
		return "", gemini.ErrUnavailable
	}

	prompt := fmt.Sprintf(`Translate the following Japanese beauty or cosmetic keyword into Korean.
Output only the Korean term, without quotes or explanations.

Keyword: %s`, keyword)

	out, err := t.gen.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.Trim(SanitizeAIText(out), `"'「」 `), nil
}

func (t *Translator) withGoogleTranslate(ctx context.Context, text, from, to string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", from)
	params.Set("tl", to)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("error building request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP error: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google Translate API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	translation, err := parseGoogleTranslateResponse(body)
	if err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	return strings.TrimSpace(translation), nil
}

// parseGoogleTranslateResponse reads the nested array format of the gtx endpoint.
func parseGoogleTranslateResponse(body []byte) (string, error) {
	var response []interface{}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	if len(response) == 0 {
		return "", errors.New("empty response from Google Translate")
	}

	translations, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	var result strings.Builder
	for _, translation := range translations {
		if translationArray, ok := translation.([]interface{}); ok && len(translationArray) > 0 {
			if translatedText, ok := translationArray[0].(string); ok {
				result.WriteString(translatedText)
			}
		}
	}

	return result.String(), nil
}

var (
	noteLine      = regexp.MustCompile(`(?im)^\s*(note|translation|translated)\s*:.*$`)
	noteEnclosed  = regexp.MustCompile(`(?i)[\(\[]\s*(note|translation)\s*:?[^\)\]]*[\)\]]`)
	collapseSpace = regexp.MustCompile(`[ \t]{2,}`)
)

// SanitizeAIText removes translator disclaimers that models like to append.
func SanitizeAIText(s string) string {
	s = noteEnclosed.ReplaceAllString(s, "")
	s = noteLine.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(collapseSpace.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
