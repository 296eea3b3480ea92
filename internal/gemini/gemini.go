package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/trendpress/internal/ratelimit"
	"github.com/deusflow/trendpress/internal/retry"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

var (
	ErrEmptyResponse = errors.New("no response from Gemini")
	ErrUnavailable   = errors.New("generation capability unavailable")
	// ErrRateLimited is returned once the daily request budget is spent.
	ErrRateLimited = ratelimit.ErrBudgetExceeded
)

// Generator is the text and image generation capability used by the pipeline.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	// GenerateWithSearch runs the prompt with live web-search grounding.
	GenerateWithSearch(ctx context.Context, prompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

type Options struct {
	APIKey      string
	TextModel   string
	SearchModel string
	ImageModel  string
	BaseURL     string
	Limiter     *ratelimit.AIRateLimiter
	Retry       retry.RetryConfig
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

type Client struct {
	client      *genai.Client
	http        *http.Client
	apiKey      string
	baseURL     string
	textModel   string
	searchModel string
	imageModel  string
	limiter     *ratelimit.AIRateLimiter
	retry       retry.RetryConfig
	logger      *slog.Logger
}

var _ Generator = (*Client)(nil)

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := newRESTClient(opts)
	c.client = client
	return c, nil
}

// newRESTClient builds a client without the SDK handle. GenerateText needs NewClient.
func newRESTClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewAIRateLimiter(0, 0, 1, opts.Logger)
	}

	return &Client{
		http:        opts.HTTPClient,
		apiKey:      opts.APIKey,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		textModel:   opts.TextModel,
		searchModel: opts.SearchModel,
		imageModel:  opts.ImageModel,
		limiter:     opts.Limiter,
		retry:       opts.Retry,
		logger:      opts.Logger,
	}
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", ErrUnavailable
	}
	if err := c.limiter.Acquire(ctx, ratelimit.KindText); err != nil {
		return "", err
	}

	model := c.client.GenerativeModel(c.textModel)

	var text string
	err := retry.WithRetry(ctx, c.retry, func() error {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return fmt.Errorf("failed to generate content: %w", err)
		}
		text, err = responseText(resp)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", retry.Permanent(ErrEmptyResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", retry.Permanent(ErrEmptyResponse)
	}
	return b.String(), nil
}

type restPart struct {
	Text string `json:"text,omitempty"`
}

type restContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []restPart `json:"parts"`
}

type generateRequest struct {
	Contents []restContent    `json:"contents"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      restContent `json:"content"`
		FinishReason string      `json:"finishReason"`
	} `json:"candidates"`
}

// GenerateWithSearch calls generateContent with the google_search tool enabled.
func (c *Client) GenerateWithSearch(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Acquire(ctx, ratelimit.KindSearch); err != nil {
		return "", err
	}

	body := generateRequest{
		Contents: []restContent{{Role: "user", Parts: []restPart{{Text: prompt}}}},
		Tools:    []map[string]any{{"google_search": map[string]any{}}},
	}

	var out generateResponse
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.searchModel)
	if err := c.postJSON(ctx, endpoint, body, &out); err != nil {
		return "", err
	}

	if len(out.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

type predictRequest struct {
	Instances  []map[string]string `json:"instances"`
	Parameters map[string]any      `json:"parameters"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

// GenerateImage returns PNG bytes for a 16:9 image.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if err := c.limiter.Acquire(ctx, ratelimit.KindImage); err != nil {
		return nil, err
	}

	body := predictRequest{
		Instances:  []map[string]string{{"prompt": prompt}},
		Parameters: map[string]any{"sampleCount": 1, "aspectRatio": "16:9"},
	}

	var out predictResponse
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:predict", c.baseURL, c.imageModel)
	if err := c.postJSON(ctx, endpoint, body, &out); err != nil {
		return nil, err
	}

	if len(out.Predictions) == 0 || out.Predictions[0].BytesBase64Encoded == "" {
		return nil, ErrEmptyResponse
	}
	img, err := base64.StdEncoding.DecodeString(out.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// postJSON sends payload with retries. 4xx other than 429 is not retried.
func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}

	return retry.WithRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("error HTTP request: %w", err)
		}
		defer func(Body io.ReadCloser) {
			if err := Body.Close(); err != nil {
				c.logger.Warn("failed to close response body", "error", err)
			}
		}(resp.Body)

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("error reading response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := fmt.Errorf("gemini API error: status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				c.logger.Warn("gemini transient error", "status", resp.StatusCode)
				return apiErr
			}
			return retry.Permanent(apiErr)
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return retry.Permanent(fmt.Errorf("error parsing response: %w", err))
		}
		return nil
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
