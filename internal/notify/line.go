package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/trendpress/internal/retry"
)

const lineEndpoint = "https://api.line.me/v2/bot/message/push"

// LineNotifier pushes text messages to a single LINE user.
type LineNotifier struct {
	token    string
	userID   string
	endpoint string
	client   *http.Client
	retry    retry.RetryConfig
	logger   *slog.Logger
}

type LineOption func(*LineNotifier)

// WithLineEndpoint points the notifier at another push endpoint.
func WithLineEndpoint(endpoint string) LineOption {
	return func(n *LineNotifier) { n.endpoint = endpoint }
}

func WithLineRetry(cfg retry.RetryConfig) LineOption {
	return func(n *LineNotifier) { n.retry = cfg }
}

func NewLineNotifier(token, userID string, logger *slog.Logger, opts ...LineOption) *LineNotifier {
	n := &LineNotifier{
		token:    token,
		userID:   userID,
		endpoint: lineEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		retry:    retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Exponential: true},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	if token == "" {
		logger.Warn("LINE_CHANNEL_ACCESS_TOKEN not found, LINE notifications will be skipped")
	}
	return n
}

type linePush struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (n *LineNotifier) Notify(ctx context.Context, message string) error {
	if n.token == "" || n.userID == "" {
		n.logger.Warn("skipping LINE notification (missing config)")
		return nil
	}

	body, err := json.Marshal(linePush{
		To:       n.userID,
		Messages: []lineMessage{{Type: "text", Text: message}},
	})
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}

	return retry.WithRetry(ctx, n.retry, func() error {
		return n.pushOnce(ctx, body)
	})
}

func (n *LineNotifier) pushOnce(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			n.logger.Warn("failed to close response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("LINE API error: status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return apiErr
		}
		return retry.Permanent(apiErr)
	}
	return nil
}
