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

const telegramBaseURL = "https://api.telegram.org"

// TelegramNotifier sends messages to a Telegram chat or channel.
type TelegramNotifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	retry   retry.RetryConfig
	logger  *slog.Logger
}

type TelegramOption func(*TelegramNotifier)

func WithTelegramBaseURL(baseURL string) TelegramOption {
	return func(n *TelegramNotifier) { n.baseURL = baseURL }
}

func WithTelegramRetry(cfg retry.RetryConfig) TelegramOption {
	return func(n *TelegramNotifier) { n.retry = cfg }
}

func NewTelegramNotifier(token, chatID string, logger *slog.Logger, opts ...TelegramOption) *TelegramNotifier {
	n := &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		baseURL: telegramBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Exponential: true},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends message with retry and exponential backoff.
func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	if n.token == "" || n.chatID == "" {
		return nil
	}

	attempt := 0
	err := retry.WithRetry(ctx, n.retry, func() error {
		attempt++
		err := n.sendMessageOnce(ctx, message)
		if err != nil {
			n.logger.Warn("error send to Telegram", "attempt", attempt, "max", n.retry.MaxAttempts, "error", err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("can't send message to Telegram: %w", err)
	}
	n.logger.Debug("message sent to Telegram", "attempt", attempt)
	return nil
}

func (n *TelegramNotifier) sendMessageOnce(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)

	payload := map[string]interface{}{
		"chat_id":                  n.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("error make JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

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
		return fmt.Errorf("telegram API error: status %d", resp.StatusCode)
	}
	return nil
}
