// Package notify delivers owner notifications over LINE and Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deusflow/trendpress/internal/domain"
)

// Notifier sends a plain text message. Unconfigured notifiers return nil without sending.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }

// SentCounter is notified after every delivered message.
type SentCounter interface {
	IncrementNotificationsSent()
}

// Owner formats article events for the site owner. Failures are logged and
// returned; callers never fail an item because of them.
type Owner struct {
	notifier Notifier
	siteURL  string
	counter  SentCounter
	logger   *slog.Logger
}

func NewOwner(n Notifier, siteURL string, counter SentCounter, logger *slog.Logger) *Owner {
	if n == nil {
		n = Noop{}
	}
	return &Owner{
		notifier: n,
		siteURL:  strings.TrimRight(siteURL, "/"),
		counter:  counter,
		logger:   logger,
	}
}

// ReviewMessage is sent when a draft is ready for approval.
func (o *Owner) ReviewMessage(a *domain.Article) string {
	return fmt.Sprintf("🤖記事の生成が完了しました\n\nタイトル: %s\n\n確認・承認はこちら: %s/admin/dashboard/articles/%d",
		titleOf(a), o.siteURL, a.ID)
}

// NewArticleMessage announces a published article.
func (o *Owner) NewArticleMessage(a *domain.Article) string {
	return fmt.Sprintf("✨新着記事のお知らせ✨\n\n%s\n\n美咲が最新トレンドをチェックしました！\n詳細はこちら: %s/articles/%d",
		titleOf(a), o.siteURL, a.ID)
}

func (o *Owner) NotifyOwnerReview(ctx context.Context, a *domain.Article) error {
	return o.send(ctx, "owner_review", o.ReviewMessage(a))
}

func (o *Owner) NotifyNewArticle(ctx context.Context, a *domain.Article) error {
	return o.send(ctx, "new_article", o.NewArticleMessage(a))
}

func (o *Owner) send(ctx context.Context, kind, message string) error {
	if err := o.notifier.Notify(ctx, message); err != nil {
		o.logger.Error("failed to send notification", "kind", kind, "error", err)
		return err
	}
	if o.counter != nil {
		o.counter.IncrementNotificationsSent()
	}
	o.logger.Info("notification sent", "kind", kind)
	return nil
}

func titleOf(a *domain.Article) string {
	if a.Title == "" {
		return "No Title"
	}
	return a.Title
}
