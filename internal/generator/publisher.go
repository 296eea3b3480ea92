package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/storage"
)

// Publisher moves reviewed drafts live.
type Publisher struct {
	store    storage.Store
	notifier OwnerNotifier
	now      func() time.Time
	logger   *slog.Logger
}

func NewPublisher(store storage.Store, notifier OwnerNotifier, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, notifier: notifier, now: time.Now, logger: logger}
}

// Publish is idempotent. The announcement is only sent on the draft to published transition.
func (p *Publisher) Publish(ctx context.Context, id int64) (*domain.Article, error) {
	at := p.now().UTC().Truncate(time.Microsecond)
	a, err := p.store.PublishArticle(ctx, id, at)
	if err != nil {
		return nil, fmt.Errorf("failed to publish article %d: %w", id, err)
	}

	if a.PublishedAt == nil || !a.PublishedAt.Equal(at) {
		p.logger.Info("article already published", "id", id)
		return a, nil
	}

	p.logger.Info("article published", "id", id, "title", a.Title)
	if p.notifier != nil {
		if err := p.notifier.NotifyNewArticle(ctx, a); err != nil {
			p.logger.Warn("new article notification failed", "id", id, "error", err)
		}
	}
	return a, nil
}
