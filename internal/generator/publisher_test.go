package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/logger"
	"github.com/deusflow/trendpress/internal/storage"
)

func TestPublish(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore("")
	draft, err := store.InsertArticle(ctx, domain.Article{Title: "下書き"})
	require.NoError(t, err)

	owner := &fakeOwner{}
	p := NewPublisher(store, owner, logger.Discard())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	a, err := p.Publish(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, a.Status)
	require.NotNil(t, a.PublishedAt)
	assert.True(t, a.PublishedAt.Equal(now))
	require.Len(t, owner.published, 1)

	p.now = func() time.Time { return now.Add(time.Hour) }
	again, err := p.Publish(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, again.PublishedAt.Equal(now), "publishing twice keeps the first timestamp")
	assert.Len(t, owner.published, 1, "no second announcement")
}

func TestPublish_NotFound(t *testing.T) {
	p := NewPublisher(storage.NewFileStore(""), &fakeOwner{}, logger.Discard())
	_, err := p.Publish(context.Background(), 404)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
