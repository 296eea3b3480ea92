package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/trendpress/internal/domain"
)

func TestRunPipeline_ActiveSources(t *testing.T) {
	gen := &fakeGen{text: func(string) (string, error) { return "# 生成記事\n本文", nil }}
	f := newFixture(t, gen, "")
	ctx := context.Background()

	_, err := f.store.AddSource(ctx, domain.Source{Name: "A", URL: "https://a.example", IsActive: true})
	require.NoError(t, err)
	_, err = f.store.AddSource(ctx, domain.Source{Name: "B", URL: "https://b.example", IsActive: true})
	require.NoError(t, err)
	f.fetcher.pages["https://a.example"] = &domain.PageContent{
		Title:        "Aの記事",
		Content:      "content",
		ThumbnailURL: "https://a.example/og.png",
	}

	report, err := f.orch.RunPipeline(ctx, "", false, "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Targets)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Saved, 1)

	a, err := f.store.GetArticle(ctx, report.Saved[0])
	require.NoError(t, err)
	assert.Equal(t, "【美咲のトレンドcheck】Aの記事", a.Title)
	assert.Equal(t, "# 生成記事\n本文", a.Content)
	assert.Equal(t, domain.GeneratedByPipeline, a.GeneratedBy)
	assert.Equal(t, "https://a.example", a.SourceURL)
	assert.Equal(t, "https://a.example/og.png", a.ThumbnailURL)
	assert.Len(t, f.owner.reviews, 1)
}

func TestRunPipeline_ManualURL(t *testing.T) {
	gen := &fakeGen{text: func(string) (string, error) { return "", errors.New("quota") }}
	f := newFixture(t, gen, "")
	f.fetcher.pages["https://manual.example"] = &domain.PageContent{Title: "t", Content: "c"}

	report, err := f.orch.RunPipeline(context.Background(), "https://manual.example", false, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Targets)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, report.Saved)
	assert.Equal(t, []string{"https://manual.example"}, f.fetcher.calls)
}

func TestRunPipeline_MockMode(t *testing.T) {
	f := newFixture(t, &fakeGen{}, "")

	report, err := f.orch.RunPipeline(context.Background(), "", true, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Targets)
	require.Len(t, report.Saved, 1)
	assert.Empty(t, f.fetcher.calls, "mock target is never fetched")

	a, err := f.store.GetArticle(context.Background(), report.Saved[0])
	require.NoError(t, err)
	assert.Equal(t, "【美咲のトレンドcheck】Mock Article Title", a.Title)
	assert.Equal(t, DefaultPlaceholder, a.ThumbnailURL)
	assert.Equal(t, DefaultMockTarget, a.SourceURL)
}
