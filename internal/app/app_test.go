package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/trendpress/internal/config"
	"github.com/deusflow/trendpress/internal/domain"
	"github.com/deusflow/trendpress/internal/gemini"
	"github.com/deusflow/trendpress/internal/logger"
	"github.com/deusflow/trendpress/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:          "0",
		DataDir:       dir,
		MockMode:      true,
		AdminBaseURL:  "https://admin.example",
		PublicBaseURL: "http://localhost:8000",
		AssetDir:      filepath.Join(dir, "assets"),
		PageTimeout:   time.Second,
		TaskTimeout:   time.Minute,
		QueueWorkers:  1,
		QueueSize:     4,
		TaskAttempts:  1,
		RetryDelay:    time.Millisecond,
		TranslateTTL:  time.Hour,
		TranslateSize: 16,
		Lists:         config.DefaultLists(),
	}
}

func TestNew_MockModeDegrades(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, gemini.Dummy{}, a.Generator)
	assert.IsType(t, &storage.FileStore{}, a.Store)
}

func TestHandler_HealthAndStats(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	e := a.Handler()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mock_mode":true`)
	assert.Contains(t, rec.Body.String(), `"store"`)
}

func TestGenerateBatch_EnqueuesPerKeyword(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.GenerateBatch([]string{"レチノール", " ", "水光注射"}))
	assert.Equal(t, 2, a.Queue.Len(), "blank keywords are skipped")
}

func TestHandler_GenerateRoutesThroughBatch(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	e := a.Handler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"keyword":"レチノール"}`))
	req.Header.Set("Content-Type", "application/json")
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, a.Queue.Len())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate_bulk", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 4, a.Queue.Len())
}

func TestNew_SeedsFileStoreCategories(t *testing.T) {
	cfg := testConfig(t)
	for range 2 {
		a, err := New(context.Background(), cfg, logger.Discard())
		require.NoError(t, err)

		cats, err := a.Store.ListCategories(context.Background())
		require.NoError(t, err)
		require.Len(t, cats, len(cfg.Lists.Categories), "reopening the store does not duplicate categories")
		assert.Equal(t, "skincare", cats[0].Slug)
		a.Close()
	}
}

func TestCrawlActive_NoSources(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	report, err := a.CrawlActive(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.True(t, a.Metrics.Healthy())
}

func TestPublishThroughApp(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	draft, err := a.Store.InsertArticle(context.Background(), domain.Article{Title: "t", Content: "c"})
	require.NoError(t, err)

	pub, err := a.Publisher.Publish(context.Background(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, pub.Status)
}
