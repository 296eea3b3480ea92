package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndStats(t *testing.T) {
	m := New()
	m.RecordGeneration(OutcomeGrounded)
	m.RecordGeneration(OutcomeFallback)
	m.RecordGeneration(OutcomeAbandoned)
	m.RecordCrawl(OutcomeOK)
	m.RecordCrawl(OutcomeFailed)
	m.RecordTask("generate", OutcomeFailed)
	m.RecordProcessingTime(2 * time.Second)
	m.RecordProcessingTime(4 * time.Second)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats["drafts_saved"])
	assert.Equal(t, int64(1), stats["keywords_abandoned"])
	assert.Equal(t, int64(1), stats["pages_ingested"])
	assert.Equal(t, int64(1), stats["crawl_failures"])
	assert.Equal(t, int64(1), stats["tasks_failed"])
	assert.Equal(t, int64(3000), stats["average_processing_time_ms"])
}

func TestMetrics_HealthFlag(t *testing.T) {
	m := New()
	assert.True(t, m.Healthy())
	m.SetError("store down")
	assert.False(t, m.Healthy())
	m.SetLastRun()
	assert.True(t, m.Healthy())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordGeneration(OutcomeGrounded)
	m.ObserveStage("generate", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `trendpress_generations_total{outcome="grounded"} 1`))
	assert.True(t, strings.Contains(string(body), "trendpress_stage_duration_seconds"))
}
