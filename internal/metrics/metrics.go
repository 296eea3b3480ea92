package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeGrounded  = "grounded"
	OutcomeFallback  = "fallback"
	OutcomeAbandoned = "abandoned"
	OutcomeFailed    = "failed"
	OutcomeOK        = "ok"
	OutcomeSkipped   = "skipped"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	DraftsSaved       int64
	KeywordsAbandoned int64
	PagesIngested     int64
	CrawlFailures     int64
	TasksFailed       int64
	NotificationsSent int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool

	registry    *prometheus.Registry
	generations *prometheus.CounterVec
	crawls      *prometheus.CounterVec
	tasks       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	queueDepth  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		IsHealthy: true,
		registry:  prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendpress",
			Name:      "generations_total",
			Help:      "Keyword pipelines by outcome.",
		}, []string{"outcome"}),
		crawls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendpress",
			Name:      "crawl_sources_total",
			Help:      "Crawled sources by outcome.",
		}, []string{"outcome"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendpress",
			Name:      "tasks_total",
			Help:      "Deferred tasks by kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trendpress",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trendpress",
			Name:      "queue_depth",
			Help:      "Tasks waiting in the deferred queue.",
		}),
	}

	m.registry.MustRegister(
		m.generations, m.crawls, m.tasks, m.duration, m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the Prometheus exposition for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordGeneration(outcome string) {
	m.generations.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	switch outcome {
	case OutcomeGrounded, OutcomeFallback:
		m.DraftsSaved++
	case OutcomeAbandoned:
		m.KeywordsAbandoned++
	}
}

func (m *Metrics) RecordCrawl(outcome string) {
	m.crawls.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	switch outcome {
	case OutcomeOK:
		m.PagesIngested++
	case OutcomeFailed:
		m.CrawlFailures++
	}
}

func (m *Metrics) RecordTask(kind, outcome string) {
	m.tasks.WithLabelValues(kind, outcome).Inc()
	if outcome == OutcomeFailed {
		m.mu.Lock()
		m.TasksFailed++
		m.mu.Unlock()
	}
}

func (m *Metrics) IncrementNotificationsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotificationsSent++
}

func (m *Metrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// ObserveStage records how long a named stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.duration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"drafts_saved":               m.DraftsSaved,
		"keywords_abandoned":         m.KeywordsAbandoned,
		"pages_ingested":             m.PagesIngested,
		"crawl_failures":             m.CrawlFailures,
		"tasks_failed":               m.TasksFailed,
		"notifications_sent":         m.NotificationsSent,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
