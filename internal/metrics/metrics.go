package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_feeds_fetched_total",
			Help: "Feed fetch attempts by outcome",
		},
		[]string{"status"},
	)

	ArticlesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsletter_articles_fetched_total",
			Help: "Raw articles parsed from feeds before dedup",
		},
	)

	DuplicatesFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsletter_duplicates_filtered_total",
			Help: "Articles dropped because their title was already seen",
		},
	)

	Summaries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_summaries_total",
			Help: "Article summaries by path (llm, cache, fallback, original)",
		},
		[]string{"path"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_deliveries_total",
			Help: "Delivery attempts by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsletter_generation_duration_seconds",
			Help:    "Time spent building one newsletter",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Health tracks the outcome of the last pipeline run for /health.
type Health struct {
	mu sync.RWMutex

	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Health{IsHealthy: true}

func (h *Health) SetLastRun() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastRunTime = time.Now()
	h.IsHealthy = true
}

func (h *Health) SetError(err string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastError = err
	h.LastErrorTime = time.Now()
	h.IsHealthy = false
}

func (h *Health) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := map[string]interface{}{
		"last_error": h.LastError,
		"is_healthy": h.IsHealthy,
	}
	if !h.LastRunTime.IsZero() {
		stats["last_run_time"] = h.LastRunTime.Format(time.RFC3339)
	}
	if !h.LastErrorTime.IsZero() {
		stats["last_error_time"] = h.LastErrorTime.Format(time.RFC3339)
	}
	return stats
}

// ObserveGeneration records how long a generation took.
func ObserveGeneration(start time.Time) {
	GenerationDuration.Observe(time.Since(start).Seconds())
}

// RecordDelivery counts one channel attempt.
func RecordDelivery(channel string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	Deliveries.WithLabelValues(channel, status).Inc()
}
