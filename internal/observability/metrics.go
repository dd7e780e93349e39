package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	TurnEvents     *prometheus.CounterVec
	CacheEvents    *prometheus.CounterVec
	FetchAttempts  prometheus.Histogram
	ProviderErrors *prometheus.CounterVec
	TurnLatency    prometheus.Histogram

	// Stages keeps a rolling in-process latency window per pipeline stage,
	// served by the debug endpoint alongside the Prometheus instruments.
	Stages *StageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of tracked chat sessions.",
		}),
		TurnEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_events_total",
			Help:      "Turn outcomes by type.",
		}, []string{"event"}),
		CacheEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_events_total",
			Help:      "Result cache activity by event.",
		}, []string{"event"}),
		FetchAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_per_turn",
			Help:      "Query attempts spent per data-bearing turn.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Model provider errors by capability.",
		}, []string{"capability"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end turn latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		}),
		Stages: NewStageWindow(256),
	}
}

func (m *Metrics) ObserveTurnLatency(d time.Duration) {
	ms := float64(d.Milliseconds())
	m.TurnLatency.Observe(ms)
	m.Stages.Observe(StageTurnTotal, ms)
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
