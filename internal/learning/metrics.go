package learning

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for recommendation and feedback.
type Metrics struct {
	RecommendationsTotal *prometheus.CounterVec
	FallbacksTotal       *prometheus.CounterVec
	RecommendDuration    prometheus.Histogram
	FeedbackTotal        *prometheus.CounterVec
	EvictedTotal         *prometheus.CounterVec
}

// NewMetrics returns the process-wide metrics, registering them on first use.
//
// Metrics:
//   - autoflags_recommendations_total{source} - recommendations by source
//   - autoflags_fallbacks_total{reason} - learned path abandoned for static
//   - autoflags_recommend_duration_seconds - Recommend latency
//   - autoflags_feedback_total{result} - feedback submissions by result
//   - autoflags_evicted_total{kind} - rows removed by retention
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RecommendationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "autoflags_recommendations_total",
					Help: "Total number of recommendations by source",
				},
				[]string{"source"}, // "static", "learned", "personalized"
			),

			FallbacksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "autoflags_fallbacks_total",
					Help: "Total number of static fallbacks by reason",
				},
				[]string{"reason"},
			),

			RecommendDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "autoflags_recommend_duration_seconds",
					Help:    "Duration of Recommend calls in seconds",
					Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~200ms
				},
			),

			FeedbackTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "autoflags_feedback_total",
					Help: "Total number of feedback submissions by result",
				},
				[]string{"result"}, // "applied", "invalid", "unavailable"
			),

			EvictedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "autoflags_evicted_total",
					Help: "Total number of rows removed by retention",
				},
				[]string{"kind"}, // "pattern", "interaction"
			),
		}
	})

	return globalMetrics
}

func (m *Metrics) recordRecommendation(source Source, seconds float64) {
	if m == nil {
		return
	}
	m.RecommendationsTotal.WithLabelValues(string(source)).Inc()
	m.RecommendDuration.Observe(seconds)
}

func (m *Metrics) recordFallback(reason string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordFeedback(result string) {
	if m == nil {
		return
	}
	m.FeedbackTotal.WithLabelValues(result).Inc()
}

// RecordEviction counts rows removed by a retention pass.
func (m *Metrics) RecordEviction(patterns, interactions int64) {
	if m == nil {
		return
	}
	m.EvictedTotal.WithLabelValues("pattern").Add(float64(patterns))
	m.EvictedTotal.WithLabelValues("interaction").Add(float64(interactions))
}
