package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fitbot/internal/cache"
	"fitbot/internal/models"
)

// Metrics holds the chat routing Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	ChatRequests  *prometheus.CounterVec
	ChatLatency   *prometheus.HistogramVec
	BackendErrors *prometheus.CounterVec
	CacheLookups  *prometheus.CounterVec
}

// NewMetrics registers the chat metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Chat requests by handling path and intent
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fitbot_chat_requests_total",
			Help: "Total number of chat requests by handling path and intent",
		}, []string{"handled_by", "intent"}),

		ChatLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fitbot_chat_request_duration_seconds",
			Help:    "Chat request latency in seconds by handling path",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}, // FAQ answers are milliseconds, generation up to the timeout
		}, []string{"handled_by"}),

		BackendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fitbot_backend_errors_total",
			Help: "Total number of generative backend failures by kind",
		}, []string{"kind"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fitbot_context_cache_lookups_total",
			Help: "Context cache lookups by result",
		}, []string{"result"}), // "hit" or "miss"
	}
}

// RecordChat records a completed chat request
func (m *Metrics) RecordChat(resp *models.ChatResponse) {
	if m == nil || resp == nil {
		return
	}
	handledBy := string(resp.HandledBy)
	if !resp.Success {
		handledBy = "error"
	}
	m.ChatRequests.WithLabelValues(handledBy, string(resp.Intent)).Inc()
	m.ChatLatency.WithLabelValues(handledBy).Observe(float64(resp.ResponseTimeMs) / 1000)
}

// RecordBackendError records a generative backend failure
func (m *Metrics) RecordBackendError(kind string) {
	if m == nil {
		return
	}
	m.BackendErrors.WithLabelValues(kind).Inc()
}

// CacheObserver returns a cache.Observer feeding CacheLookups
func (m *Metrics) CacheObserver() cache.Observer {
	return func(_ string, hit bool) {
		if m == nil {
			return
		}
		result := "miss"
		if hit {
			result = "hit"
		}
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
