package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	httpErrors    *prometheus.CounterVec
	wsConnections prometheus.Gauge
	wsEvents      *prometheus.CounterVec
	chatMessages  prometheus.Counter
	rateLimited   prometheus.Counter
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_errors_total",
			Help: "HTTP errors by route, method and error code.",
		}, []string{"route", "method", "code"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helpdesk_ws_connections",
			Help: "Open chat websocket connections.",
		}),
		wsEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_ws_events_total",
			Help: "Chat socket events by name and outcome.",
		}, []string{"event", "outcome"}),
		chatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_chat_messages_total",
			Help: "Chat messages persisted.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_ws_rate_limited_total",
			Help: "Chat socket events rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpLatency, m.httpErrors,
		m.wsConnections, m.wsEvents, m.chatMessages, m.rateLimited,
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(route, method, code).Inc()
}

// ConnectionOpened tracks a new chat socket.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

// ConnectionClosed tracks a closed chat socket.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}

// RecordEvent counts a handled socket event. outcome is "ok" or an error code.
func (m *Metrics) RecordEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.wsEvents.WithLabelValues(event, outcome).Inc()
}

// RecordChatMessage counts a persisted chat message.
func (m *Metrics) RecordChatMessage() {
	if m == nil {
		return
	}
	m.chatMessages.Inc()
}

// RecordRateLimited counts a rejected socket event.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
