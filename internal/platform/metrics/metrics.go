package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the broadcast coordinator.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        prometheus.Counter
	sessionsStartedTotal prometheus.Counter
	eventsFannedOutTotal prometheus.Counter
	sendFailuresTotal    prometheus.Counter
	chatMessagesTotal    prometheus.Counter
	relayErrorsTotal     prometheus.Counter
	connections          prometheus.Gauge
	errorsTotal          prometheus.Counter
}

// New creates and registers Prometheus metrics for the coordinator.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_requests_total",
		Help: "Total number of HTTP requests received",
	})
	sessionsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_sessions_started_total",
		Help: "Total number of broadcast sessions started",
	})
	eventsFannedOutTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_events_fanned_out_total",
		Help: "Total number of events enqueued for delivery to connections",
	})
	sendFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_send_failures_total",
		Help: "Total number of connections removed after a failed or stalled send",
	})
	chatMessagesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_chat_messages_total",
		Help: "Total number of chat messages fanned out",
	})
	relayErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_relay_errors_total",
		Help: "Total number of signaling relay requests that could not reach the gateway",
	})
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_connections",
		Help: "Number of currently registered realtime connections",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		sessionsStartedTotal,
		eventsFannedOutTotal,
		sendFailuresTotal,
		chatMessagesTotal,
		relayErrorsTotal,
		connections,
		errorsTotal,
	)

	return &Metrics{
		registry:             registry,
		requestsTotal:        requestsTotal,
		sessionsStartedTotal: sessionsStartedTotal,
		eventsFannedOutTotal: eventsFannedOutTotal,
		sendFailuresTotal:    sendFailuresTotal,
		chatMessagesTotal:    chatMessagesTotal,
		relayErrorsTotal:     relayErrorsTotal,
		connections:          connections,
		errorsTotal:          errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncSessionsStarted increments the sessions started counter.
func (m *Metrics) IncSessionsStarted() {
	m.sessionsStartedTotal.Inc()
}

// IncEventsFannedOut increments the fanned-out events counter.
func (m *Metrics) IncEventsFannedOut() {
	m.eventsFannedOutTotal.Inc()
}

// IncSendFailures increments the send failures counter.
func (m *Metrics) IncSendFailures() {
	m.sendFailuresTotal.Inc()
}

// IncChatMessages increments the chat messages counter.
func (m *Metrics) IncChatMessages() {
	m.chatMessagesTotal.Inc()
}

// IncRelayErrors increments the relay errors counter.
func (m *Metrics) IncRelayErrors() {
	m.relayErrorsTotal.Inc()
}

// SetConnections sets the registered connections gauge.
func (m *Metrics) SetConnections(n int) {
	m.connections.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. connection count).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
