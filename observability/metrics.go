package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons used as label values.
const (
	ReasonMalformed   = "malformed"
	ReasonRateLimited = "rate_limited"
	ReasonQueueFull   = "queue_full"
	ReasonNoTarget    = "no_target"
	ReasonClosed      = "closed"
)

// Metrics groups the relay counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	activeConnections prometheus.Gauge
	connectionsTotal  prometheus.Counter
	authFailures      prometheus.Counter
	inboundEvents     *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
	dropped           *prometheus.CounterVec
	storeErrors       prometheus.Counter
	onlineUsers       prometheus.Gauge
	queueLength       *prometheus.GaugeVec
	queueCapacity     *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Current number of registered connections.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total number of connections accepted since start.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_auth_failures_total",
			Help: "Connections refused because no identity could be resolved.",
		}),
		inboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_inbound_events_total",
			Help: "Inbound events accepted, by event name.",
		}, []string{"event"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Outbound events queued to a connection, by event name.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_dropped_events_total",
			Help: "Events dropped, by reason.",
		}, []string{"reason"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_store_errors_total",
			Help: "Chat messages that could not be persisted.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_online_users",
			Help: "Identities currently in the presence set.",
		}),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_queue_length",
			Help: "Sampled number of items waiting in an internal queue.",
		}, []string{"queue"}),
		queueCapacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_queue_capacity",
			Help: "Capacity of an internal queue.",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		m.activeConnections,
		m.connectionsTotal,
		m.authFailures,
		m.inboundEvents,
		m.deliveries,
		m.dropped,
		m.storeErrors,
		m.onlineUsers,
		m.queueLength,
		m.queueCapacity,
	)
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
	m.connectionsTotal.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

func (m *Metrics) AuthFailed() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}

func (m *Metrics) Inbound(event string) {
	if m == nil {
		return
	}
	m.inboundEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) Delivered(event string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(event).Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) StoreFailed() {
	if m == nil {
		return
	}
	m.storeErrors.Inc()
}

func (m *Metrics) OnlineUsers(n int) {
	if m == nil {
		return
	}
	m.onlineUsers.Set(float64(n))
}

func (m *Metrics) QueueDepth(queue string, length, capacity int) {
	if m == nil {
		return
	}
	m.queueLength.WithLabelValues(queue).Set(float64(length))
	m.queueCapacity.WithLabelValues(queue).Set(float64(capacity))
}
