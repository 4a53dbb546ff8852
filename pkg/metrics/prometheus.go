// Package metrics provides Prometheus metrics for the tournament relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the relay.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Inbound stream
	packetsReceived  *prometheus.CounterVec
	decodeErrors     prometheus.Counter
	packetsDuplicate prometheus.Counter
	inboundConnected prometheus.Gauge
	reconnects       prometheus.Counter

	// Reconciliation
	reconcileTotal   *prometheus.CounterVec
	reconcileLatency *prometheus.HistogramVec
	announceTotal    *prometheus.CounterVec

	// Work queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge

	// State store
	stateUsers   *prometheus.GaugeVec
	stateMatches prometheus.Gauge
	stateHosts   prometheus.Gauge
	stateScores  prometheus.Gauge

	// Notifications
	notificationsPublished prometheus.Counter
	notificationsDropped   prometheus.Counter
	subscribers            prometheus.Gauge

	// Telemetry archive
	telemetryWrites *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tarelay",
		subsystem:        "relay",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.packetsReceived = m.counterVec("packets_received_total", "Decoded inbound packets by payload kind", "kind")
	m.decodeErrors = m.counter("packet_decode_errors_total", "Inbound frames that failed to decode")
	m.packetsDuplicate = m.counter("packets_duplicate_total", "Inbound packets dropped because their id was already seen")
	m.inboundConnected = m.gauge("inbound_connected", "1 while the long-lived inbound connection is up")
	m.reconnects = m.counter("inbound_reconnects_total", "Reconnect attempts of the inbound connection")

	m.reconcileTotal = m.counterVec("reconcile_total", "Reconciled packets by kind and outcome", "kind", "outcome")
	m.reconcileLatency = m.histogramVec("reconcile_latency_milliseconds", "Time spent reconciling one packet", "kind")
	m.announceTotal = m.counterVec("announce_total", "Match re-announcements by outcome", "outcome")

	m.queueSize = m.gauge("queue_size", "Packets waiting for a reconcile worker")
	m.queueCapacity = m.gauge("queue_capacity", "Total capacity of the reconcile queues")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Packets rejected by a full or closed queue")
	m.workerCount = m.gauge("worker_count", "Number of reconcile workers")

	m.stateUsers = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "state_users",
		Help:      "Users held in the state store by role",
	}, []string{"role"})
	m.stateMatches = m.gauge("state_matches", "Matches held in the state store")
	m.stateHosts = m.gauge("state_hosts", "Known core servers held in the state store")
	m.stateScores = m.gauge("state_scores", "Players with a realtime score on file")

	m.notificationsPublished = m.counter("notifications_published_total", "State change notifications published")
	m.notificationsDropped = m.counter("notifications_dropped_total", "Notifications dropped for slow subscribers")
	m.subscribers = m.gauge("subscribers", "Active change-notification subscribers")

	m.telemetryWrites = m.counterVec("telemetry_writes_total", "Realtime score archive writes by outcome", "outcome")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")
}

// RecordPacketReceived counts one decoded inbound packet.
func RecordPacketReceived(kind string) {
	globalManager.packetsReceived.WithLabelValues(kind).Inc()
}

// RecordDecodeError counts one undecodable inbound frame.
func RecordDecodeError() {
	globalManager.decodeErrors.Inc()
}

// RecordPacketDuplicate counts one duplicate packet id.
func RecordPacketDuplicate() {
	globalManager.packetsDuplicate.Inc()
}

// SetInboundConnected flips the inbound connection gauge.
func SetInboundConnected(up bool) {
	if up {
		globalManager.inboundConnected.Set(1)
		return
	}
	globalManager.inboundConnected.Set(0)
}

// RecordReconnect counts one reconnect attempt.
func RecordReconnect() {
	globalManager.reconnects.Inc()
}

// RecordReconcile records the outcome and latency of one routed packet.
func RecordReconcile(kind, outcome string, latencyMs float64) {
	globalManager.reconcileTotal.WithLabelValues(kind, outcome).Inc()
	globalManager.reconcileLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordAnnounce counts one re-announcement attempt sequence.
func RecordAnnounce(outcome string) {
	globalManager.announceTotal.WithLabelValues(outcome).Inc()
}

// UpdateQueueSize sets the number of queued packets.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts one rejected enqueue.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateStateSizes publishes the sizes of every state store collection.
func UpdateStateSizes(serverUsers, coordinators, players, matches, hosts, scores int) {
	globalManager.stateUsers.WithLabelValues("server").Set(float64(serverUsers))
	globalManager.stateUsers.WithLabelValues("coordinator").Set(float64(coordinators))
	globalManager.stateUsers.WithLabelValues("player").Set(float64(players))
	globalManager.stateMatches.Set(float64(matches))
	globalManager.stateHosts.Set(float64(hosts))
	globalManager.stateScores.Set(float64(scores))
}

// RecordNotificationPublished counts one published notification.
func RecordNotificationPublished() {
	globalManager.notificationsPublished.Inc()
}

// RecordNotificationDropped counts one notification a subscriber missed.
func RecordNotificationDropped() {
	globalManager.notificationsDropped.Inc()
}

// UpdateSubscribers sets the number of active subscribers.
func UpdateSubscribers(count int) {
	globalManager.subscribers.Set(float64(count))
}

// RecordTelemetryWrite counts one archive write.
func RecordTelemetryWrite(outcome string) {
	globalManager.telemetryWrites.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error attributed to a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
