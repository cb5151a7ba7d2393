// Package metrics provides Prometheus metrics for the duel arena backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Matchmaking
	queueLength   prometheus.Gauge
	queueJoins    prometheus.Counter
	queueRequeues prometheus.Counter
	pairsFormed   prometheus.Counter
	queueRemovals prometheus.Counter

	// Match lifecycle
	matchesCreated  prometheus.Counter
	matchesFinished *prometheus.CounterVec
	matchesActive   prometheus.Gauge
	answers         *prometheus.CounterVec
	resultsArchived prometheus.Gauge

	// Scenarios
	scenarioRecomputes *prometheus.CounterVec
	scenarioLatency    *prometheus.HistogramVec
	scenariosActive    prometheus.Gauge
	invariantRepairs   *prometheus.CounterVec

	// Session router
	connectionsOpen   prometheus.Gauge
	inboundMessages   *prometheus.CounterVec
	duplicateRequests prometheus.Counter
	notifications     *prometheus.CounterVec
	outboxLength      prometheus.Gauge
	deliveryLatency   prometheus.Histogram

	// Errors
	errorsByCode *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "duelarena",
		subsystem:        "core",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		constLabels:      map[string]string{},
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
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.queueLength = m.gauge("queue_length", "Number of players waiting in the matchmaking queue")
	m.queueJoins = m.counter("queue_joins_total", "Total join_queue requests accepted (inserts and in-place updates)")
	m.queueRequeues = m.counter("queue_requeues_total", "Players returned to the queue after a failed match creation")
	m.pairsFormed = m.counter("queue_pairs_total", "Total pairs taken off the queue")
	m.queueRemovals = m.counter("queue_removals_total", "Waiting players removed on disconnect or leave")

	m.matchesCreated = m.counter("matches_created_total", "Total matches created")
	m.matchesFinished = m.counterVec("matches_finished_total", "Matches that left the active state", "status")
	m.matchesActive = m.gauge("matches_active", "Number of active matches")
	m.answers = m.counterVec("answers_total", "Submitted answers by correctness", "correct")
	m.resultsArchived = m.gauge("results_archived", "Finished match results held for late queries")

	m.scenarioRecomputes = m.counterVec("scenario_recomputes_total", "Scenario recomputations by topic", "topic")
	m.scenarioLatency = m.histogramVec("scenario_recompute_milliseconds", "Scenario recompute latency in milliseconds", "topic")
	m.scenariosActive = m.gauge("scenarios_active", "Sessions with a running scenario")
	m.invariantRepairs = m.counterVec("invariant_violations_total", "Out-of-bound values clamped by the engine", "field")

	m.connectionsOpen = m.gauge("connections_open", "Open websocket connections")
	m.inboundMessages = m.counterVec("inbound_messages_total", "Inbound messages by type", "type")
	m.duplicateRequests = m.counter("duplicate_requests_total", "Inbound requests dropped by the replay guard")
	m.notifications = m.counterVec("notifications_total", "Outbound notifications by result", "result")
	m.outboxLength = m.gauge("outbox_length", "Notifications waiting for delivery")
	m.deliveryLatency = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "delivery_latency_milliseconds",
		Help:        "Time from enqueue to hand-off to the connection writer",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.errorsByCode = m.counterVec("errors_total", "Errors reported by component and wire code", "component", "code")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")
}

// UpdateQueueLength sets the current matchmaking queue length.
func UpdateQueueLength(n int) { globalManager.queueLength.Set(float64(n)) }

// RecordQueueJoin counts an accepted join_queue.
func RecordQueueJoin() { globalManager.queueJoins.Inc() }

// RecordQueueRequeue counts players put back after a failed match creation.
func RecordQueueRequeue(n int) { globalManager.queueRequeues.Add(float64(n)) }

// RecordPairFormed counts a pair removed from the queue.
func RecordPairFormed() { globalManager.pairsFormed.Inc() }

// RecordQueueRemoval counts a waiting player removed without being paired.
func RecordQueueRemoval() { globalManager.queueRemovals.Inc() }

// RecordMatchCreated counts a new match.
func RecordMatchCreated() { globalManager.matchesCreated.Inc() }

// RecordMatchFinished counts a match leaving the active state.
func RecordMatchFinished(status string) {
	globalManager.matchesFinished.WithLabelValues(status).Inc()
}

// UpdateActiveMatches sets the number of active matches.
func UpdateActiveMatches(n int) { globalManager.matchesActive.Set(float64(n)) }

// RecordAnswer counts a scored answer.
func RecordAnswer(correct bool) {
	label := "false"
	if correct {
		label = "true"
	}
	globalManager.answers.WithLabelValues(label).Inc()
}

// UpdateArchivedResults sets the number of archived results.
func UpdateArchivedResults(n int) { globalManager.resultsArchived.Set(float64(n)) }

// RecordScenarioRecompute records a recompute and its latency.
func RecordScenarioRecompute(topic string, latencyMs float64) {
	globalManager.scenarioRecomputes.WithLabelValues(topic).Inc()
	globalManager.scenarioLatency.WithLabelValues(topic).Observe(latencyMs)
}

// UpdateActiveScenarios sets the number of running scenarios.
func UpdateActiveScenarios(n int) { globalManager.scenariosActive.Set(float64(n)) }

// RecordInvariantViolation counts a clamped out-of-bound field.
func RecordInvariantViolation(field string) {
	globalManager.invariantRepairs.WithLabelValues(field).Inc()
}

// UpdateOpenConnections sets the open connection count.
func UpdateOpenConnections(n int) { globalManager.connectionsOpen.Set(float64(n)) }

// RecordInboundMessage counts an inbound message by type.
func RecordInboundMessage(msgType string) {
	globalManager.inboundMessages.WithLabelValues(msgType).Inc()
}

// RecordDuplicateRequest counts a replayed request.
func RecordDuplicateRequest() { globalManager.duplicateRequests.Inc() }

// RecordNotification counts an outbound notification outcome
// (queued, delivered, dropped, undeliverable).
func RecordNotification(result string) {
	globalManager.notifications.WithLabelValues(result).Inc()
}

// UpdateOutboxLength sets the number of undelivered notifications.
func UpdateOutboxLength(n int) { globalManager.outboxLength.Set(float64(n)) }

// RecordDeliveryLatency records enqueue-to-delivery latency.
func RecordDeliveryLatency(latencyMs float64) { globalManager.deliveryLatency.Observe(latencyMs) }

// RecordError counts an error by component and wire code.
func RecordError(component, code string) {
	globalManager.errorsByCode.WithLabelValues(component, code).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
