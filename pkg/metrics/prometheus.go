// Package metrics provides Prometheus metrics for the belay contest service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Clock
	ticks            prometheus.Counter
	tickHandling     prometheus.Histogram
	phaseTransitions *prometheus.CounterVec
	beeps            prometheus.Counter
	remainingSeconds prometheus.Gauge
	clockPhase       prometheus.Gauge
	clockRunning     prometheus.Gauge

	// Contest
	rotations           prometheus.Counter
	competitorsByState  *prometheus.GaugeVec
	roundsCompleted     prometheus.Counter
	scoresRecorded      prometheus.Counter
	scoresRejected      *prometheus.CounterVec
	duplicateSubmission prometheus.Counter

	// Command loop
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	queueRejected  *prometheus.CounterVec
	commandLatency *prometheus.HistogramVec
	commandErrors  *prometheus.CounterVec

	// Feeds
	feedClients   prometheus.Gauge
	feedPublished *prometheus.CounterVec
	feedDropped   *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of the exposition.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "belay",
		subsystem:        "contest",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.ticks = m.counter("clock_ticks_total", "Total number of processed clock ticks")
	m.tickHandling = m.histogram("clock_tick_handling_milliseconds",
		"Time spent handling one clock tick, subtracted from the next delay",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500})
	m.phaseTransitions = m.counterVec("clock_phase_transitions_total",
		"Phase completions by the phase that ended", "phase")
	m.beeps = m.counter("clock_beeps_total", "Total number of countdown alerts fired")
	m.remainingSeconds = m.gauge("clock_remaining_seconds", "Seconds left in the current phase")
	m.clockPhase = m.gauge("clock_phase", "Current clock phase as its numeric value")
	m.clockRunning = m.gauge("clock_running", "1 while the countdown is running")

	m.rotations = m.counter("rotations_total", "Total number of rotation boundaries processed")
	m.competitorsByState = m.counterVecGauge("competitors", "Competitors by assignment state", "state")
	m.roundsCompleted = m.counter("rounds_completed_total", "Total number of completed rounds")
	m.scoresRecorded = m.counter("scores_recorded_total", "Total number of accepted score entries")
	m.scoresRejected = m.counterVec("scores_rejected_total", "Rejected score entries by reason", "reason")
	m.duplicateSubmission = m.counter("score_submissions_duplicate_total",
		"Score submissions ignored because their id was already applied")

	m.queueSize = m.gauge("command_queue_size", "Commands waiting for the contest loop")
	m.queueCapacity = m.gauge("command_queue_capacity", "Capacity of the command queue")
	m.queueRejected = m.counterVec("command_queue_rejected_total", "Commands refused by the queue", "reason")
	m.commandLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "command_latency_milliseconds",
		Help:    "Time spent executing a command on the contest loop",
		Buckets: m.histogramBuckets,
	}, []string{"kind"})
	m.commandErrors = m.counterVec("command_errors_total", "Commands that returned an error", "kind")

	m.feedClients = m.gauge("feed_clients", "Connected display feed clients")
	m.feedPublished = m.counterVec("feed_messages_published_total", "Messages pushed to display feeds", "feed", "type")
	m.feedDropped = m.counterVec("feed_messages_dropped_total", "Messages a display feed could not deliver", "feed")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Current memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Current number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds",
		"Average garbage collection pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func (m *Manager) counterVecGauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

// RecordTick increments the tick counter and observes tick handling time.
func RecordTick(handlingMs float64) {
	globalManager.ticks.Inc()
	globalManager.tickHandling.Observe(handlingMs)
}

// RecordPhaseTransition counts a completed phase.
func RecordPhaseTransition(phase string) {
	globalManager.phaseTransitions.WithLabelValues(phase).Inc()
}

// RecordBeep counts a fired countdown alert.
func RecordBeep() {
	globalManager.beeps.Inc()
}

// UpdateClock publishes the current clock reading.
func UpdateClock(remaining, phase int, running bool) {
	globalManager.remainingSeconds.Set(float64(remaining))
	globalManager.clockPhase.Set(float64(phase))
	if running {
		globalManager.clockRunning.Set(1)
	} else {
		globalManager.clockRunning.Set(0)
	}
}

// RecordRotation counts a processed rotation boundary.
func RecordRotation() {
	globalManager.rotations.Inc()
}

// RecordRoundCompleted counts a finished round.
func RecordRoundCompleted() {
	globalManager.roundsCompleted.Inc()
}

// UpdateCompetitorsByState replaces the per-state competitor gauges.
func UpdateCompetitorsByState(counts map[string]int) {
	globalManager.competitorsByState.Reset()
	for state, n := range counts {
		globalManager.competitorsByState.WithLabelValues(state).Set(float64(n))
	}
}

// RecordScoreRecorded counts an accepted score entry.
func RecordScoreRecorded() {
	globalManager.scoresRecorded.Inc()
}

// RecordScoreRejected counts a rejected score entry.
func RecordScoreRejected(reason string) {
	globalManager.scoresRejected.WithLabelValues(reason).Inc()
}

// RecordDuplicateSubmission counts an ignored duplicate score submission.
func RecordDuplicateSubmission() {
	globalManager.duplicateSubmission.Inc()
}

// UpdateQueueSize sets the number of waiting commands.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the command queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a command refused by the queue.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// RecordCommand observes command execution latency and errors.
func RecordCommand(kind string, latencyMs float64, failed bool) {
	globalManager.commandLatency.WithLabelValues(kind).Observe(latencyMs)
	if failed {
		globalManager.commandErrors.WithLabelValues(kind).Inc()
	}
}

// UpdateFeedClients sets the number of connected display clients.
func UpdateFeedClients(n int) {
	globalManager.feedClients.Set(float64(n))
}

// RecordFeedPublished counts a message pushed to a feed.
func RecordFeedPublished(feed, msgType string) {
	globalManager.feedPublished.WithLabelValues(feed, msgType).Inc()
}

// RecordFeedDropped counts a message a feed failed to deliver.
func RecordFeedDropped(feed string) {
	globalManager.feedDropped.WithLabelValues(feed).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
