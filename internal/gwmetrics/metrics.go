// Package gwmetrics provides the Prometheus instrumentation surface for
// gateclient, grounded on the registry-injection pattern used throughout
// the wider resilience/observability stack this package generalizes: every
// constructor accepts (and may create) a *prometheus.Registry, and
// registration errors are swallowed since re-registering an already
// collected metric is expected whenever a process builds more than one
// Client against the same registry.
package gwmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector gateclient emits: admission outcomes,
// queue depth, retry attempts, and per-group circuit breaker state.
type Metrics struct {
	admissionTotal     *prometheus.CounterVec
	queueDepth         *prometheus.GaugeVec
	retryTotal         *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	dispatchDuration   *prometheus.HistogramVec
}

// New creates and registers gateclient's metrics with registry. If registry
// is nil, a private registry is created instead, matching Noop's
// behavior for tests that never scrape a real endpoint.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		admissionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateclient_admission_total",
			Help: "Total admission decisions, labeled by outcome (dispatch, sleep, enqueue).",
		}, []string{"group", "outcome"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateclient_queue_depth",
			Help: "Current RetryQueue depth per priority tier.",
		}, []string{"tier"}),
		retryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateclient_retry_total",
			Help: "Total retry attempts, labeled by HTTP status that triggered them.",
		}, []string{"group", "status"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateclient_circuit_breaker_state",
			Help: "Current circuit breaker state per group (1=active, 0=inactive for the labeled state).",
		}, []string{"group", "state"}),
		breakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateclient_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions per group.",
		}, []string{"group", "from", "to"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateclient_dispatch_duration_seconds",
			Help:    "Duration of one transport dispatch, labeled by group and result.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"group", "result"}),
	}

	for _, c := range []prometheus.Collector{
		m.admissionTotal, m.queueDepth, m.retryTotal,
		m.breakerState, m.breakerTransitions, m.dispatchDuration,
	} {
		_ = registry.Register(c)
	}

	return m
}

// Noop returns a Metrics bound to a private registry, for callers (tests,
// library consumers with no metrics backend) that want to call the normal
// recording methods without wiring a real scrape endpoint.
func Noop() *Metrics {
	return New(nil)
}

// RecordAdmission increments the admission counter for (group, outcome).
// outcome is one of "dispatch", "sleep", "enqueue".
func (m *Metrics) RecordAdmission(group, outcome string) {
	if m == nil {
		return
	}
	m.admissionTotal.WithLabelValues(group, outcome).Inc()
}

// SetQueueDepth records the current depth of one priority tier.
func (m *Metrics) SetQueueDepth(tier string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(tier).Set(float64(depth))
}

// RecordRetry increments the retry counter for (group, status).
func (m *Metrics) RecordRetry(group string, status int) {
	if m == nil {
		return
	}
	m.retryTotal.WithLabelValues(group, statusLabel(status)).Inc()
}

// SetBreakerState zeroes every state label for group, then sets state to 1.
func (m *Metrics) SetBreakerState(group, state string) {
	if m == nil {
		return
	}
	for _, s := range []string{"closed", "open", "half-open"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.breakerState.WithLabelValues(group, s).Set(v)
	}
}

// RecordBreakerTransition increments the transition counter for group.
func (m *Metrics) RecordBreakerTransition(group, from, to string) {
	if m == nil {
		return
	}
	m.breakerTransitions.WithLabelValues(group, from, to).Inc()
}

// ObserveDispatch records one transport dispatch's duration.
func (m *Metrics) ObserveDispatch(group, result string, seconds float64) {
	if m == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(group, result).Observe(seconds)
}

func statusLabel(status int) string {
	if status == 0 {
		return "none"
	}
	return strconv.Itoa(status)
}
