// Package obs holds process observability: prometheus metrics for the
// reconciliation pipeline and trace id generation for event headers.
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"stratmgr/internal/schema"
)

// Metrics collects reconciliation pipeline counters and latency histograms.
// A nil *Metrics is valid and drops every observation.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal   *prometheus.CounterVec
	cascadeAborts *prometheus.CounterVec
	pausesTotal   *prometheus.CounterVec
	alertsTotal   *prometheus.CounterVec
	eventLatency  *prometheus.HistogramVec
	killSwitch    prometheus.Gauge
}

// NewMetrics allocates and registers the pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stratmgr",
			Name:      "events_total",
			Help:      "Journal events processed, by event kind and result.",
		}, []string{"kind", "result"}),
		cascadeAborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stratmgr",
			Name:      "cascade_aborts_total",
			Help:      "Reconciliation cascades aborted mid-way, by step.",
		}, []string{"step"}),
		pausesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stratmgr",
			Name:      "strat_pauses_total",
			Help:      "Forced strategy pauses, by triggering rule.",
		}, []string{"rule"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stratmgr",
			Name:      "alerts_total",
			Help:      "Alerts raised, by severity.",
		}, []string{"severity"}),
		eventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stratmgr",
			Name:      "event_latency_seconds",
			Help:      "End-to-end handling latency per journal event.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"kind"}),
		killSwitch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stratmgr",
			Name:      "kill_switch",
			Help:      "1 when the portfolio kill switch is engaged.",
		}),
	}

	registry.MustRegister(
		m.eventsTotal,
		m.cascadeAborts,
		m.pausesTotal,
		m.alertsTotal,
		m.eventLatency,
		m.killSwitch,
	)
	return m
}

// Registry exposes the underlying registry for the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveEvent records one processed journal event.
func (m *Metrics) ObserveEvent(kind string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsTotal.WithLabelValues(kind, result).Inc()
	m.eventLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// IncCascadeAbort records a cascade aborted at the named step.
func (m *Metrics) IncCascadeAbort(step string) {
	if m == nil {
		return
	}
	m.cascadeAborts.WithLabelValues(step).Inc()
}

// IncPause records a forced pause by the named rule.
func (m *Metrics) IncPause(rule string) {
	if m == nil {
		return
	}
	m.pausesTotal.WithLabelValues(rule).Inc()
}

// IncAlert records a raised alert.
func (m *Metrics) IncAlert(severity schema.Severity) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(severity.String()).Inc()
}

// SetKillSwitch reflects the current kill-switch state.
func (m *Metrics) SetKillSwitch(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.killSwitch.Set(1)
	} else {
		m.killSwitch.Set(0)
	}
}
