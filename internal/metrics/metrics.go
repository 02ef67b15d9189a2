// Package metrics exposes bring-up and HTTP counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muurk/ledhttpd/internal/bringup"
	"github.com/muurk/ledhttpd/internal/netwait"
)

// Metrics tracks ledhttpd Prometheus metrics.
//
// All metrics use the ledhttpd_ prefix. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// StageDuration tracks how long each bring-up stage took, by outcome
	StageDuration *prometheus.HistogramVec

	// StageFailures counts failed stages by stage and failure kind
	StageFailures *prometheus.CounterVec

	// CleanupsTotal counts ledger cleanups run, by reason ("unwind", "shutdown")
	CleanupsTotal *prometheus.CounterVec

	// AssociationWait tracks time spent waiting for an address, by result
	AssociationWait *prometheus.HistogramVec

	// HTTPResponses counts responses by route and status code
	HTTPResponses *prometheus.CounterVec

	// NotModified counts conditional requests answered with 304
	NotModified prometheus.Counter

	// BootCount is the persisted boot counter
	BootCount prometheus.Gauge

	// LEDOn is 1 while the LED is lit
	LEDOn prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates metrics on a private registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := NewMetrics(reg)
	m.gatherer = reg
	return m
}

// NewMetrics creates ledhttpd metrics and registers them with reg.
// Panics if registration fails (expected during initialization only).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledhttpd_stage_duration_seconds",
				Help:    "Bring-up stage duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage", "outcome"},
		),
		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledhttpd_stage_failures_total",
				Help: "Failed bring-up stages by stage and kind",
			},
			[]string{"stage", "kind"},
		),
		CleanupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledhttpd_cleanups_total",
				Help: "Ledger cleanups run",
			},
			[]string{"reason"},
		),
		AssociationWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledhttpd_association_wait_seconds",
				Help:    "Time spent waiting for an address",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"result"},
		),
		HTTPResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledhttpd_http_responses_total",
				Help: "HTTP responses by route and status code",
			},
			[]string{"route", "status"},
		),
		NotModified: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledhttpd_http_not_modified_total",
				Help: "Conditional requests answered with 304 Not Modified",
			},
		),
		BootCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledhttpd_boot_count",
				Help: "Number of boots recorded in key storage",
			},
		),
		LEDOn: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledhttpd_led_on",
				Help: "1 while the LED is lit",
			},
		),
	}

	reg.MustRegister(
		m.StageDuration,
		m.StageFailures,
		m.CleanupsTotal,
		m.AssociationWait,
		m.HTTPResponses,
		m.NotModified,
		m.BootCount,
		m.LEDOn,
	)

	return m
}

// ObserveStage is a bringup.Observer.
func (m *Metrics) ObserveStage(ev bringup.Event) {
	if m == nil {
		return
	}
	switch ev.Type {
	case bringup.EventCompleted:
		m.StageDuration.WithLabelValues(ev.Stage, "ok").Observe(ev.Elapsed.Seconds())
	case bringup.EventFailed:
		m.StageDuration.WithLabelValues(ev.Stage, "failed").Observe(ev.Elapsed.Seconds())
		kind := bringup.KindUnknown
		if se, ok := ev.Err.(*bringup.StageError); ok {
			kind = se.Kind
		}
		m.StageFailures.WithLabelValues(ev.Stage, kind.String()).Inc()
	case bringup.EventUnwound:
		m.CleanupsTotal.WithLabelValues("unwind").Add(float64(ev.Cleanups))
	case bringup.EventShutdown:
		m.CleanupsTotal.WithLabelValues("shutdown").Add(float64(ev.Cleanups))
	}
}

// ObserveAssociation is a netwait.Observer.
func (m *Metrics) ObserveAssociation(result netwait.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AssociationWait.WithLabelValues(string(result)).Observe(elapsed.Seconds())
}

// RecordResponse records one HTTP response.
func (m *Metrics) RecordResponse(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPResponses.WithLabelValues(route, strconv.Itoa(status)).Inc()
	if status == http.StatusNotModified {
		m.NotModified.Inc()
	}
}

// SetBootCount records the persisted boot counter.
func (m *Metrics) SetBootCount(n uint32) {
	if m == nil {
		return
	}
	m.BootCount.Set(float64(n))
}

// SetLED records the LED state.
func (m *Metrics) SetLED(on bool) {
	if m == nil {
		return
	}
	if on {
		m.LEDOn.Set(1)
	} else {
		m.LEDOn.Set(0)
	}
}

// Handler serves the registry in the Prometheus text format. Metrics created
// with NewMetrics on an external registerer serve the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
