// Package metrics provides Prometheus metrics for promptkit.
//
// Metrics live in a private registry so tests and multiple instances never
// collide. Every method is safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Backup triggers used as the "trigger" label.
const (
	TriggerAuto     = "auto"
	TriggerManual   = "manual"
	TriggerDownload = "download"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	reg *prometheus.Registry

	OperationsTotal     *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	Records             prometheus.Gauge
	BackupsTotal        *prometheus.CounterVec
	PlaceholdersMissing prometheus.Counter
}

// New creates and registers all metrics. With process set, Go runtime and
// process collectors are registered too (used by the long-running server).
func New(process bool) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptkit_operations_total",
				Help: "Total number of record operations",
			},
			[]string{"op", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptkit_operation_duration_seconds",
				Help:    "Duration of record operations in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"op"},
		),
		Records: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "promptkit_records",
				Help: "Number of stored records after the last operation",
			},
		),
		BackupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptkit_backups_total",
				Help: "Total number of backups written",
			},
			[]string{"trigger"},
		),
		PlaceholdersMissing: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "promptkit_placeholders_missing_total",
				Help: "Total number of placeholders left unfilled by a render",
			},
		),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.Records,
		m.BackupsTotal,
		m.PlaceholdersMissing,
	)

	if process {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.reg
}

// RecordOperation records one finished operation.
func (m *Metrics) RecordOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.OperationsTotal.WithLabelValues(op, status).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SetRecords updates the record count gauge.
func (m *Metrics) SetRecords(n int) {
	if m == nil {
		return
	}

	m.Records.Set(float64(n))
}

// RecordBackup counts one backup for trigger.
func (m *Metrics) RecordBackup(trigger string) {
	if m == nil {
		return
	}

	m.BackupsTotal.WithLabelValues(trigger).Inc()
}

// RecordMissing adds n unfilled placeholders.
func (m *Metrics) RecordMissing(n int) {
	if m == nil || n <= 0 {
		return
	}

	m.PlaceholdersMissing.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// WriteTextfile writes the registry to path for the node_exporter textfile
// collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}

	return prometheus.WriteToTextfile(path, m.reg)
}
