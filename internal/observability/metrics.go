package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ingestion and view-refresh collectors. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	parentsInserted      *prometheus.CounterVec
	observationsInserted prometheus.Counter
	rowsSkipped          *prometheus.CounterVec
	stageDuration        *prometheus.HistogramVec
	passTotal            *prometheus.CounterVec
	viewRefreshDuration  *prometheus.HistogramVec
	viewRefreshTotal     *prometheus.CounterVec
	viewRows             *prometheus.GaugeVec
	httpRequests         *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry, including the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Metrics{
		registry: reg,
		parentsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biositing_parents_inserted_total",
			Help: "Parent records inserted, by variant.",
		}, []string{"variant"}),
		observationsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biositing_observations_inserted_total",
			Help: "Observations inserted.",
		}),
		rowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biositing_rows_skipped_total",
			Help: "Input rows dropped by the observation loader, by reason and field.",
		}, []string{"reason", "field"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "biositing_ingest_stage_duration_seconds",
			Help:    "Duration of ingestion pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"stage"}),
		passTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biositing_ingest_passes_total",
			Help: "Ingestion passes by outcome.",
		}, []string{"status"}),
		viewRefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "biositing_view_refresh_duration_seconds",
			Help:    "Duration of canonical view refreshes.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"view"}),
		viewRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biositing_view_refresh_total",
			Help: "Canonical view refreshes by outcome.",
		}, []string{"view", "status"}),
		viewRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "biositing_view_rows",
			Help: "Row count of each view after its last refresh.",
		}, []string{"view"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biositing_ops_http_requests_total",
			Help: "Ops server requests by route and status.",
		}, []string{"route", "status"}),
	}
	reg.MustRegister(
		m.parentsInserted, m.observationsInserted, m.rowsSkipped, m.stageDuration, m.passTotal,
		m.viewRefreshDuration, m.viewRefreshTotal, m.viewRows, m.httpRequests,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveParentsInserted(variant string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.parentsInserted.WithLabelValues(variant).Add(float64(n))
}

func (m *Metrics) ObserveObservationsInserted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.observationsInserted.Add(float64(n))
}

func (m *Metrics) ObserveSkipped(reason, field string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsSkipped.WithLabelValues(reason, field).Add(float64(n))
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObservePass(status string) {
	if m == nil {
		return
	}
	m.passTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveViewRefresh(view string, d time.Duration, rows int64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.viewRefreshTotal.WithLabelValues(view, status).Inc()
	m.viewRefreshDuration.WithLabelValues(view).Observe(d.Seconds())
	if err == nil {
		m.viewRows.WithLabelValues(view).Set(float64(rows))
	}
}

func (m *Metrics) ObserveHTTP(route, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, status).Inc()
}
