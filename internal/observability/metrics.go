package observability

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stockgoat"

// Metrics tracks operational metrics for fetches, extraction, reconciliation and runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetchAttempts   *prometheus.CounterVec
	fetchFailures   *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	productsScraped *prometheus.CounterVec
	productFailures *prometheus.CounterVec
	reconciled      *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
	running         prometheus.Gauge

	logger *slog.Logger
}

// NewMetrics creates a Metrics instance backed by its own registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logger:   logger.With("component", "metrics"),
	}

	m.fetchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_attempts_total",
		Help:      "Fetch attempts by transport and outcome",
	}, []string{"transport", "outcome"})
	m.fetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_terminal_failures_total",
		Help:      "Fetches that failed after exhausting every attempt",
	}, []string{"transport"})
	m.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of successful fetch attempts",
		Buckets:   prometheus.DefBuckets,
	}, []string{"transport"})
	m.productsScraped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "products_extracted_total",
		Help:      "Product pages turned into canonical records",
	}, []string{"distributor"})
	m.productFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "product_failures_total",
		Help:      "Product pages that could not be fetched",
	}, []string{"distributor"})
	m.reconciled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "products_reconciled_total",
		Help:      "Reconciled records by result (created, updated, unchanged, skipped)",
	}, []string{"distributor", "result"})
	m.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "distributor_run_duration_seconds",
		Help:      "Time spent on one distributor within a run",
		Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"distributor", "status"})
	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Run start requests by result (accepted, rejected)",
	}, []string{"result"})
	m.running = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_in_progress",
		Help:      "1 while a run is active",
	})

	m.registry.MustRegister(
		m.fetchAttempts, m.fetchFailures, m.fetchDuration,
		m.productsScraped, m.productFailures, m.reconciled,
		m.runDuration, m.runsTotal, m.running,
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves metrics in Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// FetchAttempt records the outcome of a single fetch attempt.
func (m *Metrics) FetchAttempt(transport string, err error, d time.Duration) {
	if m == nil {
		return
	}
	if err != nil {
		m.fetchAttempts.WithLabelValues(transport, "failure").Inc()
		return
	}
	m.fetchAttempts.WithLabelValues(transport, "success").Inc()
	m.fetchDuration.WithLabelValues(transport).Observe(d.Seconds())
}

// FetchExhausted records a fetch that failed after all attempts.
func (m *Metrics) FetchExhausted(transport string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(transport).Inc()
}

// Extraction records per-distributor extraction counts.
func (m *Metrics) Extraction(distributor string, products, failures int) {
	if m == nil {
		return
	}
	m.productsScraped.WithLabelValues(distributor).Add(float64(products))
	m.productFailures.WithLabelValues(distributor).Add(float64(failures))
}

// Reconciled records the outcome counts of one reconciliation batch.
func (m *Metrics) Reconciled(distributor string, created, updated, unchanged, skipped int) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(distributor, "created").Add(float64(created))
	m.reconciled.WithLabelValues(distributor, "updated").Add(float64(updated))
	m.reconciled.WithLabelValues(distributor, "unchanged").Add(float64(unchanged))
	m.reconciled.WithLabelValues(distributor, "skipped").Add(float64(skipped))
}

// DistributorFinished records how long one distributor took and how it ended.
func (m *Metrics) DistributorFinished(distributor, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(distributor, status).Observe(d.Seconds())
}

// RunRequested records whether a start request was accepted.
func (m *Metrics) RunRequested(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.runsTotal.WithLabelValues("accepted").Inc()
		return
	}
	m.runsTotal.WithLabelValues("rejected").Inc()
}

// SetRunning toggles the run-in-progress gauge.
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.running.Set(1)
		return
	}
	m.running.Set(0)
}
