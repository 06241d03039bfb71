// Package metrics registers the engine's Prometheus instruments.
package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "tenancy_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	runTotal   *prometheus.CounterVec
	runLatency *prometheus.HistogramVec

	allocationTotal *prometheus.CounterVec

	anomalyTotal *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		runTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_run_total",
				Help: "Total billing runs by result",
			},
			[]string{"result"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "billing_run_latency_seconds",
				Help:    "Billing run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		allocationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "allocation_total",
				Help: "Total booking allocations by strategy and result",
			},
			[]string{"strategy", "result"},
		)

		anomalyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "anomaly_total",
				Help: "Total data-quality anomalies by code",
			},
			[]string{"code"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total bill exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Bill export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			runTotal,
			runLatency,
			allocationTotal,
			anomalyTotal,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveRun records one billing run.
func ObserveRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if runTotal != nil {
		runTotal.WithLabelValues(result).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// CountAllocation records one booking allocation.
func CountAllocation(strategy, result string) {
	if result == "" {
		result = resultSuccess
	}
	if allocationTotal != nil {
		allocationTotal.WithLabelValues(strategy, result).Inc()
	}
}

// CountAnomaly records one anomaly by code.
func CountAnomaly(code string) {
	if anomalyTotal != nil {
		anomalyTotal.WithLabelValues(code).Inc()
	}
}

// ObserveExport records one bill export.
func ObserveExport(format, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	openConns := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_open_connections",
			Help: "Open database connections",
		},
		func() float64 { return float64(db.Stats().OpenConnections) },
	)
	inUse := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_in_use_connections",
			Help: "In-use database connections",
		},
		func() float64 { return float64(db.Stats().InUse) },
	)
	if err := prometheus.Register(openConns); err != nil && logger != nil {
		logger.Printf("metrics: register db open connections: %v", err)
	}
	if err := prometheus.Register(inUse); err != nil && logger != nil {
		logger.Printf("metrics: register db in-use connections: %v", err)
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
