// Package metrics provides Prometheus metrics for the inputdata tools
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the inputdata tools
type Metrics struct {
	// Tree walk metrics
	FilesScanned    prometheus.Counter
	DirsScanned     prometheus.Counter
	SymlinksSkipped prometheus.Counter
	WalkErrors      prometheus.Counter

	// File operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Lifecycle metrics
	FilesStaged   prometheus.Counter
	FilesRelinked prometheus.Counter
	FilesSkipped  *prometheus.CounterVec
	BytesStaged   prometheus.Counter

	// Ledger metrics
	LedgerEntriesTotal prometheus.Gauge
	LedgerAppendsTotal *prometheus.CounterVec
	LedgerSizeBytes    prometheus.Gauge

	// Audit metrics
	AuditChecksTotal     *prometheus.CounterVec
	AuditViolationsTotal *prometheus.CounterVec

	// Run metrics
	RunUptimeSeconds prometheus.Gauge
	RunStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		RunStartTime: time.Now(),
	}

	// Tree walk metrics
	m.FilesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inputdata_files_scanned_total",
			Help: "Total number of regular files examined during tree walks",
		},
	)

	m.DirsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inputdata_dirs_scanned_total",
			Help: "Total number of directories examined during tree walks",
		},
	)

	m.SymlinksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inputdata_symlinks_skipped_total",
			Help: "Total number of symlinks skipped during tree walks",
		},
	)

	m.WalkErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inputdata_walk_errors_total",
			Help: "Total number of entries skipped due to access errors",
		},
	)

	// File operation metrics
	m.OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inputdata_operations_total",
			Help: "Total number of file operations",
		},
		[]string{"operation", "status"},
	)

	m.OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inputdata_operation_duration_seconds",
			Help:    "Duration of file operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// Lifecycle metrics
	m.FilesStaged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inputdata_files_staged_total",
			Help: "Total number of files copied into the long-term collection",
		},
	)

	m.FilesRelinked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inputdata_files_relinked_total",
			Help: "Total number of archive copies replaced with symlinks",
		},
	)

	m.FilesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inputdata_files_skipped_total",
			Help: "Total number of files skipped, by reason",
		},
		[]string{"reason"},
	)

	m.BytesStaged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inputdata_bytes_staged_total",
			Help: "Total bytes copied into the long-term collection",
		},
	)

	// Ledger metrics
	m.LedgerEntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inputdata_ledger_entries_total",
			Help: "Number of entries in the publication ledger index",
		},
	)

	m.LedgerAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inputdata_ledger_appends_total",
			Help: "Total number of ledger appends",
		},
		[]string{"operation", "status"},
	)

	m.LedgerSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inputdata_ledger_size_bytes",
			Help: "Total size of ledger segments on disk",
		},
	)

	// Audit metrics
	m.AuditChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inputdata_audit_checks_total",
			Help: "Total number of audit checks performed",
		},
		[]string{"check"},
	)

	m.AuditViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inputdata_audit_violations_total",
			Help: "Total number of audit violations found",
		},
		[]string{"check"},
	)

	// Run metrics
	m.RunUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inputdata_run_uptime_seconds",
			Help: "Elapsed time of the current run in seconds",
		},
	)

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime periodically updates the run uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.RunUptimeSeconds.Set(time.Since(m.RunStartTime).Seconds())
	}
}

// RecordOperation records a file operation with its status
func (m *Metrics) RecordOperation(operation string, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLedgerAppend records a ledger append
func (m *Metrics) RecordLedgerAppend(operation string, status string) {
	m.LedgerAppendsTotal.WithLabelValues(operation, status).Inc()
}

// UpdateLedgerStats updates ledger statistics
func (m *Metrics) UpdateLedgerStats(entryCount int, sizeBytes int64) {
	m.LedgerEntriesTotal.Set(float64(entryCount))
	m.LedgerSizeBytes.Set(float64(sizeBytes))
}
