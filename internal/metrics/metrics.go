// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

// Package metrics exposes Prometheus instrumentation for the sync pipeline,
// the remote ManicTime client, the credential vault and the HTTP API.
// Metrics are served at /metrics in Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync pipeline metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of sync passes in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_passes_total",
			Help: "Total number of sync passes by terminal status",
		},
		[]string{"status"}, // "success", "partial", "auth_required", "failed"
	)

	SyncRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_processed_total",
			Help: "Total number of records written during sync",
		},
		[]string{"kind"}, // "timeline", "tag_combination", "activity"
	)

	SyncStageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_stage_errors_total",
			Help: "Total number of sync stage rollbacks",
		},
		[]string{"stage"}, // "timelines", "tags", "activities"
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last fully successful sync pass",
		},
	)

	SyncBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_batch_size",
			Help:    "Number of activity records per committed batch",
			Buckets: []float64{1, 10, 25, 50, 100, 250, 500},
		},
	)

	// Remote ManicTime client metrics
	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "manictime_request_duration_seconds",
			Help:    "Duration of ManicTime Server API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manictime_requests_total",
			Help: "Total number of ManicTime Server API requests",
		},
		[]string{"endpoint", "status_code"},
	)

	RemoteCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "manictime_cache_hits_total",
			Help: "Total number of memoized GET responses served within a pass",
		},
	)

	RemoteCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "manictime_cache_misses_total",
			Help: "Total number of GET requests that reached the server",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// Authentication metrics
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"scheme", "result"}, // scheme: "bearer", "ntlm"
	)

	AuthRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refreshes_total",
			Help: "Total number of automatic token refreshes",
		},
		[]string{"result"},
	)

	VaultOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_operations_total",
			Help: "Total number of credential vault operations",
		},
		[]string{"operation", "result"}, // operation: "store", "get", "delete"
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	DBStageRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_stage_rollbacks_total",
			Help: "Total number of sync stage transaction rollbacks",
		},
		[]string{"stage"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// System metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordSyncPass records the outcome of one sync pass.
func RecordSyncPass(status string, duration time.Duration) {
	SyncDuration.Observe(duration.Seconds())
	SyncPasses.WithLabelValues(status).Inc()
	if status == "success" {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordSyncRecords adds processed record counts for one pass.
func RecordSyncRecords(timelines, tagCombos, activities int) {
	SyncRecordsProcessed.WithLabelValues("timeline").Add(float64(timelines))
	SyncRecordsProcessed.WithLabelValues("tag_combination").Add(float64(tagCombos))
	SyncRecordsProcessed.WithLabelValues("activity").Add(float64(activities))
}

// RecordRemoteRequest records one ManicTime Server API request.
func RecordRemoteRequest(endpoint, statusCode string, duration time.Duration) {
	RemoteRequests.WithLabelValues(endpoint, statusCode).Inc()
	RemoteRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordDBQuery records one database query.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records one API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAuthAttempt records one authentication attempt.
func RecordAuthAttempt(scheme string, success bool) {
	AuthAttempts.WithLabelValues(scheme, resultLabel(success)).Inc()
}

// RecordAuthRefresh records one automatic re-authentication.
func RecordAuthRefresh(success bool) {
	AuthRefreshes.WithLabelValues(resultLabel(success)).Inc()
}

// RecordVaultOperation records one vault operation.
func RecordVaultOperation(operation string, success bool) {
	VaultOperations.WithLabelValues(operation, resultLabel(success)).Inc()
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
