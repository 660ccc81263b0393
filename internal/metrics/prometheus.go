package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Prometheus metrics for the match sync service

var (
	// Upstream request metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jpoints_api_calls_total",
			Help: "Total number of upstream requests",
		},
		[]string{"source", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jpoints_api_call_duration_seconds",
			Help:    "Duration of upstream requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Fetch metrics
	SectionsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jpoints_sections_fetched_total",
			Help: "Total number of schedule sections fetched",
		},
		[]string{"fetch_path", "status"},
	)

	MatchesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jpoints_matches_fetched_total",
			Help: "Total number of match rows fetched",
		},
		[]string{"fetch_path"},
	)

	// Persistence metrics
	DatasetWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jpoints_dataset_writes_total",
			Help: "Diff-gated dataset writes by result",
		},
		[]string{"result"},
	)

	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jpoints_sink_errors_total",
			Help: "Failures notifying post-write sinks",
		},
		[]string{"sink"},
	)

	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jpoints_db_queries_total",
			Help: "Total number of archive database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jpoints_db_query_duration_seconds",
			Help:    "Duration of archive database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// Sync metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jpoints_sync_operations_total",
			Help: "Total number of sync operations",
		},
		[]string{"type", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jpoints_sync_duration_seconds",
			Help:    "Duration of sync operations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	CompetitionsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jpoints_competitions_skipped_total",
			Help: "Competitions skipped for lack of a season entry",
		},
		[]string{"competition"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jpoints_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// Worker metrics
	WorkerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jpoints_worker_runs_total",
			Help: "Total number of scheduled sync runs",
		},
		[]string{"trigger"},
	)

	WorkerRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jpoints_worker_run_duration_seconds",
			Help:    "Duration of scheduled sync runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	ScheduledTriggers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jpoints_scheduled_triggers",
			Help: "Number of pending post-kickoff sync triggers",
		},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jpoints_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jpoints_last_successful_sync_timestamp",
			Help: "Timestamp of last successful sync operation",
		},
	)
)

// RecordAPICall records an upstream request
func RecordAPICall(source, status string, duration float64) {
	APICallsTotal.WithLabelValues(source, status).Inc()
	APICallDuration.WithLabelValues(source).Observe(duration)
}

// RecordSectionFetch records one section fetch and the rows it returned
func RecordSectionFetch(fetchPath, status string, rows int) {
	SectionsFetchedTotal.WithLabelValues(fetchPath, status).Inc()
	if rows > 0 {
		MatchesFetchedTotal.WithLabelValues(fetchPath).Add(float64(rows))
	}
}

// RecordDatasetWrite records the outcome of a diff-gated write
func RecordDatasetWrite(result string) {
	DatasetWritesTotal.WithLabelValues(result).Inc()
}

// RecordSinkError records a failed sink notification
func RecordSinkError(sink string) {
	SinkErrorsTotal.WithLabelValues(sink).Inc()
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordSync records a sync operation
func RecordSync(syncType, status string, duration float64) {
	SyncOperationsTotal.WithLabelValues(syncType, status).Inc()
	SyncDuration.WithLabelValues(syncType).Observe(duration)

	if status == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// RecordSkip records a competition skipped this run
func RecordSkip(competition string) {
	CompetitionsSkippedTotal.WithLabelValues(competition).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordWorkerRun records a scheduled run
func RecordWorkerRun(trigger string, duration float64) {
	WorkerRunsTotal.WithLabelValues(trigger).Inc()
	WorkerRunDuration.Observe(duration)
}

// Push sends every registered metric to a Pushgateway. Used by one-shot runs.
func Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
