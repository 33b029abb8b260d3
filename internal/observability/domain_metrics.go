package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querygate_query_executions_total",
			Help: "Total query executions by action and outcome.",
		},
		[]string{"action", "status"},
	)
	queryExecutionSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querygate_query_execution_seconds",
			Help:    "End-to-end query execution latency by action.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	guardRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querygate_guard_rejections_total",
			Help: "Statements refused by the denylist guard.",
		},
	)
	rlsRewritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querygate_rls_rewrites_total",
			Help: "Statements rewritten with a row-level security policy.",
		},
	)
	auditWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querygate_audit_write_failures_total",
			Help: "Audit entries that could not be persisted.",
		},
	)
	auditEntriesArchivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querygate_audit_entries_archived_total",
			Help: "Audit entries exported to the object store by the archiver.",
		},
	)
	archiveRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querygate_archive_runs_total",
			Help: "Archiver runs by outcome.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		queryExecutionsTotal,
		queryExecutionSeconds,
		guardRejectionsTotal,
		rlsRewritesTotal,
		auditWriteFailuresTotal,
		auditEntriesArchivedTotal,
		archiveRunsTotal,
	)
}

func ObserveQueryExecution(action string, success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	queryExecutionsTotal.WithLabelValues(action, status).Inc()
	queryExecutionSeconds.WithLabelValues(action).Observe(elapsed.Seconds())
}

func IncrementGuardRejection() {
	guardRejectionsTotal.Inc()
}

func IncrementRLSRewrite() {
	rlsRewritesTotal.Inc()
}

func IncrementAuditWriteFailure() {
	auditWriteFailuresTotal.Inc()
}

func ObserveArchiveRun(success bool, archived int64) {
	status := "success"
	if !success {
		status = "failure"
	}
	archiveRunsTotal.WithLabelValues(status).Inc()
	if archived > 0 {
		auditEntriesArchivedTotal.Add(float64(archived))
	}
}
