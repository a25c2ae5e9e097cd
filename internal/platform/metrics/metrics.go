// Package metrics provides Prometheus collectors for the editing service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors tracked by the editing service.
type Metrics struct {
	SessionsStarted    prometheus.Counter
	SessionsCompleted  prometheus.Counter
	SessionsCancelled  prometheus.Counter
	SessionsExpired    prometheus.Counter
	ConflictsDetected  prometheus.Counter
	ConflictsResolved  prometheus.Counter
	VersionsCommitted  prometheus.Counter
	StaleBaselines     prometheus.Counter
	AutoSaves          prometheus.Counter
	AutoSaveFailures   prometheus.Counter
	LocksAcquired      prometheus.Counter
	LockContention     prometheus.Counter
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New creates and registers all collectors against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_sessions_started_total",
			Help: "Total number of edit sessions started",
		}),
		SessionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_sessions_completed_total",
			Help: "Total number of edit sessions completed",
		}),
		SessionsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_sessions_cancelled_total",
			Help: "Total number of edit sessions cancelled or discarded",
		}),
		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_sessions_expired_total",
			Help: "Total number of edit sessions expired by the cleanup sweep",
		}),
		ConflictsDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_conflicts_detected_total",
			Help: "Total number of edit conflicts detected",
		}),
		ConflictsResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_conflicts_resolved_total",
			Help: "Total number of edit conflicts resolved",
		}),
		VersionsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_versions_committed_total",
			Help: "Total number of versions promoted from drafts",
		}),
		StaleBaselines: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_stale_baseline_rejections_total",
			Help: "Total number of commits rejected because the current version moved",
		}),
		AutoSaves: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_autosaves_total",
			Help: "Total number of auto-save records written",
		}),
		AutoSaveFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_autosave_failures_total",
			Help: "Total number of auto-save writes that failed",
		}),
		LocksAcquired: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_locks_acquired_total",
			Help: "Total number of commit locks granted",
		}),
		LockContention: factory.NewCounter(prometheus.CounterOpts{
			Name: "editing_lock_contention_total",
			Help: "Total number of lock acquisitions rejected because another session holds the lock",
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "editing_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "editing_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
