// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	LicensesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "licenses_ingested_total",
			Help: "License submissions persisted, by compact and whether the canonical summary changed",
		},
		[]string{"compact", "canonical_changed"},
	)

	LicenseIngestFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "license_ingest_failures_total",
			Help: "License submissions rejected or failed, by compact and error code",
		},
		[]string{"compact", "error_code"},
	)

	PrivilegesProvisioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "privileges_provisioned_total",
			Help: "Privilege records written by successful provisioning calls",
		},
		[]string{"compact"},
	)

	PrivilegeCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "privilege_compensations_total",
			Help: "Compensating deletes triggered by failed provisioning calls",
		},
		[]string{"compact"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Event envelopes accepted by the bus",
		},
		[]string{"detail_type"},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Event envelopes rejected per entry by the bus",
		},
		[]string{"detail_type"},
	)

	QueryStoreCalls = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_query_store_calls",
			Help:    "Store queries issued to fill one page of filtered results",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"index"},
	)

	ProviderCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_cache_requests_total",
			Help: "Provider detail cache lookups, by result",
		},
		[]string{"result"},
	)

	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Best-effort audit archive inserts that failed",
		},
	)
)
