package service

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService exposes Prometheus counters for the core workflows.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	assignmentsTotal prometheus.Counter
	reviewsTotal     *prometheus.CounterVec
	sweepArchived    prometheus.Counter
	sweepPurged      prometheus.Counter
	sweepFailures    prometheus.Counter
}

// NewMetricsService registers the core collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	assignmentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "allocator_assignments_total",
		Help: "Number of student-supervisor assignments created",
	})
	reviewsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_topic_reviews_total",
		Help: "Topic reviews grouped by outcome",
	}, []string{"outcome"})
	sweepArchived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retention_projects_archived_total",
		Help: "Projects snapshotted into the public archive",
	})
	sweepPurged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retention_users_purged_total",
		Help: "Student accounts purged after archival",
	})
	sweepFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retention_failures_total",
		Help: "Per-item failures during retention sweeps",
	})

	registry.MustRegister(assignmentsTotal, reviewsTotal, sweepArchived, sweepPurged, sweepFailures)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		assignmentsTotal: assignmentsTotal,
		reviewsTotal:     reviewsTotal,
		sweepArchived:    sweepArchived,
		sweepPurged:      sweepPurged,
		sweepFailures:    sweepFailures,
	}
}

// Handler serves the /metrics endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// RecordAssignments counts newly created assignments.
func (m *MetricsService) RecordAssignments(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.assignmentsTotal.Add(float64(n))
}

// RecordReview counts a topic review by outcome.
func (m *MetricsService) RecordReview(outcome string) {
	if m == nil {
		return
	}
	m.reviewsTotal.WithLabelValues(outcome).Inc()
}

// RecordSweep counts a retention sweep's results.
func (m *MetricsService) RecordSweep(archived, purged, failures int) {
	if m == nil {
		return
	}
	m.sweepArchived.Add(float64(archived))
	m.sweepPurged.Add(float64(purged))
	m.sweepFailures.Add(float64(failures))
}
