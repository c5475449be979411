package audit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics recorded by engines
type Metrics struct {
	RecordsWritten  *prometheus.CounterVec
	BatchesRejected *prometheus.CounterVec
	RecordsEvicted  *prometheus.CounterVec
	StorageErrors   *prometheus.CounterVec
	PersistDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the audit metrics. A nil registry
// creates unregistered collectors.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_records_written_total",
				Help: "Total number of audit records written",
			},
			[]string{"entity_type", "event"},
		),
		BatchesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_batches_rejected_total",
				Help: "Total number of update batches rejected by the history limit",
			},
			[]string{"entity_type"},
		),
		RecordsEvicted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_records_evicted_total",
				Help: "Total number of audit records evicted by retention",
			},
			[]string{"entity_type"},
		),
		StorageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_storage_errors_total",
				Help: "Total number of storage failures while auditing",
			},
			[]string{"entity_type", "operation"},
		),
		PersistDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audit_persist_duration_seconds",
				Help:    "Time spent persisting one audit batch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity_type", "event"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.RecordsWritten,
			m.BatchesRejected,
			m.RecordsEvicted,
			m.StorageErrors,
			m.PersistDuration,
		)
	}

	return m
}
