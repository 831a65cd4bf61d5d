// Package metrics holds the Prometheus collectors of the permission service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Permission metrics
var (
	// PermissionOperationsTotal counts service operations by name and result.
	PermissionOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Name:      "permission_operations_total",
			Help:      "Total number of permission operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// PresetAppliedTotal counts preset applications by preset name.
	PresetAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Name:      "preset_applied_total",
			Help:      "Total number of role presets applied to participants",
		},
		[]string{"preset"},
	)

	// AuditEventsTotal counts audit events by delivery result.
	AuditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Name:      "permission_audit_events_total",
			Help:      "Total number of permission audit events by result",
		},
		[]string{"result"},
	)
)

// Change stream metrics
var (
	// StreamClients is the number of connected change stream clients.
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dealroom",
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected permission change stream clients",
		},
	)

	// StreamEventsTotal counts change events handed to the stream.
	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Total number of permission change events by result",
		},
		[]string{"result"},
	)
)

// Audit retention metrics
var (
	// AuditPurgedTotal counts audit events deleted by retention.
	AuditPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Name:      "permission_audit_purged_total",
			Help:      "Total number of audit events deleted by the retention job",
		},
	)

	// AuditPurgeRunsTotal counts retention runs by result.
	AuditPurgeRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Name:      "permission_audit_purge_runs_total",
			Help:      "Total number of audit retention runs by result",
		},
		[]string{"result"},
	)
)

// Stream event results.
const (
	StreamEventSent    = "sent"
	StreamEventDropped = "dropped"
)

// RecordOperation counts one service operation.
func RecordOperation(operation string, err error) {
	PermissionOperationsTotal.WithLabelValues(operation, resultOf(err)).Inc()
}

// RecordPresetApplied counts one preset application.
func RecordPresetApplied(preset string) {
	PresetAppliedTotal.WithLabelValues(preset).Inc()
}

// RecordAuditEvent counts one audit event delivery attempt.
func RecordAuditEvent(err error) {
	AuditEventsTotal.WithLabelValues(resultOf(err)).Inc()
}

// RecordStreamEvent counts one change event offered to the stream.
func RecordStreamEvent(result string) {
	StreamEventsTotal.WithLabelValues(result).Inc()
}

// RecordAuditPurge counts one retention run and the events it deleted.
func RecordAuditPurge(deleted int64, err error) {
	AuditPurgeRunsTotal.WithLabelValues(resultOf(err)).Inc()
	if deleted > 0 {
		AuditPurgedTotal.Add(float64(deleted))
	}
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
