// Package metrics exposes prometheus collectors for event manager operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded for an operation.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

var (
	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_manager_operations_total",
			Help: "Event manager operations by name and outcome",
		},
		[]string{"operation", "outcome"},
	)

	eventsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_manager_events",
			Help: "Number of events currently held",
		},
	)

	registrations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_manager_registrations",
			Help: "Registered participants per event",
		},
		[]string{"event_id"},
	)
)

// RecordOperation counts one call of operation with its outcome.
func RecordOperation(operation, outcome string) {
	operations.WithLabelValues(operation, outcome).Inc()
}

// SetEvents updates the events gauge.
func SetEvents(n int) {
	eventsTotal.Set(float64(n))
}

// SetRegistrations updates the registrations gauge of one event.
func SetRegistrations(eventID string, n int) {
	registrations.WithLabelValues(eventID).Set(float64(n))
}
